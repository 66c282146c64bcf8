package server

import "context"

// Transport is the byte-level collaborator a Connection drives: either a
// raw net.Conn wrapper or a gateway adapter translating to/from the
// ASGI-style frame contract in httpcore.GatewayFrame. A Connection never
// touches a socket directly so the same state machine serves both.
type Transport interface {
	// Write sends b. Connection calls it both from the goroutine driving
	// Feed (error responses) and from a request's goroutine (the response),
	// so an implementation must be safe for concurrent calls.
	Write(ctx context.Context, b []byte) error

	// PauseReading asks the transport to stop delivering inbound bytes
	// until ResumeReading, used when the handler cannot keep up
	// with an incoming body.
	PauseReading()

	// ResumeReading reverses PauseReading.
	ResumeReading()

	// Close tears down the underlying connection. Idempotent.
	Close() error
}
