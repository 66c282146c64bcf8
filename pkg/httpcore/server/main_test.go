package server

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards the connection state machine's goroutines: Attach/Feed
// must leave nothing running once a test's Connection is closed.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
