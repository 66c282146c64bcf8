package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/neoteroi/httpcore/internal/app"
	"github.com/neoteroi/httpcore/internal/clock"
	"github.com/neoteroi/httpcore/internal/telemetry"
	"github.com/neoteroi/httpcore/pkg/httpcore"
	"github.com/neoteroi/httpcore/pkg/httpcore/server"
)

type serveOpts struct {
	address     string
	maxBodySize int64
}

// ServeCommand returns the command that runs the HTTP/1.1 server.
func ServeCommand() *cobra.Command {
	var opts serveOpts
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", ":8080", "The address to listen on, optionally prefixed with tcp://")
	cmd.Flags().Int64Var(&opts.maxBodySize, "max-body-size", 0, "Request body size limit in bytes (0 uses the default)")

	return cmd
}

// createListener creates a TCP listener, accepting an address with or
// without the tcp:// scheme prefix.
func createListener(address string) (net.Listener, error) {
	return net.Listen("tcp", strings.TrimPrefix(address, "tcp://"))
}

func runServe(ctx context.Context, opts serveOpts) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	log := logrus.NewEntry(logrus.StandardLogger())

	tracer, shutdownTracing, err := telemetry.Init("dev")
	if err != nil {
		return errors.Wrap(err, "starting telemetry")
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	metrics := telemetry.NewMetrics()
	go serveMetrics(ctx, log, metrics)

	limits := server.DefaultLimits()
	if opts.maxBodySize > 0 {
		limits.MaxBodySize = opts.maxBodySize
	}

	application := app.New(demoRouter(), app.WithLogger(log), app.WithTracer(tracer), app.WithMetrics(metrics))

	listener, err := createListener(opts.address)
	if err != nil {
		return errors.Wrap(err, "listen address "+opts.address)
	}
	defer listener.Close() //nolint:errcheck

	log.WithField("address", opts.address).WithField("limits", limits.String()).Info("serving httpcore")

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-ctx.Done()
		log.Info("stopping server")
		return listener.Close()
	})
	group.Go(func() error {
		return acceptLoop(ctx, listener, application, limits, metrics, log)
	})

	err = group.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// acceptLoop accepts connections until ctx is done or listener.Accept
// fails for a reason other than the listener having been closed.
func acceptLoop(ctx context.Context, listener net.Listener, handler server.Handler, limits server.Limits, metrics *telemetry.Metrics, log *logrus.Entry) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go serveConn(ctx, conn, handler, limits, metrics, log)
	}
}

// serveConn drives one accepted connection's read loop, feeding bytes
// into a Connection until the peer closes or the server shuts down.
func serveConn(ctx context.Context, conn net.Conn, handler server.Handler, limits server.Limits, metrics *telemetry.Metrics, log *logrus.Entry) {
	transport := server.NewNetTransport(conn)
	c := server.NewConnection(handler, limits, clock.New(), log.WithField("remote", conn.RemoteAddr()))
	c.SetMetrics(metrics)
	c.Attach(transport)
	defer c.Close() //nolint:errcheck

	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if feedErr := c.Feed(ctx, buf[:n]); feedErr != nil {
				c.Lost(feedErr)
				return
			}
		}
		if err != nil {
			c.Lost(err)
			return
		}
		if ctx.Err() != nil {
			c.Lost(ctx.Err())
			return
		}
	}
}

// demoRouter matches every request to a single handler returning a
// plain-text greeting, standing in for a real routing layer (out of
// scope for this core; see internal/app.Router).
func demoRouter() app.Router {
	return app.RouterFunc(func(req *httpcore.Request) (*app.RouteMatch, bool) {
		return &app.RouteMatch{
			Handler: func(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
				return httpcore.TextResponse("httpcore is running"), nil
			},
		}, true
	})
}

// serveMetrics exposes the Prometheus registry on a side HTTP listener
// until ctx is done.
func serveMetrics(ctx context.Context, log *logrus.Entry, metrics *telemetry.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":9090", Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("metrics server stopped")
	}
}
