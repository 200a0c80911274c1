package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/boardsync/internal/config"
	"github.com/vango-dev/boardsync/internal/errors"
	"github.com/vango-dev/boardsync/pkg/collab"
	"github.com/vango-dev/boardsync/pkg/dispatch"
	"github.com/vango-dev/boardsync/pkg/observe"
	"github.com/vango-dev/boardsync/pkg/protocol"
	"github.com/vango-dev/boardsync/pkg/realtime"
	"github.com/vango-dev/boardsync/pkg/transcript"
)

type watchOptions struct {
	room     int64
	presence bool
	quiet    bool
}

func watchCmd(g *globalFlags) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect, join a board and log everything received",
		Long: `Connect to the realtime endpoint, join a board and log every envelope.

The connection is kept alive with heartbeats and recovered with
exponential backoff. When the project file enables them, an ops server
exposes /metrics and /healthz, and envelopes are archived to a
directory or an S3 bucket.

Examples:
  boardsync watch --room 42
  boardsync watch --presence --log-format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			logger, err := g.logger()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("room") && cfg.Room != nil {
				opts.room = *cfg.Room
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cfg, logger, opts)
		},
	}

	cmd.Flags().Int64VarP(&opts.room, "room", "r", 0, "Board to join (default from the project file)")
	cmd.Flags().BoolVarP(&opts.presence, "presence", "p", false, "Track presence, locks and typing; serve them at /rooms")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not log individual envelopes")

	return cmd
}

// envelopeLogger logs every dispatched envelope.
type envelopeLogger struct {
	logger *slog.Logger
}

func (l envelopeLogger) ObserveEnvelope(env protocol.Envelope, handlers int) {
	if env.Kind == protocol.KindPing || env.Kind == protocol.KindPong {
		return
	}
	attrs := []any{"kind", env.Name(), "handlers", handlers}
	if env.UserID != nil {
		attrs = append(attrs, "user_id", *env.UserID)
	}
	if len(env.Payload) > 0 {
		attrs = append(attrs, "payload", string(env.Payload))
	}
	l.logger.Info("envelope", attrs...)
}

func runWatch(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts *watchOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observe.NewMetrics(observe.WithRegistry(promReg))
	tracing := observe.NewTracing()

	regOpts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithObserver(metrics),
		dispatch.WithObserver(tracing),
		dispatch.WithPanicReporter(metrics),
	}
	if !opts.quiet {
		regOpts = append(regOpts, dispatch.WithObserver(envelopeLogger{logger: logger}))
	}
	registry := dispatch.New(regOpts...)

	var tracker *collab.Tracker
	if opts.presence {
		tracker = collab.NewTracker(registry, collab.WithTrackerLogger(logger))
		defer tracker.Close()
	}

	client, err := newClient(cfg, logger, registry, metrics, tracing)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	registry.SubscribeFunc(protocol.KindError, func(env protocol.Envelope) {
		var p protocol.ErrorPayload
		if env.DecodePayload(&p) == nil && p.Fatal {
			cancel(realtime.ErrReconnectExhausted)
		}
	})

	var wg sync.WaitGroup

	var recorder *transcript.Recorder
	if cfg.TranscriptEnabled() {
		recorder, err = newRecorder(cfg, client.SessionID(), logger)
		if err != nil {
			return err
		}
		registry.AddObserver(recorder)
		interval, _ := cfg.FlushInterval()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Run(ctx, interval); err != nil {
				logger.Error("final transcript flush failed", "error", err)
			}
		}()
	}

	var srv *http.Server
	if cfg.MetricsEnabled() {
		srv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           opsRouter(client, promReg, tracker),
			ReadHeaderTimeout: 5 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server failed", "addr", srv.Addr, "error", err)
			}
		}()
		info("ops server on http://%s (/metrics, /healthz)", cfg.Metrics.Listen)
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, 2*durationOr(cfg.ConnectTimeout, 10*time.Second))
	if opts.room != 0 {
		err = client.JoinRoom(connectCtx, protocol.RoomID(opts.room))
	} else {
		err = client.Connect(connectCtx)
	}
	connectCancel()
	if err != nil {
		cancel(err)
		shutdown(srv, logger)
		wg.Wait()
		return classify(err)
	}
	if opts.room != 0 {
		success("connected, joined board %d", opts.room)
	} else {
		success("connected")
	}

	<-ctx.Done()
	client.Disconnect()
	shutdown(srv, logger)
	wg.Wait()

	if recorder != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if _, err := recorder.Close(closeCtx); err != nil {
			return errors.New("BS401").Wrap(err)
		}
	}

	if cause := context.Cause(ctx); stderrors.Is(cause, realtime.ErrReconnectExhausted) {
		return classify(cause)
	}
	return nil
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("ops server shutdown", "error", err)
	}
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
