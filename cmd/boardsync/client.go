package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"

	"github.com/vango-dev/boardsync/internal/config"
	"github.com/vango-dev/boardsync/internal/errors"
	"github.com/vango-dev/boardsync/pkg/dispatch"
	"github.com/vango-dev/boardsync/pkg/protocol"
	"github.com/vango-dev/boardsync/pkg/realtime"
)

// newClient builds a realtime client from the project file. The token is
// read from the environment variable the file names.
func newClient(cfg *config.Config, logger *slog.Logger, registry *dispatch.Registry, in ...realtime.Instrumentation) (*realtime.Client, error) {
	rc, err := cfg.ToRealtime()
	if err != nil {
		return nil, err
	}
	token := os.Getenv(cfg.Token.Env)
	if token == "" {
		return nil, errors.New("BS201").
			WithSuggestion("export " + cfg.Token.Env + "=<token>")
	}
	opts := []realtime.Option{
		realtime.WithLogger(logger),
		realtime.WithTokenSource(realtime.StaticToken(token)),
		realtime.WithRegistry(registry),
	}
	if len(in) > 0 {
		opts = append(opts, realtime.WithInstrumentation(in...))
	}
	c, err := realtime.New(rc, opts...)
	if err != nil {
		return nil, errors.New("BS105").Wrap(err)
	}
	return c, nil
}

// classify gives client errors a code for the terminal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Code(err) != "" {
		return err
	}
	switch {
	case stderrors.Is(err, realtime.ErrUnauthenticated):
		return errors.New("BS201").Wrap(err)
	case stderrors.Is(err, realtime.ErrUnauthorized):
		return errors.New("BS202").Wrap(err).
			WithSuggestion("Check that the token has not expired")
	case stderrors.Is(err, realtime.ErrConnectTimeout),
		stderrors.Is(err, context.DeadlineExceeded):
		return errors.New("BS302").Wrap(err)
	case stderrors.Is(err, realtime.ErrNotConnected):
		return errors.New("BS303").Wrap(err)
	case stderrors.Is(err, realtime.ErrReconnectExhausted):
		return errors.New("BS304").Wrap(err)
	case stderrors.Is(err, realtime.ErrLocalKind),
		stderrors.Is(err, protocol.ErrUnknownKind),
		stderrors.Is(err, protocol.ErrFrameTooLarge):
		return errors.New("BS305").Wrap(err)
	case stderrors.Is(err, context.Canceled):
		return err
	default:
		return errors.New("BS301").Wrap(err)
	}
}
