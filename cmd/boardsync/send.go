package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/boardsync/internal/config"
	"github.com/vango-dev/boardsync/internal/errors"
	"github.com/vango-dev/boardsync/pkg/dispatch"
	"github.com/vango-dev/boardsync/pkg/protocol"
)

type sendOptions struct {
	room int64
	wait time.Duration
}

func sendCmd(g *globalFlags) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send KIND [PAYLOAD]",
		Short: "Send a single envelope",
		Long: `Connect, optionally join a board, send one envelope and disconnect.

PAYLOAD is a JSON value. Lifecycle kinds (connect, disconnect, reconnect,
error) are produced by the client itself and cannot be sent.

Examples:
  boardsync send ping
  boardsync send card_moved '{"roomId":42,"cardId":7,"fromColumnId":1,"toColumnId":2,"position":0}' --room 42
  boardsync send user_presence_update '{"status":"away"}' --wait 2s`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, payload, err := parseSendArgs(args)
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			logger, err := g.logger()
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), cfg, logger, opts, kind, payload)
		},
	}

	cmd.Flags().Int64VarP(&opts.room, "room", "r", 0, "Board to join before sending")
	cmd.Flags().DurationVarP(&opts.wait, "wait", "w", 0, "Keep the channel open this long and log what arrives")
	return cmd
}

// parseSendArgs validates the kind and the optional JSON payload.
func parseSendArgs(args []string) (protocol.Kind, json.RawMessage, error) {
	kind, ok := protocol.ParseKind(args[0])
	if !ok {
		return 0, nil, errors.New("BS305").
			WithDetail("unknown kind " + args[0])
	}
	if kind.Local() {
		return 0, nil, errors.New("BS305").
			WithDetail(kind.String() + " is produced by the client and cannot be sent")
	}
	if len(args) < 2 {
		return kind, nil, nil
	}
	raw := json.RawMessage(args[1])
	if !json.Valid(raw) {
		return 0, nil, errors.New("BS305").
			WithDetail("payload is not valid JSON").
			WithSuggestion(`Quote the payload, e.g. '{"roomId":42}'`)
	}
	return kind, raw, nil
}

func runSend(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts *sendOptions, kind protocol.Kind, payload json.RawMessage) error {
	registry := dispatch.New(dispatch.WithLogger(logger))
	if opts.wait > 0 {
		registry.AddObserver(envelopeLogger{logger: logger})
	}
	client, err := newClient(cfg, logger, registry)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	connectCtx, cancel := context.WithTimeout(ctx, 2*durationOr(cfg.ConnectTimeout, 10*time.Second))
	defer cancel()
	if opts.room != 0 {
		err = client.JoinRoom(connectCtx, protocol.RoomID(opts.room))
	} else {
		err = client.Connect(connectCtx)
	}
	if err != nil {
		return classify(err)
	}

	var body any
	if payload != nil {
		body = payload
	}
	if err := client.Send(kind, body); err != nil {
		return classify(err)
	}
	success("sent %s", kind)

	if opts.wait > 0 {
		select {
		case <-time.After(opts.wait):
		case <-ctx.Done():
		}
	}
	return nil
}
