package realtime

import (
	"context"
	"time"

	"github.com/vango-dev/boardsync/pkg/protocol"
)

// Instrumentation receives lifecycle and traffic notifications from a
// Client. Methods are called synchronously, some with internal locks
// held, so implementations must be fast and must not call back into the
// Client. Embed NopInstrumentation to implement only part of it.
type Instrumentation interface {
	// DialStarted is called before each dial. The returned context is
	// used for the dial; end is called with its outcome.
	DialStarted(ctx context.Context, attempt int) (context.Context, func(err error))

	StateChanged(from, to State)
	EnvelopeSent(kind protocol.Kind, bytes int)
	EnvelopeDropped(kind protocol.Kind, reason string)
	FrameReceived(bytes int)
	FrameMalformed()
	Disconnected(code int)
	ReconnectScheduled(attempt int, delay time.Duration)
	ReconnectExhausted()
}

// NopInstrumentation implements Instrumentation with no-ops.
type NopInstrumentation struct{}

func (NopInstrumentation) DialStarted(ctx context.Context, _ int) (context.Context, func(error)) {
	return ctx, func(error) {}
}
func (NopInstrumentation) StateChanged(State, State) {}
func (NopInstrumentation) EnvelopeSent(protocol.Kind, int) {}
func (NopInstrumentation) EnvelopeDropped(protocol.Kind, string) {}
func (NopInstrumentation) FrameReceived(int) {}
func (NopInstrumentation) FrameMalformed() {}
func (NopInstrumentation) Disconnected(int) {}
func (NopInstrumentation) ReconnectScheduled(int, time.Duration) {}
func (NopInstrumentation) ReconnectExhausted() {}

// multiInstrumentation fans notifications out to several instruments.
type multiInstrumentation []Instrumentation

// MultiInstrumentation combines instruments; nil entries are skipped.
func MultiInstrumentation(list ...Instrumentation) Instrumentation {
	var m multiInstrumentation
	for _, in := range list {
		if in != nil {
			m = append(m, in)
		}
	}
	switch len(m) {
	case 0:
		return NopInstrumentation{}
	case 1:
		return m[0]
	}
	return m
}

func (m multiInstrumentation) DialStarted(ctx context.Context, attempt int) (context.Context, func(error)) {
	ends := make([]func(error), 0, len(m))
	for _, in := range m {
		var end func(error)
		ctx, end = in.DialStarted(ctx, attempt)
		ends = append(ends, end)
	}
	return ctx, func(err error) {
		for i := len(ends) - 1; i >= 0; i-- {
			ends[i](err)
		}
	}
}

func (m multiInstrumentation) StateChanged(from, to State) {
	for _, in := range m {
		in.StateChanged(from, to)
	}
}

func (m multiInstrumentation) EnvelopeSent(kind protocol.Kind, bytes int) {
	for _, in := range m {
		in.EnvelopeSent(kind, bytes)
	}
}

func (m multiInstrumentation) EnvelopeDropped(kind protocol.Kind, reason string) {
	for _, in := range m {
		in.EnvelopeDropped(kind, reason)
	}
}

func (m multiInstrumentation) FrameReceived(bytes int) {
	for _, in := range m {
		in.FrameReceived(bytes)
	}
}

func (m multiInstrumentation) FrameMalformed() {
	for _, in := range m {
		in.FrameMalformed()
	}
}

func (m multiInstrumentation) Disconnected(code int) {
	for _, in := range m {
		in.Disconnected(code)
	}
}

func (m multiInstrumentation) ReconnectScheduled(attempt int, delay time.Duration) {
	for _, in := range m {
		in.ReconnectScheduled(attempt, delay)
	}
}

func (m multiInstrumentation) ReconnectExhausted() {
	for _, in := range m {
		in.ReconnectExhausted()
	}
}
