package transcript

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zeebo/blake3"

	"github.com/vango-dev/boardsync/internal/clock"
	"github.com/vango-dev/boardsync/pkg/dispatch"
	"github.com/vango-dev/boardsync/pkg/protocol"
)

var epoch = time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)

type memSink struct {
	mu   sync.Mutex
	puts map[string][]byte
	keys []string
	err  error
}

func (s *memSink) Put(_ context.Context, key string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.puts == nil {
		s.puts = make(map[string][]byte)
	}
	s.puts[key] = data
	s.keys = append(s.keys, key)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envelope(t *testing.T, kind protocol.Kind, payload any) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(kind, payload, epoch)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func TestRecorder_FlushWritesReadableArchive(t *testing.T) {
	sink := &memSink{}
	clk := clock.Fake(epoch)
	rec := NewRecorder("sess", sink, WithClock(clk), WithPrefix("boards/"), WithLogger(quietLogger()))

	reg := dispatch.New(dispatch.WithLogger(quietLogger()), dispatch.WithObserver(rec))
	reg.SubscribeFunc(protocol.KindCardMoved, func(protocol.Envelope) {})

	reg.Dispatch(envelope(t, protocol.KindCardMoved, protocol.CardMovePayload{RoomID: 1, CardID: 2}))
	unknown, _ := protocol.Decode([]byte(`{"kind":"future","payload":{"a":1}}`))
	reg.Dispatch(unknown)

	if got := rec.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	a, err := rec.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if a.Entries != 2 || rec.Pending() != 0 {
		t.Fatalf("archive = %+v, pending %d", a, rec.Pending())
	}
	if !strings.HasPrefix(a.Key, "boards/2026/01/02/sess-00000001-") || !strings.HasSuffix(a.Key, ".jsonl.gz") {
		t.Fatalf("key = %q", a.Key)
	}

	data := sink.puts[a.Key]
	sum := blake3.Sum256(data)
	if a.Digest != hex.EncodeToString(sum[:]) || !strings.Contains(a.Key, a.Digest[:16]) {
		t.Fatalf("digest %q does not match archive", a.Digest)
	}

	entries, err := ReadArchive(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Kind != "card_moved" || entries[0].Handlers != 1 || entries[0].Seq != 1 {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
	if entries[1].Kind != "future" || entries[1].Handlers != 0 {
		t.Fatalf("entry 1 = %+v", entries[1])
	}

	env := entries[0].Envelope()
	var mv protocol.CardMovePayload
	if err := env.DecodePayload(&mv); err != nil || mv.CardID != 2 {
		t.Fatalf("replayed payload = %+v, %v", mv, err)
	}
	if env.Kind != protocol.KindCardMoved || !env.EmittedAt.Equal(epoch) {
		t.Fatalf("replayed envelope = %+v", env)
	}
}

func TestRecorder_SequenceContinuesAcrossBatches(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder("s", sink, WithClock(clock.Fake(epoch)), WithLogger(quietLogger()))

	rec.ObserveEnvelope(envelope(t, protocol.KindPing, nil), 0)
	first, _ := rec.Flush(context.Background())
	rec.ObserveEnvelope(envelope(t, protocol.KindPong, nil), 0)
	second, _ := rec.Flush(context.Background())

	if !strings.Contains(first.Key, "-00000001-") || !strings.Contains(second.Key, "-00000002-") {
		t.Fatalf("keys = %q, %q", first.Key, second.Key)
	}
	entries, err := ReadArchive(bytes.NewReader(sink.puts[second.Key]))
	if err != nil || len(entries) != 1 || entries[0].Seq != 2 {
		t.Fatalf("second batch = %+v, %v", entries, err)
	}
}

func TestRecorder_EmptyFlushIsNoop(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder("s", sink)
	a, err := rec.Flush(context.Background())
	if err != nil || a.Key != "" || sink.count() != 0 {
		t.Fatalf("Flush() = %+v, %v; puts %d", a, err, sink.count())
	}
}

func TestRecorder_KindFilter(t *testing.T) {
	rec := NewRecorder("s", &memSink{}, WithKinds(protocol.KindCardLocked, protocol.KindCardUnlocked))
	rec.ObserveEnvelope(envelope(t, protocol.KindCardLocked, nil), 0)
	rec.ObserveEnvelope(envelope(t, protocol.KindCursorUpdate, nil), 0)
	rec.ObserveEnvelope(envelope(t, protocol.KindCardUnlocked, nil), 0)

	if got := rec.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}
}

func TestRecorder_SinkErrorIsReturned(t *testing.T) {
	boom := errors.New("disk full")
	rec := NewRecorder("s", &memSink{err: boom}, WithLogger(quietLogger()))
	rec.ObserveEnvelope(envelope(t, protocol.KindPing, nil), 0)

	if _, err := rec.Flush(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Flush() error = %v, want %v", err, boom)
	}
	if got := rec.Pending(); got != 0 {
		t.Fatalf("Pending() after failed flush = %d", got)
	}
}

func TestRecorder_CloseFlushesAndStops(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder("s", sink, WithLogger(quietLogger()))
	rec.ObserveEnvelope(envelope(t, protocol.KindPing, nil), 0)

	a, err := rec.Close(context.Background())
	if err != nil || a.Entries != 1 {
		t.Fatalf("Close() = %+v, %v", a, err)
	}
	rec.ObserveEnvelope(envelope(t, protocol.KindPing, nil), 0)
	if got := rec.Pending(); got != 0 {
		t.Fatalf("recorded after Close: %d", got)
	}
	if _, err := rec.Flush(context.Background()); !errors.Is(err, ErrRecorderClosed) {
		t.Fatalf("Flush after Close = %v", err)
	}
	if _, err := rec.Close(context.Background()); err != nil {
		t.Fatalf("second Close = %v", err)
	}
}

func TestRecorder_RunFlushesOnTicks(t *testing.T) {
	sink := &memSink{}
	clk := clock.Fake(epoch)
	rec := NewRecorder("s", sink, WithClock(clk), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx, time.Minute) }()
	clk.WaitForTimers(1)

	rec.ObserveEnvelope(envelope(t, protocol.KindPing, nil), 0)
	clk.Advance(time.Minute)
	deadline := time.Now().Add(2 * time.Second)
	for sink.count() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("tick did not flush")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec.ObserveEnvelope(envelope(t, protocol.KindPong, nil), 0)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := sink.count(); got != 2 {
		t.Fatalf("archives = %d, want 2 (final flush)", got)
	}
}

func TestReadArchive_RejectsGarbage(t *testing.T) {
	if _, err := ReadArchive(strings.NewReader("plain text")); err == nil {
		t.Fatal("ReadArchive accepted non-gzip input")
	}
}

func TestVerifyDigest(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder("1b4e28ba-2fa1-11d2-883f-0016d3cca427", sink, WithClock(clock.Fake(epoch)), WithLogger(quietLogger()))
	rec.ObserveEnvelope(envelope(t, protocol.KindPing, nil), 0)
	a, err := rec.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	data := sink.puts[a.Key]

	if err := VerifyDigest(a.Key, data); err != nil {
		t.Errorf("VerifyDigest(intact) = %v", err)
	}

	tampered := append([]byte(nil), data...)
	tampered[len(tampered)-1] ^= 0xff
	if err := VerifyDigest(a.Key, tampered); !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("VerifyDigest(tampered) = %v, want ErrDigestMismatch", err)
	}

	for _, key := range []string{"notes.txt", "2026/01/02/sess-00000001.jsonl.gz"} {
		if err := VerifyDigest(key, data); err == nil || errors.Is(err, ErrDigestMismatch) {
			t.Errorf("VerifyDigest(%q) = %v, want a name error", key, err)
		}
	}
}
