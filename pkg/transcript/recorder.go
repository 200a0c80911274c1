package transcript

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"

	"github.com/vango-dev/boardsync/internal/clock"
	"github.com/vango-dev/boardsync/pkg/protocol"
)

// ErrRecorderClosed is returned by Flush after Close.
var ErrRecorderClosed = errors.New("transcript: recorder closed")

// Archive describes one flushed batch.
type Archive struct {
	Key     string
	Entries int
	Bytes   int
	Digest  string // hex BLAKE3-256 of the compressed bytes
}

// Recorder buffers dispatched envelopes and writes them to a Sink in
// compressed batches. It is safe for concurrent use.
type Recorder struct {
	session string
	sink    Sink
	clock   clock.Clock
	logger  *slog.Logger
	kinds   map[protocol.Kind]bool
	prefix  string
	level   int

	mu      sync.Mutex
	buf     bytes.Buffer
	zw      *gzip.Writer
	entries int
	seq     uint64
	first   uint64
	closed  bool
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithKinds restricts recording to the given kinds. Unknown kinds are
// recorded only when KindUnknown is listed.
func WithKinds(kinds ...protocol.Kind) RecorderOption {
	return func(r *Recorder) {
		r.kinds = make(map[protocol.Kind]bool, len(kinds))
		for _, k := range kinds {
			r.kinds[k] = true
		}
	}
}

// WithPrefix sets the archive key prefix, e.g. "boards/prod/".
func WithPrefix(prefix string) RecorderOption {
	return func(r *Recorder) { r.prefix = prefix }
}

// WithClock sets the clock used for timestamps, keys and Run.
func WithClock(c clock.Clock) RecorderOption {
	return func(r *Recorder) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCompressionLevel sets the gzip level. Default: gzip.BestSpeed.
func WithCompressionLevel(level int) RecorderOption {
	return func(r *Recorder) { r.level = level }
}

// NewRecorder returns a Recorder archiving to sink under session.
func NewRecorder(session string, sink Sink, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		session: session,
		sink:    sink,
		clock:   clock.Real(),
		logger:  slog.Default(),
		level:   gzip.BestSpeed,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ObserveEnvelope appends env to the current batch.
func (r *Recorder) ObserveEnvelope(env protocol.Envelope, handlers int) {
	if r.kinds != nil && !r.kinds[env.Kind] {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.zw == nil {
		zw, err := gzip.NewWriterLevel(&r.buf, r.level)
		if err != nil {
			r.logger.Error("transcript: gzip writer", "error", err)
			return
		}
		r.zw = zw
		r.first = r.seq + 1
	}

	r.seq++
	line, err := json.Marshal(newEntry(r.seq, r.clock.Now(), env, handlers))
	if err != nil {
		r.logger.Warn("transcript: dropping entry", "kind", env.Name(), "error", err)
		return
	}
	line = append(line, '\n')
	if _, err := r.zw.Write(line); err != nil {
		r.logger.Error("transcript: write entry", "error", err)
		return
	}
	r.entries++
}

// Pending returns the number of entries not yet flushed.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries
}

// Flush compresses the current batch and puts it to the sink. It returns
// a zero Archive when nothing is buffered. On a sink error the batch is
// lost and the error returned.
func (r *Recorder) Flush(ctx context.Context) (Archive, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Archive{}, ErrRecorderClosed
	}
	data, n, first, err := r.cutLocked()
	r.mu.Unlock()
	if err != nil || n == 0 {
		return Archive{}, err
	}
	return r.put(ctx, data, n, first)
}

// cutLocked finishes the gzip stream and resets the batch.
func (r *Recorder) cutLocked() ([]byte, int, uint64, error) {
	if r.zw == nil || r.entries == 0 {
		return nil, 0, 0, nil
	}
	err := r.zw.Close()
	data := append([]byte(nil), r.buf.Bytes()...)
	n, first := r.entries, r.first
	r.buf.Reset()
	r.zw = nil
	r.entries = 0
	if err != nil {
		return nil, 0, 0, fmt.Errorf("transcript: finish archive: %w", err)
	}
	return data, n, first, nil
}

func (r *Recorder) put(ctx context.Context, data []byte, n int, first uint64) (Archive, error) {
	sum := blake3.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	a := Archive{
		Key:     r.key(first, digest),
		Entries: n,
		Bytes:   len(data),
		Digest:  digest,
	}
	if err := r.sink.Put(ctx, a.Key, data); err != nil {
		return Archive{}, fmt.Errorf("transcript: put %s: %w", a.Key, err)
	}
	r.logger.Info("transcript archived", "key", a.Key, "entries", a.Entries, "bytes", a.Bytes)
	return a, nil
}

func (r *Recorder) key(first uint64, digest string) string {
	day := r.clock.Now().UTC().Format("2006/01/02")
	return fmt.Sprintf("%s%s/%s-%08d-%s%s", r.prefix, day, r.session, first, digest[:16], archiveExt)
}

// Run flushes every interval until ctx is done, then flushes once more
// with a fresh context bounded by interval.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) error {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			_, err := r.Flush(final)
			return err
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil {
				r.logger.Warn("transcript flush failed", "error", err)
			}
		}
	}
}

// Close flushes what is buffered and stops recording.
func (r *Recorder) Close(ctx context.Context) (Archive, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Archive{}, nil
	}
	data, n, first, err := r.cutLocked()
	r.closed = true
	r.mu.Unlock()
	if err != nil || n == 0 {
		return Archive{}, err
	}
	return r.put(ctx, data, n, first)
}
