package transcript

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"

	"github.com/vango-dev/boardsync/pkg/protocol"
)

// Entry is one recorded envelope.
type Entry struct {
	Seq        uint64           `json:"seq"`
	ObservedAt time.Time        `json:"observedAt"`
	Kind       string           `json:"kind"`
	Handlers   int              `json:"handlers"`
	EmittedAt  time.Time        `json:"emittedAt"`
	SessionID  string           `json:"sessionId,omitempty"`
	UserID     *protocol.UserID `json:"userId,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
}

func newEntry(seq uint64, at time.Time, env protocol.Envelope, handlers int) Entry {
	return Entry{
		Seq:        seq,
		ObservedAt: at.UTC(),
		Kind:       env.Name(),
		Handlers:   handlers,
		EmittedAt:  env.EmittedAt,
		SessionID:  env.SessionID,
		UserID:     env.UserID,
		Payload:    env.Payload,
	}
}

// Envelope rebuilds the recorded envelope.
func (e Entry) Envelope() protocol.Envelope {
	kind, _ := protocol.ParseKind(e.Kind)
	return protocol.Envelope{
		Kind:      kind,
		RawKind:   e.Kind,
		Payload:   e.Payload,
		EmittedAt: e.EmittedAt,
		SessionID: e.SessionID,
		UserID:    e.UserID,
	}
}

// ReadArchive decodes a gzip-compressed JSON lines archive.
func ReadArchive(r io.Reader) ([]Entry, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("transcript: open archive: %w", err)
	}
	defer zr.Close()

	var entries []Entry
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 2*protocol.MaxFrameSize)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("transcript: line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("transcript: read archive: %w", err)
	}
	return entries, nil
}

// ErrDigestMismatch is returned by VerifyDigest when an archive's bytes
// do not hash to the digest in its key.
var ErrDigestMismatch = errors.New("transcript: digest mismatch")

const archiveExt = ".jsonl.gz"

// VerifyDigest checks data against the digest embedded in an archive key
// or file name.
func VerifyDigest(key string, data []byte) error {
	name := path.Base(key)
	if !strings.HasSuffix(name, archiveExt) {
		return fmt.Errorf("transcript: %q is not an archive name", name)
	}
	name = strings.TrimSuffix(name, archiveExt)
	i := strings.LastIndexByte(name, '-')
	if i < 0 || len(name)-i-1 != 16 {
		return fmt.Errorf("transcript: %q has no digest", key)
	}
	want := name[i+1:]

	sum := blake3.Sum256(data)
	if got := hex.EncodeToString(sum[:8]); got != want {
		return fmt.Errorf("%w: key has %s, contents hash to %s", ErrDigestMismatch, want, got)
	}
	return nil
}
