// Package transcript records dispatched envelopes as gzip-compressed JSON
// lines and archives them to a Sink (a local directory or an S3 bucket).
//
// A Recorder is a dispatch.Observer, so it sees every envelope the client
// dispatches, including synthetic lifecycle events and unknown kinds:
//
//	rec := transcript.NewRecorder(sessionID, transcript.NewFileSink("./transcripts"))
//	registry.AddObserver(rec)
//	go rec.Run(ctx, time.Minute)
//
// Archive keys look like
//
//	<prefix>2026/01/02/<session>-<seq>-<digest>.jsonl.gz
//
// where digest is the first 16 hex characters of the BLAKE3 hash of the
// compressed archive.
package transcript
