package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/vango-dev/boardsync/internal/config"
	"github.com/vango-dev/boardsync/internal/errors"
	"github.com/vango-dev/boardsync/pkg/transcript"
)

// newRecorder builds a transcript recorder over the sink the project
// file selects. A bucket takes precedence over a directory.
func newRecorder(cfg *config.Config, session string, logger *slog.Logger) (*transcript.Recorder, error) {
	opts := []transcript.RecorderOption{
		transcript.WithLogger(logger),
		transcript.WithPrefix(cfg.Transcript.Prefix),
	}
	if kinds := cfg.TranscriptKinds(); len(kinds) > 0 {
		opts = append(opts, transcript.WithKinds(kinds...))
	}

	var sink transcript.Sink
	switch {
	case cfg.Transcript.Bucket != "":
		sink = transcript.NewS3Sink(newS3Client(cfg.Transcript), cfg.Transcript.Bucket, "")
		logger.Info("archiving transcripts", "bucket", cfg.Transcript.Bucket, "prefix", cfg.Transcript.Prefix)
	default:
		dir := cfg.Transcript.Dir
		if !filepath.IsAbs(dir) && cfg.Path() != "" {
			dir = filepath.Join(filepath.Dir(cfg.Path()), dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New("BS401").Wrap(err)
		}
		sink = transcript.NewFileSink(dir)
		logger.Info("archiving transcripts", "dir", dir)
	}
	return transcript.NewRecorder(session, sink, opts...), nil
}

// newS3Client builds an S3 client from the transcript settings and the
// standard AWS environment variables.
func newS3Client(tc config.TranscriptConfig) *s3.Client {
	region := tc.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(envCredentials()),
	}
	if tc.Endpoint != "" {
		opts.BaseEndpoint = aws.String(tc.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func envCredentials() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, errors.New("BS401").
				WithDetail("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set to archive to S3")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})
}

func transcriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect archived transcripts",
	}
	cmd.AddCommand(transcriptCatCmd())
	return cmd
}

func transcriptCatCmd() *cobra.Command {
	var (
		asJSON   bool
		noVerify bool
	)

	cmd := &cobra.Command{
		Use:   "cat FILE...",
		Short: "Print the envelopes in one or more archives",
		Long: `Print the envelopes recorded in transcript archives.

Each archive's contents are checked against the digest in its file name
unless --no-verify is given.

Examples:
  boardsync transcript cat transcripts/2026/01/02/*.jsonl.gz
  boardsync transcript cat --json archive.jsonl.gz | jq .kind`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				if err := catArchive(out, path, asJSON, !noVerify); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON lines")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip the digest check")
	return cmd
}

func catArchive(out io.Writer, path string, asJSON, verify bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New("BS402").Wrap(err)
	}
	if verify {
		if err := transcript.VerifyDigest(path, data); err != nil {
			return errors.New("BS403").Wrap(err).
				WithSuggestion("Pass --no-verify to read it anyway")
		}
	}
	entries, err := transcript.ReadArchive(bytes.NewReader(data))
	if err != nil {
		return errors.New("BS402").Wrap(err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		user := "-"
		if e.UserID != nil {
			user = fmt.Sprint(*e.UserID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.Seq, e.ObservedAt.Format(time.RFC3339), e.Kind, user, string(e.Payload))
	}
	return tw.Flush()
}
