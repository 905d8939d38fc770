package outcome

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveSink writes each outcome to S3 as a zstd-compressed JSON object
// under {prefix}{yyyy}/{mm}/{dd}/{eventId}.json.zst.
type ArchiveSink struct {
	client s3API
	bucket string
	prefix string
}

func NewArchiveSink(client *s3.Client, bucket, prefix string) *ArchiveSink {
	return &ArchiveSink{client: client, bucket: bucket, prefix: prefix}
}

func (s *ArchiveSink) Name() string { return "archive" }

// archiveKey returns the object key for o.
func (s *ArchiveSink) archiveKey(o Outcome) string {
	return fmt.Sprintf("%s%s/%s.json.zst", s.prefix, o.DecidedAt.UTC().Format("2006/01/02"), o.EventID)
}

func (s *ArchiveSink) Record(ctx context.Context, o Outcome) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return fmt.Errorf("compress outcome: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish zstd stream: %w", err)
	}

	key := s.archiveKey(o)
	contentType := "application/json"
	contentEncoding := "zstd"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          &s.bucket,
		Key:             &key,
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     &contentType,
		ContentEncoding: &contentEncoding,
	})
	if err != nil {
		return fmt.Errorf("PutObject %s: %w", key, err)
	}

	log.Debug().
		Str("key", key).
		Int("rawBytes", len(raw)).
		Int("storedBytes", buf.Len()).
		Msg("Outcome archived to S3")
	return nil
}
