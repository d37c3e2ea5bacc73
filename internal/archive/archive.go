// Package archive keeps a copy of every delivered envelope in S3 so the
// exact mail that left the system can be inspected later.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/impression/internal/domain"
)

// Config selects the archive bucket.
type Config struct {
	Bucket   string
	Prefix   string // e.g. "impression/sent"
	Region   string
	Compress bool // gzip objects and add a .gz suffix
}

// s3API is the subset of the S3 client the archiver uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Record is the archived document.
type Record struct {
	MessageID  string              `json:"message_id"`
	ServiceID  string              `json:"service_id"`
	Principal  domain.PrincipalRef `json:"principal"`
	Created    time.Time           `json:"created"`
	Sent       *time.Time          `json:"sent"`
	Envelope   *domain.Envelope    `json:"envelope"`
	ArchivedAt time.Time           `json:"archived_at"`
}

// S3Archiver implements message.Archiver on S3.
type S3Archiver struct {
	client   s3API
	bucket   string
	prefix   string
	compress bool
	now      func() time.Time
}

// NewS3Archiver loads the default AWS config for cfg.Region. It returns
// nil, nil when no bucket is configured so callers can leave archiving off.
func NewS3Archiver(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newS3Archiver(s3.NewFromConfig(awsCfg), cfg), nil
}

func newS3Archiver(client s3API, cfg Config) *S3Archiver {
	return &S3Archiver{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		compress: cfg.Compress,
		now:      time.Now,
	}
}

// Ping checks that the bucket exists and is reachable.
func (a *S3Archiver) Ping(ctx context.Context) error {
	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Key returns <prefix>/<yyyy>/<mm>/<dd>/<message-id>.json for a message
// sent at t.
func (a *S3Archiver) Key(messageID string, t time.Time) string {
	t = t.UTC()
	name := messageID + ".json"
	if a.compress {
		name += ".gz"
	}
	return path.Join(a.prefix, t.Format("2006"), t.Format("01"), t.Format("02"), name)
}

// Archive uploads env for msg.
func (a *S3Archiver) Archive(ctx context.Context, msg *domain.Message, env *domain.Envelope) error {
	now := a.now()
	sentAt := now
	if msg.Sent != nil {
		sentAt = *msg.Sent
	}
	data, err := json.Marshal(Record{
		MessageID:  msg.ID,
		ServiceID:  msg.ServiceID,
		Principal:  msg.Principal,
		Created:    msg.Created,
		Sent:       msg.Sent,
		Envelope:   env,
		ArchivedAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal archive record: %w", err)
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(msg.ID, sentAt)),
		ContentType: aws.String("application/json"),
	}
	if a.compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return fmt.Errorf("compress archive record: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("compress archive record: %w", err)
		}
		data = buf.Bytes()
		in.ContentEncoding = aws.String("gzip")
	}
	in.Body = bytes.NewReader(data)

	if _, err := a.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, aws.ToString(in.Key), err)
	}
	return nil
}
