package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ReasonUnparseable is reported when a URL does not name a bucket and key.
const ReasonUnparseable = "unable to parse bucket/key from url"

// HeadObjectAPI is the subset of the S3 client the prober uses.
type HeadObjectAPI interface {
	HeadObjectWithContext(ctx aws.Context, input *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error)
}

// S3Prober probes objects with HeadObject.
type S3Prober struct {
	client HeadObjectAPI
	logger *slog.Logger
}

// NewS3Client creates an S3 client for region using the default credential
// chain.
func NewS3Client(region string) (*s3.S3, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return s3.New(sess), nil
}

// NewS3Prober creates a prober using client.
func NewS3Prober(client HeadObjectAPI, logger *slog.Logger) *S3Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Prober{
		client: client,
		logger: logger.With(slog.String("component", "s3_prober")),
	}
}

var _ Prober = (*S3Prober)(nil)

// Probe implements Prober.
func (p *S3Prober) Probe(ctx context.Context, rawURL string) Check {
	loc, ok := ParseBucketKey(rawURL)
	if !ok {
		return reject(ReasonUnparseable)
	}

	_, err := p.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		reason := err.Error()
		var aerr awserr.Error
		if errors.As(err, &aerr) {
			reason = aerr.Code()
		}
		p.logger.Warn("HEAD validation failed",
			slog.String("bucket", loc.Bucket),
			slog.String("reason", reason))
		return reject(reason)
	}
	return pass()
}
