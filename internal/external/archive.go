package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"benefitclaims/internal/types"
)

// S3API is the subset of the S3 client used by S3Archiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes dead-lettered messages to S3 as JSON, one object per
// message under <prefix>/<type>/<yyyy>/<mm>/<dd>/<id>.json.
type S3Archiver struct {
	api    S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Archiver creates an S3Archiver.
func NewS3Archiver(api S3API, bucket, prefix string, logger *slog.Logger) *S3Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Archiver{api: api, bucket: bucket, prefix: prefix, logger: logger}
}

// Key returns the object key for dl.
func (a *S3Archiver) Key(dl *types.DeadLetter) string {
	return path.Join(a.prefix, string(dl.Type), dl.DeadLetteredAt.UTC().Format("2006/01/02"), dl.ID+".json")
}

// Archive uploads dl.
func (a *S3Archiver) Archive(ctx context.Context, dl *types.DeadLetter) error {
	body, err := json.Marshal(dl)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode dead letter", err)
	}

	key := a.Key(dl)
	_, err = a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"message-type":   string(dl.Type),
			"delivery-count": fmt.Sprintf("%d", dl.DeliveryCount),
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamArchive, "failed to archive dead letter to s3://"+a.bucket+"/"+key, err)
	}

	a.logger.InfoContext(ctx, "dead letter archived", "message_id", dl.ID, "bucket", a.bucket, "key", key)
	return nil
}
