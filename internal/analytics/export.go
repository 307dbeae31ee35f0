package analytics

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ExportArchiver keeps a copy of every CSV export in S3.
type ExportArchiver struct {
	S3     ObjectPutter
	Bucket string
	Prefix string
}

func NewExportArchiver(client ObjectPutter, bucket string) *ExportArchiver {
	return &ExportArchiver{S3: client, Bucket: strings.TrimSpace(bucket), Prefix: "exports"}
}

// ExportKey is exports/<shop>/<timestamp>-<level>.csv.
func (a *ExportArchiver) ExportKey(shop string, level Level, at time.Time) string {
	prefix := strings.Trim(a.Prefix, "/")
	if prefix == "" {
		prefix = "exports"
	}
	return fmt.Sprintf("%s/%s/%s-%s.csv", prefix, strings.ToLower(shop), at.UTC().Format("20060102T150405Z"), level)
}

func (a *ExportArchiver) Archive(ctx context.Context, shop string, level Level, at time.Time, body []byte) (string, error) {
	key := a.ExportKey(shop, level, at)
	_, err := a.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("archive export %s: %w", key, err)
	}
	return key, nil
}
