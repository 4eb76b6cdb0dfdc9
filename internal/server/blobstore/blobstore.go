// Package blobstore removes encrypted document blobs from S3-compatible
// object storage once their vault has been purged.
package blobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
)

// maxBatch is the S3 DeleteObjects limit.
const maxBatch = 1000

// Deleter removes blobs by storage key.
type Deleter interface {
	Delete(ctx context.Context, keys []string) error
}

type objectsAPI interface {
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

var newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectsAPI {
	return s3.NewFromConfig(cfg, optFns...)
}

type S3Deleter struct {
	client objectsAPI
	bucket string
}

// NewS3Deleter builds a deleter for cfg.S3Bucket using static credentials.
func NewS3Deleter(ctx context.Context, cfg *config.Config) (*S3Deleter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Deleter{client: client, bucket: cfg.S3Bucket}, nil
}

// Delete removes keys in batches. Per-key failures reported by the store are
// joined into the returned error; the remaining batches are still attempted.
func (d *S3Deleter) Delete(ctx context.Context, keys []string) error {
	var errs []error
	for start := 0; start < len(keys); start += maxBatch {
		end := min(start+maxBatch, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("delete objects: %w", err))
			continue
		}
		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}
	return errors.Join(errs...)
}

// Nop discards deletions. Used when no bucket is configured.
type Nop struct{}

func (Nop) Delete(context.Context, []string) error { return nil }
