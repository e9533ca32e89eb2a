package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/stick95/fanpost/configs"
)

// Store reads source media objects from external blob storage. The engine
// never writes media; uploads belong to a collaborator.
type Store interface {
	Read(ctx context.Context, key string) (io.ReadCloser, int64, error)
	// PublicURL returns the public address of an object, for platforms that
	// pull media from a URL instead of accepting bytes.
	PublicURL(key string) string
}

type R2Store struct {
	config cfg.Config
	client *s3.Client
}

func NewR2Store(c cfg.Config) (*R2Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})

	return &R2Store{config: c, client: client}, nil
}

func (r *R2Store) Read(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.config.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}

	return out.Body, aws.ToInt64(out.ContentLength), nil
}

func (r *R2Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", r.config.R2.PublicURL, key)
}
