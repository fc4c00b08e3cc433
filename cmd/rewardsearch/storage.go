package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/rewardsearch/blobstore"
	miniostore "github.com/hupe1980/rewardsearch/blobstore/minio"
	s3store "github.com/hupe1980/rewardsearch/blobstore/s3"
	"github.com/hupe1980/rewardsearch/internal/config"
	"github.com/hupe1980/rewardsearch/internal/resource"
	"github.com/hupe1980/rewardsearch/trace/dynamo"
)

// openStore builds the blob store selected by cfg.
func openStore(ctx context.Context, cfg config.StorageConfig) (blobstore.BlobStore, error) {
	switch cfg.Driver {
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "local":
		return blobstore.NewLocalStore(cfg.Path), nil
	case "s3":
		var optFns []func(*awsconfig.LoadOptions) error
		if cfg.S3.Region != "" {
			optFns = append(optFns, awsconfig.WithRegion(cfg.S3.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			}
			o.UsePathStyle = cfg.S3.UsePathStyle
		})
		return s3store.NewStore(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	case "minio":
		client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, cfg.MinIO.Bucket, cfg.MinIO.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// openLedger builds the DynamoDB run ledger, or returns nil when disabled.
func openLedger(ctx context.Context, cfg config.LedgerConfig) (*dynamo.Ledger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamo.NewLedger(dynamodb.NewFromConfig(awsCfg), cfg.Table), nil
}

func newResourceController(cfg config.ResourceConfig) *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes: cfg.MemoryBytes,
		MaxWorkers:       cfg.Workers,
		RequestsPerSec:   cfg.RequestsPerSec,
		Burst:            cfg.Burst,
	})
}
