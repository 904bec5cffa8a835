package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/kestrelfs/kestrel/internal/logger"
	"github.com/kestrelfs/kestrel/pkg/blocks"
	blocksBadger "github.com/kestrelfs/kestrel/pkg/blocks/badger"
	blocksMemory "github.com/kestrelfs/kestrel/pkg/blocks/memory"
	blocksS3 "github.com/kestrelfs/kestrel/pkg/blocks/s3"
	"github.com/kestrelfs/kestrel/pkg/crypto"
)

// CreateBlockStore creates a block store based on configuration.
//
// The Type field selects the backend; the matching untyped section is
// decoded into the backend's option struct and passed to its constructor.
//
// Supported types:
//   - "memory": ephemeral in-memory storage
//   - "badger": embedded BadgerDB storage, persistent
//   - "s3": Amazon S3 or compatible storage (MinIO, Localstack)
func CreateBlockStore(ctx context.Context, cfg *StoreConfig, hasher crypto.Hasher) (blocks.Store, error) {
	switch cfg.Type {
	case "memory":
		return blocksMemory.NewMemoryBlockStore(ctx, hasher)
	case "badger":
		return createBadgerBlockStore(ctx, cfg.Badger, hasher)
	case "s3":
		return createS3BlockStore(ctx, cfg.S3, hasher)
	default:
		return nil, fmt.Errorf("unknown block store type: %q (supported: memory, badger, s3)", cfg.Type)
	}
}

func createBadgerBlockStore(ctx context.Context, options map[string]any, hasher crypto.Hasher) (blocks.Store, error) {
	type BadgerBlockStoreOptions struct {
		Path string `mapstructure:"path"`
	}

	var storeOpts BadgerBlockStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger block store options: %w", err)
	}

	if storeOpts.Path == "" {
		return nil, fmt.Errorf("badger block store: path is required")
	}

	store, err := blocksBadger.NewBadgerBlockStore(ctx, storeOpts.Path, hasher)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger block store: %w", err)
	}

	logger.Info("badger block store initialized: path=%s", storeOpts.Path)
	return store, nil
}

func createS3BlockStore(ctx context.Context, options map[string]any, hasher crypto.Hasher) (blocks.Store, error) {
	type S3BlockStoreOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
	}

	var storeOpts S3BlockStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 block store options: %w", err)
	}

	if storeOpts.Bucket == "" {
		return nil, fmt.Errorf("S3 block store: bucket is required")
	}
	if storeOpts.Region == "" {
		return nil, fmt.Errorf("S3 block store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(storeOpts.Region))

	// Static credentials when provided, default credential chain otherwise.
	if storeOpts.AccessKeyID != "" && storeOpts.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(storeOpts.AccessKeyID, storeOpts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoint with path-style addressing for MinIO/Localstack.
		if storeOpts.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeOpts.Endpoint)
			o.UsePathStyle = true
		}
	})

	store, err := blocksS3.NewS3BlockStore(ctx, blocksS3.S3BlockStoreConfig{
		Client:    client,
		Bucket:    storeOpts.Bucket,
		KeyPrefix: storeOpts.KeyPrefix,
	}, hasher)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 block store: %w", err)
	}

	logger.Info("S3 block store initialized: bucket=%s, region=%s, prefix=%s",
		storeOpts.Bucket, storeOpts.Region, storeOpts.KeyPrefix)

	return store, nil
}
