// Package s3 implements a block store backed by Amazon S3 or any
// S3-compatible service (MinIO, Localstack, Cubbit DS3, ...).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kestrelfs/kestrel/pkg/blocks"
	"github.com/kestrelfs/kestrel/pkg/crypto"
)

// S3BlockStore implements blocks.Store on top of an S3 bucket.
//
// Object Key Design:
//   - Blocks:        <prefix>blk/<cid>   (immutable, write-once)
//   - Root pointers: <prefix>root/<owner> (small text objects, overwritten)
//
// Because block keys are content addresses, re-uploading an existing block
// is harmless: the object body is byte-identical. Root pointer objects are
// overwritten in place; S3's PutObject is the last-writer-wins commit point,
// matching the semantics of the other backends.
//
// All request signing happens inside the AWS SDK; this package never builds
// or signs requests by hand.
type S3BlockStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	hasher    crypto.Hasher
}

// S3BlockStoreConfig contains the configuration for an S3 block store.
type S3BlockStoreConfig struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, for example
	// "kestrel/" to share a bucket with other data.
	KeyPrefix string
}

// NewS3BlockStore creates an S3-backed block store and verifies bucket
// access with a HeadBucket call.
func NewS3BlockStore(ctx context.Context, cfg S3BlockStoreConfig, hasher crypto.Hasher) (*S3BlockStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 block store: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 block store: bucket is required")
	}

	store := &S3BlockStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		hasher:    hasher,
	}

	_, err := store.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(store.bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %s: %w", store.bucket, err)
	}

	return store, nil
}

func (s *S3BlockStore) blockKey(cid blocks.Cid) string {
	return s.keyPrefix + "blk/" + string(cid)
}

func (s *S3BlockStore) rootKey(owner string) string {
	return s.keyPrefix + "root/" + owner
}

// Put uploads data under its content identifier.
func (s *S3BlockStore) Put(ctx context.Context, data []byte) (blocks.Cid, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cid := blocks.NewCid(s.hasher, data)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.blockKey(cid)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to write block to S3: %w", err)
	}

	return cid, nil
}

// Get downloads the block bytes for cid.
func (s *S3BlockStore) Get(ctx context.Context, cid blocks.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.blockKey(cid)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("block %s: %w", cid, blocks.ErrBlockNotFound)
		}
		return nil, fmt.Errorf("failed to read block from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read block body: %w", err)
	}

	return data, nil
}

// Has checks block existence with a HeadObject call.
func (s *S3BlockStore) Has(ctx context.Context, cid blocks.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.blockKey(cid)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check block in S3: %w", err)
	}

	return true, nil
}

// GetRoot downloads the root pointer object for owner.
func (s *S3BlockStore) GetRoot(ctx context.Context, owner string) (blocks.Cid, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.rootKey(owner)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read root pointer from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read root pointer body: %w", err)
	}

	return blocks.Cid(data), true, nil
}

// SetRoot overwrites the root pointer object for owner. Last writer wins.
func (s *S3BlockStore) SetRoot(ctx context.Context, owner string, cid blocks.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.rootKey(owner)),
		Body:   bytes.NewReader([]byte(cid)),
	})
	if err != nil {
		return fmt.Errorf("failed to write root pointer to S3: %w", err)
	}

	return nil
}

// Close is a no-op; the S3 client has no resources to release.
func (s *S3BlockStore) Close() error {
	return nil
}
