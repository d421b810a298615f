// Package backup uploads nightly sqlite snapshots to an S3 compatible bucket.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	keyPrefix  = "backups/"
	dateLayout = "2006-01-02"
)

// ObjectStore is the part of the S3 client the service needs.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Snapshotter writes a consistent copy of the database to a file.
type Snapshotter interface {
	SnapshotTo(ctx context.Context, path string) error
}

type Options struct {
	Key      string
	Secret   string
	Region   string
	Bucket   string
	Endpoint string
	// Dir holds the local snapshot until it is uploaded.
	Dir string
	// KeepDays prunes older uploads, 0 keeps everything.
	KeepDays int
}

type Service struct {
	store    ObjectStore
	db       Snapshotter
	bucket   string
	dir      string
	keepDays int
}

// NewClient builds an S3 client with static credentials. A custom endpoint switches
// to path style addressing for S3 compatible providers.
func NewClient(ctx context.Context, opts Options) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.Key, opts.Secret, "")),
		config.WithRegion(opts.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load storage config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewService(store ObjectStore, db Snapshotter, opts Options) *Service {
	dir := opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	return &Service{
		store:    store,
		db:       db,
		bucket:   opts.Bucket,
		dir:      dir,
		keepDays: opts.KeepDays,
	}
}

// Key is the object name of the snapshot taken on day.
func Key(day time.Time) string {
	return keyPrefix + day.UTC().Format(dateLayout) + ".db"
}

// Run snapshots the database, uploads it under Key(now) and prunes old uploads.
func (s *Service) Run(ctx context.Context, now time.Time) error {
	key := Key(now)
	local := filepath.Join(s.dir, path.Base(key))
	if err := s.db.SnapshotTo(ctx, local); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer os.Remove(local)

	file, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	start := time.Now()
	if _, err = s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("application/vnd.sqlite3"),
	}); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	slog.Info("Database backup uploaded",
		slog.String("type", "db"),
		slog.String("key", key),
		slog.Duration("took", time.Since(start)))

	if s.keepDays > 0 {
		pruned, err := s.Prune(ctx, now.AddDate(0, 0, -s.keepDays))
		if err != nil {
			return err
		}
		if pruned > 0 {
			slog.Info("Pruned old backups", slog.String("type", "db"), slog.Int("count", pruned))
		}
	}
	return nil
}

// Prune deletes uploads of days before cutoff.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	cutoffDay := cutoff.UTC().Format(dateLayout)

	var stale []types.ObjectIdentifier
	pages := s3.NewListObjectsV2Paginator(s.store, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range page.Contents {
			day := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(obj.Key), keyPrefix), ".db")
			if _, err := time.Parse(dateLayout, day); err != nil {
				continue
			}
			if day < cutoffDay {
				stale = append(stale, types.ObjectIdentifier{Key: obj.Key})
			}
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if _, err := s.store.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: stale, Quiet: aws.Bool(true)},
	}); err != nil {
		return 0, fmt.Errorf("delete old backups: %w", err)
	}
	return len(stale), nil
}
