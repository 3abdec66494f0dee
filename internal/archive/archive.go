// Package archive keeps a copy of the final results of deleted polls in an
// S3 compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gravadigital/polls-api/internal/config"
	"github.com/gravadigital/polls-api/internal/domain/poll"
	"github.com/gravadigital/polls-api/internal/logger"
)

// Archiver stores the final tally of a poll
type Archiver interface {
	ArchiveResults(ctx context.Context, results *poll.PollWithOptionsAndResults) error
}

// Snapshot is the document written for each archived poll
type Snapshot struct {
	Poll       poll.Poll         `json:"poll"`
	Options    []poll.PollOption `json:"options"`
	Results    []poll.PollResult `json:"results"`
	TotalVotes int64             `json:"total_votes"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// ObjectPutter is the part of *minio.Client used by the archiver
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Noop discards everything; used when archiving is disabled
type Noop struct{}

func (Noop) ArchiveResults(context.Context, *poll.PollWithOptionsAndResults) error {
	return nil
}

// MinioArchiver writes snapshots as JSON objects
type MinioArchiver struct {
	client ObjectPutter
	bucket string
	log    *log.Logger
	now    func() time.Time
}

// NewMinioArchiver wraps an object store client
func NewMinioArchiver(client ObjectPutter, bucket string) *MinioArchiver {
	return &MinioArchiver{
		client: client,
		bucket: bucket,
		log:    logger.Service("archive"),
		now:    time.Now,
	}
}

// New builds the archiver described by the configuration. The bucket is
// created when missing.
func New(ctx context.Context, cfg *config.Config) (Archiver, error) {
	log := logger.Service("archive")

	if !cfg.Archive.Enabled {
		log.Debug("Results archive disabled")
		return Noop{}, nil
	}

	client, err := minio.New(cfg.Archive.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Archive.AccessKey, cfg.Archive.SecretKey, ""),
		Secure: cfg.Archive.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Archive.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Archive.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Archive.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Archive.Bucket, err)
		}
		log.Info("Created results bucket", "bucket", cfg.Archive.Bucket)
	}

	log.Info("Results archive enabled", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	return NewMinioArchiver(client, cfg.Archive.Bucket), nil
}

// ObjectName is the key under which a poll's snapshot is stored
func ObjectName(pollID fmt.Stringer, at time.Time) string {
	return fmt.Sprintf("polls/%s/results-%s.json", pollID, at.UTC().Format("20060102T150405Z"))
}

func (a *MinioArchiver) ArchiveResults(ctx context.Context, results *poll.PollWithOptionsAndResults) error {
	now := a.now()

	payload, err := json.Marshal(Snapshot{
		Poll:       results.Poll,
		Options:    results.Options,
		Results:    results.Results,
		TotalVotes: results.TotalVotes,
		ArchivedAt: now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	name := ObjectName(results.ID, now)
	_, err = a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		a.log.Error("Failed to archive results", "poll_id", results.ID, "object", name, "error", err)
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}

	a.log.Info("Archived poll results", "poll_id", results.ID, "object", name, "total_votes", results.TotalVotes)
	return nil
}
