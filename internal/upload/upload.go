// Package upload sends exported scene files to S3-compatible storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/OCAP2/trcimport/internal/config"
	"github.com/OCAP2/trcimport/internal/storage"
)

// ErrNoExport is returned when the backend has not written a file.
var ErrNoExport = errors.New("backend has no exported file")

// s3Uploader is the part of s3manager.Uploader used here.
type s3Uploader interface {
	UploadWithContext(ctx context.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// Uploader wraps the S3 upload manager.
type Uploader struct {
	s3Uploader s3Uploader
	cfg        config.UploadConfig
}

// New creates an Uploader from static credentials. A custom endpoint
// switches to path-style addressing for MinIO and similar servers.
func New(cfg config.UploadConfig) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("upload bucket not configured")
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS session: %w", err)
	}

	return &Uploader{
		s3Uploader: s3manager.NewUploader(sess),
		cfg:        cfg,
	}, nil
}

// Key returns the object key for a local file.
func (u *Uploader) Key(localPath string) string {
	return path.Join(u.cfg.Prefix, filepath.Base(localPath))
}

// UploadExport uploads the file written by src and returns its URL.
func (u *Uploader) UploadExport(ctx context.Context, src storage.Uploadable) (string, error) {
	filePath := src.GetExportedFilePath()
	if filePath == "" {
		return "", ErrNoExport
	}

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("error opening export: %w", err)
	}
	defer f.Close()

	meta := src.GetExportMetadata()
	key := u.Key(filePath)
	out, err := u.s3Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
		Metadata: map[string]*string{
			"import-id":    aws.String(meta.ImportID),
			"source-name":  aws.String(meta.SourceName),
			"marker-count": aws.String(strconv.Itoa(meta.MarkerCount)),
			"frame-count":  aws.String(strconv.Itoa(meta.FrameCount)),
			"duration":     aws.String(strconv.FormatFloat(meta.Duration, 'f', 3, 64)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("error uploading %s: %w", key, err)
	}

	if out != nil && out.Location != "" {
		return out.Location, nil
	}
	return fmt.Sprintf("%s/%s/%s", u.cfg.Endpoint, u.cfg.Bucket, key), nil
}
