package packager

import (
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/blocksmith-dev/blocksmith/internal/config"
	"github.com/blocksmith-dev/blocksmith/internal/errors"
	"github.com/blocksmith-dev/blocksmith/internal/logger"
)

// Uploader pushes packaged archives to S3-compatible object storage.
type Uploader struct {
	client *minio.Client
	bucket string
}

// NewUploader builds an uploader from the project upload configuration.
func NewUploader(cfg config.UploadConfig) (*Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, errors.ValidationError("no upload endpoint configured; set upload.endpoint in blocksmith.yaml")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.UnauthorizedError("upload credentials missing; set BLOCKSMITH_UPLOAD_ACCESS_KEY and BLOCKSMITH_UPLOAD_SECRET_KEY")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNetwork, "failed to create storage client")
	}
	return &Uploader{client: client, bucket: cfg.Bucket}, nil
}

// Upload sends an archive to the bucket under workspace/archive-name and
// returns the object key.
func (u *Uploader) Upload(ctx context.Context, workspace, archivePath string) (string, error) {
	key := path.Base(archivePath)
	if workspace != "" {
		key = path.Join(workspace, key)
	}

	info, err := u.client.FPutObject(ctx, u.bucket, key, archivePath, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeNetwork,
			fmt.Sprintf("failed to upload %s to bucket %s", key, u.bucket))
	}

	logger.Log.Infof("uploaded %s (%d bytes)", key, info.Size)
	return key, nil
}
