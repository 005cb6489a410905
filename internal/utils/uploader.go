package utils

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader stores chat attachments in object storage and hands back the
// public reference a message carries. The rest of the subsystem treats
// attachments as opaque url/name/size triples.
type Uploader struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewUploader(endpoint, accessKey, secretKey, bucket, publicBase string) (*Uploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &Uploader{client: client, bucket: bucket, publicBase: publicBase}, nil
}

func (u *Uploader) Store(ctx context.Context, reader io.Reader, name string, size int64, contentType string) (*models.FileRef, error) {
	objectName := fmt.Sprintf("support/%d%s", time.Now().UnixNano(), filepath.Ext(name))
	_, err := u.client.PutObject(ctx, u.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	return &models.FileRef{
		URL:  u.PublicURL(objectName),
		Name: name,
		Size: size,
	}, nil
}

func (u *Uploader) PublicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", u.publicBase, u.bucket, objectName)
}
