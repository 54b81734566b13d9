package filestore

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const defaultRegion = "us-west-1"

// S3FileStore stores uploaded images in an S3 bucket. When a CDN prefix is
// configured (IMAGE_CDN_PREFIX) returned urls point at the CDN instead of
// the bucket.
type S3FileStore struct {
	bucket    string
	cdnPrefix string
	uploader  *s3manager.Uploader
}

var _ ImageFileStore = (*S3FileStore)(nil)

func NewS3FileStore(bucket string) (*S3FileStore, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = defaultRegion
	}

	// AWS client session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &S3FileStore{
		bucket:    bucket,
		cdnPrefix: os.Getenv("IMAGE_CDN_PREFIX"),
		uploader:  s3manager.NewUploader(sess),
	}, nil
}

func (s *S3FileStore) Store(key string, data []byte, contentType string) (string, error) {
	res, err := s.uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}

	if s.cdnPrefix != "" {
		return fmt.Sprintf("%s%s", strings.TrimSuffix(s.cdnPrefix, "/")+"/", key), nil
	}
	return res.Location, nil
}
