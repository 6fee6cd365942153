package store

import (
	"bytes"
	"io"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	raven "github.com/getsentry/raven-go"
)

// An S3 store keeps artifacts in an AWS S3 bucket. Do not change Bucket or
// Prefix concurrently with calls using the structure.
//
// Blob artifacts are modest in size, so objects are buffered in memory and
// sent with a single PutObject rather than a multipart upload.
type S3 struct {
	svc    *s3.S3
	Bucket string
	Prefix string
}

var _ Store = &S3{}

// NewS3 creates an S3 store using the given bucket, prepending prefix to
// all keys so one bucket can host several stores. The credentials in the
// session are used for all accesses.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		Bucket: bucket,
		Prefix: prefix,
		svc:    s3.New(awsSession),
	}
}

// List returns every key in this store. Only keys under the store's Prefix
// are reported, so it is safe to use on a bucket holding other objects.
func (s *S3) List() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(s.Bucket),
			Prefix: aws.String(s.Prefix),
		}
		err := s.svc.ListObjectsV2Pages(input,
			func(page *s3.ListObjectsV2Output, lastpage bool) bool {
				for _, obj := range page.Contents {
					out <- strings.TrimPrefix(*obj.Key, s.Prefix)
				}
				return !lastpage
			})
		if err != nil {
			log.Println("S3 List:", s.Prefix, err)
			raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix})
		}
	}()
	return out
}

// Open returns a reader over the content of the given key and its size.
func (s *S3) Open(key string) (io.ReadCloser, int64, error) {
	output, err := s.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		if e, ok := err.(awserr.Error); ok && (e.Code() == s3.ErrCodeNoSuchKey || e.Code() == "NotFound") {
			return nil, 0, ErrNotExist
		}
		return nil, 0, err
	}
	var size int64
	if output.ContentLength != nil {
		size = *output.ContentLength
	}
	return output.Body, size, nil
}

// Create returns a writer uploading to the given key. The object is
// buffered and sent when the writer is closed.
func (s *S3) Create(key string) (io.WriteCloser, error) {
	if s.exists(key) {
		return nil, ErrKeyExists
	}
	return &s3Writer{svc: s.svc, bucket: s.Bucket, key: s.Prefix + key}, nil
}

// Delete removes the given key from the store. It is not an error to delete
// something that doesn't exist.
func (s *S3) Delete(key string) error {
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		log.Println("S3 Delete:", s.Prefix, key, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Key": key})
	}
	return err
}

func (s *S3) exists(key string) bool {
	_, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	return err == nil
}

type s3Writer struct {
	svc    *s3.S3
	bucket string
	key    string
	buf    bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	_, err := w.svc.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		log.Println("S3 Create:", w.key, err)
		raven.CaptureError(err, map[string]string{"Bucket": w.bucket, "Key": w.key})
	}
	return err
}
