// Package s3store implements remote.ObjectStore on S3-compatible storage.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dukerupert/catalogops/internal/remote"
)

// maxDeleteKeys is the DeleteObjects limit per request.
const maxDeleteKeys = 1000

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, input *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type Store struct {
	client s3Client
	bucket string
}

// New creates a Store for cfg.Bucket using static credentials.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &Store{client: s3.New(opts), bucket: cfg.Bucket}, nil
}

func (s *Store) Location() remote.Location {
	return remote.Location{Scheme: "s3", Bucket: s.bucket}
}

func (s *Store) List(ctx context.Context, prefix string) ([]remote.Object, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var out []remote.Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, translate(err))
		}
		for _, obj := range page.Contents {
			o := remote.Object{Name: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				o.Updated = *obj.LastModified
			}
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}

	var failed []string
	var firstErr error
	for start := 0; start < len(objects); start += maxDeleteKeys {
		end := min(start+maxDeleteKeys, len(objects))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, o := range objects[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(o.Name)})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			for _, id := range ids {
				failed = append(failed, aws.ToString(id.Key))
			}
			if firstErr == nil {
				firstErr = translate(err)
			}
			continue
		}
		for _, e := range out.Errors {
			failed = append(failed, aws.ToString(e.Key))
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %s", aws.ToString(e.Code), aws.ToString(e.Message))
			}
		}
	}

	if len(failed) > 0 {
		return &remote.DeleteError{Prefix: prefix, Failed: failed, Err: firstErr}
	}
	return nil
}

func (s *Store) Put(ctx context.Context, name string, r io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", translate(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", translate(err))
	}
	return result.Body, nil
}

// translate maps SDK errors onto the remote error values.
func translate(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return remote.ErrNotFound
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		if re.HTTPStatusCode() == 404 {
			return remote.ErrNotFound
		}
		body := re.Error()
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			body = apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()
		}
		return &remote.StatusError{Code: re.HTTPStatusCode(), Body: body}
	}
	return err
}
