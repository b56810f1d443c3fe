package cursor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.uber.org/zap"
)

type S3Option func(*S3Store)

func S3WithRegion(region string) S3Option {
	return func(s *S3Store) {
		s.Region = region
	}
}

func S3WithBucket(bucket string) S3Option {
	return func(s *S3Store) {
		s.Bucket = bucket
	}
}

func S3WithPrefix(prefix string) S3Option {
	return func(s *S3Store) {
		s.Prefix = prefix
	}
}

func S3WithEndpoint(endpoint string) S3Option {
	return func(s *S3Store) {
		s.Endpoint = endpoint
	}
}

func S3WithForcePathStyle(forcePathStyle bool) S3Option {
	return func(s *S3Store) {
		s.ForcePathStyle = forcePathStyle
	}
}

func S3WithLogger(l *zap.Logger) S3Option {
	return func(s *S3Store) {
		s.logger = l
	}
}

// S3Store keeps each cursor as a small object. Useful when the sync runs on
// ephemeral hosts with no stable disk.
type S3Store struct {
	logger *zap.Logger
	client *s3.S3

	Endpoint       string
	Region         string
	Bucket         string
	Prefix         string
	ForcePathStyle bool
}

func NewS3Store(opts ...S3Option) *S3Store {
	s := &S3Store{
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}

	awsConfig := &aws.Config{
		Region:           aws.String(s.Region),
		S3ForcePathStyle: aws.Bool(s.ForcePathStyle),
	}
	if s.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.Endpoint)
	}

	sess, _ := session.NewSession(awsConfig)
	s.client = s3.New(sess)

	return s
}

func (s *S3Store) key(key string) string {
	return path.Join(s.Prefix, key+".cursor")
}

func (s *S3Store) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			s.logger.Info("no cursor found", zap.String("key", key))
			return "", false, nil
		}
		return "", false, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, err
	}

	return strings.TrimSpace(string(data)), true, nil
}

func (s *S3Store) Put(ctx context.Context, key, value string) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader([]byte(value)),
	})
	if err != nil {
		return err
	}

	s.logger.Debug("cursor saved",
		zap.String("key", key),
		zap.String("bucket", s.Bucket),
		zap.String("object_path", s.key(key)),
	)
	return nil
}
