package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hypernova-labs/fiscal-hub/internal/config"
	"github.com/sirupsen/logrus"
)

// Mirror replica artefatos em um storage compatível com S3 (endpoint da
// Supabase ou qualquer outro). O disco local continua sendo a fonte da
// verdade; falha no espelho nunca falha a recuperação.
type Mirror struct {
	s3Client *s3.Client
	bucket   string
	logger   *logrus.Logger
}

// NewMirror cria o espelho S3 a partir da configuração de storage
func NewMirror(cfg *config.StorageConfig, logger *logrus.Logger) (*Mirror, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.MirrorEndpoint,
			SigningRegion:     cfg.MirrorRegion,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			},
		}),
		awsconfig.WithRegion(cfg.MirrorRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// endpoints tipo Supabase exigem path-style
		o.UsePathStyle = true
	})

	return &Mirror{
		s3Client: s3Client,
		bucket:   cfg.MirrorBucket,
		logger:   logger,
	}, nil
}

// HealthCheck verifica o acesso ao bucket do espelho
func (m *Mirror) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := m.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(m.bucket),
	})
	if err != nil {
		return fmt.Errorf("error checking mirror storage connection: %w", err)
	}

	return nil
}

// Upload replica um artefato no bucket do espelho
func (m *Mirror) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("error uploading artifact to mirror: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"bucket": m.bucket,
		"key":    key,
		"size":   len(data),
	}).Debug("Artifact mirrored")

	return nil
}
