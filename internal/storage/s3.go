package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cloo-solutions/doctalk/internal/domain"
)

const documentPrefix = "documents/"

// DocumentArchiveConfig holds configuration for DocumentArchive
type DocumentArchiveConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// DocumentArchive keeps the raw pages of every ingested document in
// S3-compatible storage (e.g., RustFS), so the vector index can be rebuilt
// without re-uploading anything.
type DocumentArchive struct {
	client *s3.Client
	bucket string
}

// NewDocumentArchive creates a DocumentArchive with the given configuration
func NewDocumentArchive(ctx context.Context, cfg DocumentArchiveConfig) (*DocumentArchive, error) {
	// Create custom resolver for S3-compatible endpoints
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing for S3-compatible services
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &DocumentArchive{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// PutDocument stores a document's pages as a JSON object. Re-archiving the
// same filename overwrites the previous copy.
func (a *DocumentArchive) PutDocument(ctx context.Context, doc domain.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", doc.Filename, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(documentKey(doc.Filename)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive document %s: %w", doc.Filename, err)
	}
	return nil
}

// GetDocument fetches one archived document by filename.
func (a *DocumentArchive) GetDocument(ctx context.Context, filename string) (*domain.Document, error) {
	output, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(documentKey(filename)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", filename, err)
	}
	defer output.Body.Close()

	return decodeDocument(output.Body, filename)
}

// ListDocuments returns every archived document.
func (a *DocumentArchive) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	var continuation *string

	for {
		output, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.bucket),
			Prefix:            aws.String(documentPrefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list archived documents: %w", err)
		}

		for _, obj := range output.Contents {
			filename := filenameFromKey(aws.ToString(obj.Key))
			if filename == "" {
				continue
			}
			doc, err := a.GetDocument(ctx, filename)
			if err != nil {
				return nil, err
			}
			docs = append(docs, *doc)
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		continuation = output.NextContinuationToken
	}

	return docs, nil
}

// DeleteDocument removes an archived document.
func (a *DocumentArchive) DeleteDocument(ctx context.Context, filename string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(documentKey(filename)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", filename, err)
	}
	return nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *DocumentArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil // Bucket exists
	}

	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

func documentKey(filename string) string {
	return documentPrefix + filename + ".json"
}

func filenameFromKey(key string) string {
	name := strings.TrimPrefix(key, documentPrefix)
	if name == key || !strings.HasSuffix(name, ".json") {
		return ""
	}
	return strings.TrimSuffix(name, ".json")
}

func decodeDocument(r io.Reader, filename string) (*domain.Document, error) {
	var doc domain.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", filename, err)
	}
	if doc.Filename == "" {
		doc.Filename = filename
	}
	return &doc, nil
}
