// Package proofstore issues presigned S3 uploads for resolution proof images.
// The browser uploads the image directly; the returned s3:// reference is
// what a field officer passes as proof when resolving a complaint.
package proofstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"smartnagrik/backend/internal/apperr"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Presigner is satisfied by *s3.PresignClient.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload is what the client needs to PUT the image.
type Upload struct {
	URL       string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ProofRef  string            `json:"proof"`
	ExpiresIn int               `json:"expires_in"`
}

// Store presigns uploads into one bucket.
type Store struct {
	presigner Presigner
	bucket    string
	ttl       time.Duration
}

// New returns a Store over an existing presigner.
func New(p Presigner, bucket string, ttl time.Duration) *Store {
	return &Store{presigner: p, bucket: bucket, ttl: ttl}
}

// Connect loads the default AWS credential chain. A non-empty endpoint
// (e.g. a LocalStack or MinIO URL) switches to path-style addressing.
func Connect(ctx context.Context, region, endpoint, bucket string, ttl time.Duration) (*Store, error) {
	cfg, err := awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return New(s3.NewPresignClient(client), bucket, ttl), nil
}

// ValidateContentType returns the file extension for an allowed image type.
func ValidateContentType(contentType string) (string, error) {
	ext, ok := allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", apperr.Validation("content type %q is not allowed, use image/jpeg, image/png or image/webp", contentType)
	}
	return ext, nil
}

// BuildKey returns proofs/<number>/<uuid><ext>.
func BuildKey(complaintNumber, ext string) string {
	return path.Join("proofs", complaintNumber, uuid.New().String()+ext)
}

// Ref returns the s3:// reference stored on the complaint.
func (s *Store) Ref(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// PresignUpload reserves a key for complaintNumber and presigns a PUT for it.
func (s *Store) PresignUpload(ctx context.Context, complaintNumber, contentType string) (*Upload, error) {
	ext, err := ValidateContentType(contentType)
	if err != nil {
		return nil, err
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	key := BuildKey(complaintNumber, ext)

	input := &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		ContentType:          aws.String(contentType),
		Metadata:             map[string]string{"complaint_number": complaintNumber},
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	}
	req, err := s.presigner.PresignPutObject(ctx, input, func(o *s3.PresignOptions) { o.Expires = s.ttl })
	if err != nil {
		return nil, apperr.StoreUnavailable(err, "presign proof upload")
	}

	return &Upload{
		URL:    req.URL,
		Method: "PUT",
		Headers: map[string]string{
			"Content-Type":                 contentType,
			"x-amz-server-side-encryption": string(types.ServerSideEncryptionAes256),
			"x-amz-meta-complaint_number":  complaintNumber,
		},
		ProofRef:  s.Ref(key),
		ExpiresIn: int(s.ttl.Seconds()),
	}, nil
}
