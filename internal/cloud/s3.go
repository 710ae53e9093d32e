package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

var cloudTracer = otel.Tracer("guardian.internal.cloud")

// S3API is the subset of the S3 client used by S3Uploader.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Uploader stores the frame and its metadata under a date partition and
// appends a line to the monthly manifest.
type S3Uploader struct {
	client S3API
	bucket string
	logger *logging.Logger
}

// ManifestEntry is one JSONL line in the monthly manifest.
type ManifestEntry struct {
	EvidenceID  string `json:"evidence_id"`
	ImageKey    string `json:"image_key"`
	MetadataKey string `json:"metadata_key"`
	ThreatLevel string `json:"threat_level,omitempty"`
	TriggerType string `json:"trigger_type"`
	CapturedAt  string `json:"captured_at"`
	Contacts    int    `json:"contacts"`
}

type metadataRecord struct {
	evidence.Item
	ImageURL any      `json:"imageUrl,omitempty"`
	ImageKey string   `json:"imageKey"`
	Contacts []string `json:"contacts,omitempty"`
}

func NewS3Uploader(client S3API, bucket string, logger *logging.Logger) *S3Uploader {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Uploader{client: client, bucket: bucket, logger: logger}
}

// Enabled reports whether a bucket and client are configured.
func (u *S3Uploader) Enabled() bool {
	return u != nil && u.bucket != "" && u.client != nil
}

func (u *S3Uploader) Upload(ctx context.Context, item evidence.Item, contacts []settings.Contact) error {
	if !u.Enabled() {
		return errors.New("cloud: s3 uploader not configured")
	}
	ctx, span := cloudTracer.Start(ctx, "cloud.s3_upload")
	defer span.End()
	span.SetAttributes(attribute.String("guardian.evidence.id", item.ID))

	image, err := item.ImageData()
	if err != nil {
		span.RecordError(err)
		return err
	}

	imageKey, metaKey := u.keys(item)
	if err := u.put(ctx, imageKey, image, "image/jpeg"); err != nil {
		span.RecordError(err)
		return err
	}

	names := make([]string, 0, len(contacts))
	for _, c := range contacts {
		names = append(names, c.Email)
	}
	meta, err := json.Marshal(metadataRecord{Item: item, ImageKey: imageKey, Contacts: names})
	if err != nil {
		return fmt.Errorf("cloud: marshal metadata: %w", err)
	}
	if err := u.put(ctx, metaKey, meta, "application/json"); err != nil {
		span.RecordError(err)
		return err
	}

	entry := ManifestEntry{
		EvidenceID:  item.ID,
		ImageKey:    imageKey,
		MetadataKey: metaKey,
		TriggerType: string(item.TriggerType),
		CapturedAt:  time.UnixMilli(item.Timestamp).UTC().Format(time.RFC3339),
		Contacts:    len(contacts),
	}
	if item.Analysis != nil {
		entry.ThreatLevel = string(item.Analysis.ThreatLevel)
	}
	if err := u.appendManifest(ctx, time.UnixMilli(item.Timestamp).UTC(), entry); err != nil {
		u.logger.Warn("failed to append evidence manifest", "error", err, "evidence_id", item.ID)
	}

	u.logger.Info("evidence secured in s3", "evidence_id", item.ID, "s3_key", imageKey)
	return nil
}

// Location returns the s3:// URI of the stored frame.
func (u *S3Uploader) Location(item evidence.Item) string {
	imageKey, _ := u.keys(item)
	return fmt.Sprintf("s3://%s/%s", u.bucket, imageKey)
}

func (u *S3Uploader) keys(item evidence.Item) (string, string) {
	at := time.UnixMilli(item.Timestamp).UTC()
	prefix := fmt.Sprintf("evidence/v1/by-date/%d/%02d/%02d/%s", at.Year(), at.Month(), at.Day(), item.ID)
	return prefix + ".jpg", prefix + ".json"
}

func (u *S3Uploader) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("cloud: s3 put %s: %w", key, err)
	}
	return nil
}

// appendManifest does a read-modify-write since S3 has no append.
func (u *S3Uploader) appendManifest(ctx context.Context, at time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cloud: marshal manifest entry: %w", err)
	}
	key := fmt.Sprintf("evidence/v1/manifests/%d-%02d.jsonl", at.Year(), at.Month())

	var existing []byte
	resp, err := u.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("cloud: read manifest %s: %w", key, err)
		}
	case isNoSuchKey(err):
		u.logger.Debug("manifest not found, creating new", "key", key)
	default:
		return fmt.Errorf("cloud: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')
	return u.put(ctx, key, buf.Bytes(), "application/x-ndjson")
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}
