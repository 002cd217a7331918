package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/datatypes"

	"github.com/warrantyvault/backend/internal/extraction"
	"github.com/warrantyvault/backend/internal/warranties"
	"github.com/warrantyvault/backend/pkg/db/models"
	"github.com/warrantyvault/backend/pkg/enums"
	pkgerrors "github.com/warrantyvault/backend/pkg/errors"
	"github.com/warrantyvault/backend/pkg/logger"
	"github.com/warrantyvault/backend/pkg/metrics"
)

// Mime types accepted for warranty documents. The sniffed type is
// authoritative; the client-declared Content-Type is ignored.
var allowedMimeTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

const (
	storageRetryAttempts = 2
	storageRetryBackoff  = 200 * time.Millisecond
)

type warrantiesRepository interface {
	Create(ctx context.Context, record *models.Warranty) (*models.Warranty, error)
}

type storageClient interface {
	UploadObject(ctx context.Context, bucket, object, contentType string, body io.Reader) error
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
	DeleteObject(ctx context.Context, bucket, object string) error
}

type extractor interface {
	Extract(ctx context.Context, doc extraction.Document) (*extraction.Result, error)
}

// UploadInput is a received warranty document. Data is the full file body;
// mime type and size are validated from the bytes, not from the request.
type UploadInput struct {
	FileName string
	Data     []byte
}

// Service runs the upload pipeline: validate, store, extract, reconcile,
// persist. Extraction failure degrades the record instead of failing the
// upload; a failed insert removes the stored object.
type Service interface {
	UploadAndExtract(ctx context.Context, ownerID uuid.UUID, input UploadInput) (*warranties.Record, error)
}

// Config carries the pipeline tunables.
type Config struct {
	Bucket              string
	MaxUploadBytes      int64
	SignedURLTTL        time.Duration
	DefaultDurationDays int
}

type service struct {
	repo      warrantiesRepository
	storage   storageClient
	extractor extractor
	logg      *logger.Logger
	pipeline  *metrics.PipelineMetrics
	cfg       Config
	now       func() time.Time
}

// NewService builds the upload pipeline service.
func NewService(repo warrantiesRepository, storage storageClient, ext extractor, logg *logger.Logger, pipeline *metrics.PipelineMetrics, cfg Config) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("warranty repository required")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage client required")
	}
	if ext == nil {
		return nil, fmt.Errorf("extraction service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket required")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	if cfg.SignedURLTTL <= 0 {
		return nil, fmt.Errorf("signed url ttl must be positive")
	}
	if cfg.DefaultDurationDays <= 0 {
		return nil, fmt.Errorf("default duration days must be positive")
	}
	return &service{
		repo:      repo,
		storage:   storage,
		extractor: ext,
		logg:      logg,
		pipeline:  pipeline,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

func (s *service) UploadAndExtract(ctx context.Context, ownerID uuid.UUID, input UploadInput) (*warranties.Record, error) {
	mimeType, err := s.validate(ownerID, input)
	if err != nil {
		s.pipeline.IncUpload("rejected")
		return nil, err
	}

	objectKey := buildObjectKey(ownerID, uuid.New(), input.FileName)

	if err := s.store(ctx, objectKey, mimeType, input.Data); err != nil {
		s.pipeline.IncUpload("store_failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store warranty file")
	}

	row := &models.Warranty{
		UserID:           ownerID,
		FilePath:         objectKey,
		FileName:         strings.TrimSpace(input.FileName),
		MimeType:         mimeType,
		ExpirySource:     enums.ExpirySourceNone,
		ProcessingStatus: enums.ProcessingStatusFailed,
	}

	result, extractErr := s.runExtraction(ctx, objectKey, mimeType, input.Data)
	if extractErr != nil {
		// The file is stored and the record is kept with null fields; the
		// user can fill them in by hand. The upload itself does not fail.
		failCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":   ownerID.String(),
			"file_path": objectKey,
			"error":     extractErr.Error(),
		})
		s.logg.Warn(failCtx, "extraction failed; saving record without extracted fields")
	} else {
		s.applyExtraction(ctx, row, result)
		row.ProcessingStatus = enums.ProcessingStatusCompleted
	}

	created, err := s.repo.Create(ctx, row)
	if err != nil {
		// No orphaned files: a record that never existed must not leave its
		// object behind.
		if cleanupErr := s.storage.DeleteObject(ctx, s.cfg.Bucket, objectKey); cleanupErr != nil {
			cleanupCtx := s.logg.WithFields(ctx, map[string]any{
				"file_path": objectKey,
				"error":     cleanupErr.Error(),
			})
			s.logg.Warn(cleanupCtx, "stored file cleanup failed after insert error")
		}
		s.pipeline.IncUpload("insert_failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist warranty record")
	}

	if extractErr != nil {
		s.pipeline.IncUpload("degraded")
	} else {
		s.pipeline.IncUpload("completed")
	}

	record := warranties.ToRecord(*created, s.now())
	return &record, nil
}

func (s *service) validate(ownerID uuid.UUID, input UploadInput) (string, error) {
	if ownerID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if strings.TrimSpace(input.FileName) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "file_name is required")
	}
	if len(input.Data) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if int64(len(input.Data)) > s.cfg.MaxUploadBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds maximum size of %d bytes", s.cfg.MaxUploadBytes))
	}

	sniffed := mimetype.Detect(input.Data).String()
	// mimetype appends parameters for some types ("text/plain; charset=utf-8").
	if idx := strings.IndexByte(sniffed, ';'); idx >= 0 {
		sniffed = strings.TrimSpace(sniffed[:idx])
	}
	for _, allowed := range allowedMimeTypes {
		if strings.EqualFold(sniffed, allowed) {
			return allowed, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported file type %q; accepted: %s", sniffed, strings.Join(allowedMimeTypes, ", ")))
}

// store writes the object with a bounded retry. The write targets a fresh
// uuid-namespaced key, so a replayed attempt is idempotent.
func (s *service) store(ctx context.Context, objectKey, mimeType string, data []byte) error {
	backoff := retry.WithMaxRetries(storageRetryAttempts, retry.NewExponential(storageRetryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.storage.UploadObject(ctx, s.cfg.Bucket, objectKey, mimeType, bytes.NewReader(data)); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// runExtraction signs a short-lived read URL for the stored object and runs
// the model call against it. When signing fails the file bytes already in
// hand are sent inline instead, so a signer outage does not degrade the
// record. Extraction is never retried; a transient model failure degrades
// the record rather than doubling spend.
func (s *service) runExtraction(ctx context.Context, objectKey, mimeType string, data []byte) (*extraction.Result, error) {
	doc := extraction.Document{MimeType: mimeType}
	signedURL, err := s.storage.SignedReadURL(s.cfg.Bucket, objectKey, s.cfg.SignedURLTTL)
	if err != nil {
		signCtx := s.logg.WithFields(ctx, map[string]any{
			"file_path": objectKey,
			"error":     err.Error(),
		})
		s.logg.Warn(signCtx, "signing read url failed; sending file bytes inline")
		doc.Data = base64.StdEncoding.EncodeToString(data)
	} else {
		doc.SignedURL = signedURL
	}

	result, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) applyExtraction(ctx context.Context, row *models.Warranty, result *extraction.Result) {
	row.ProductName = result.Fields.ProductName
	row.Brand = result.Fields.Brand
	row.Model = result.Fields.Model
	row.SerialNumber = result.Fields.SerialNumber
	row.WarrantyDuration = result.Fields.WarrantyDuration
	row.AISource = &result.Source
	row.RawExtraction = datatypes.JSON(result.Raw)

	duration := ""
	if result.Fields.WarrantyDuration != nil {
		duration = *result.Fields.WarrantyDuration
	}
	reconciled := warranties.Reconcile(result.Fields.PurchaseDate, result.Fields.ExpiryDate, duration, s.cfg.DefaultDurationDays)
	row.PurchaseDate = reconciled.PurchaseDate
	row.ExpiryDate = reconciled.ExpiryDate
	row.ExpirySource = reconciled.Source
	row.DateConflict = reconciled.DateConflict

	if reconciled.DateConflict {
		conflictCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":       row.UserID.String(),
			"purchase_date": reconciled.PurchaseDate,
			"expiry_date":   reconciled.ExpiryDate,
		})
		s.logg.Warn(conflictCtx, "extracted expiry precedes purchase date; storing with conflict flag")
	}
}

func buildObjectKey(ownerID, fileID uuid.UUID, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = fileID.String()
	}
	return fmt.Sprintf("warranties/%s/%s/%s", ownerID.String(), fileID.String(), cleanName)
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.TrimSpace(name))
	if clean == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune('-')
		case isSafeFileNameRune(r):
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}

// Object keys end up in signed URL resources, so the kept charset is the
// conservative unreserved set.
func isSafeFileNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.':
		return true
	}
	return false
}
