package warranties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/warrantyvault/backend/pkg/db/models"
	"github.com/warrantyvault/backend/pkg/enums"
	pkgerrors "github.com/warrantyvault/backend/pkg/errors"
	"github.com/warrantyvault/backend/pkg/logger"
	pkgpagination "github.com/warrantyvault/backend/pkg/pagination"
)

type warrantiesRepository interface {
	Create(ctx context.Context, record *models.Warranty) (*models.Warranty, error)
	FindByID(ctx context.Context, id, ownerID uuid.UUID) (*models.Warranty, error)
	List(ctx context.Context, opts listQuery) ([]models.Warranty, error)
	Update(ctx context.Context, record *models.Warranty) (*models.Warranty, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

type gcsClient interface {
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
	DeleteObject(ctx context.Context, bucket, object string) error
}

// Service exposes warranty record semantics: manual entry, owner-scoped
// reads with derived status, update with date re-reconciliation, and delete
// with best-effort file cleanup.
type Service interface {
	AddManualRecord(ctx context.Context, ownerID uuid.UUID, input RecordInput) (*Record, error)
	ListRecords(ctx context.Context, params ListParams) (*ListResult, error)
	GetRecord(ctx context.Context, ownerID, id uuid.UUID) (*Record, error)
	UpdateRecord(ctx context.Context, ownerID, id uuid.UUID, input RecordInput) (*Record, error)
	DeleteRecord(ctx context.Context, ownerID, id uuid.UUID) error
}

type service struct {
	repo                warrantiesRepository
	gcs                 gcsClient
	logg                *logger.Logger
	bucket              string
	downloadTTL         time.Duration
	defaultDurationDays int
	now                 func() time.Time
}

// NewService builds a warranty service backed by the provided repository and GCS client.
func NewService(repo warrantiesRepository, gcs gcsClient, logg *logger.Logger, bucket string, downloadTTL time.Duration, defaultDurationDays int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("warranty repository required")
	}
	if gcs == nil {
		return nil, fmt.Errorf("gcs client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	if downloadTTL <= 0 {
		return nil, fmt.Errorf("download ttl must be positive")
	}
	if defaultDurationDays <= 0 {
		return nil, fmt.Errorf("default duration days must be positive")
	}
	return &service{
		repo:                repo,
		gcs:                 gcs,
		logg:                logg,
		bucket:              bucket,
		downloadTTL:         downloadTTL,
		defaultDurationDays: defaultDurationDays,
		now:                 time.Now,
	}, nil
}

// RecordInput holds the user-editable fields of a warranty record. It is
// used both for manual creation and for updates; updates replace the full
// editable field set and re-run date reconciliation.
type RecordInput struct {
	ProductName      string
	Brand            string
	Model            string
	SerialNumber     string
	PurchaseDate     *time.Time
	WarrantyDuration string
	ExpiryDate       *time.Time
}

func (s *service) AddManualRecord(ctx context.Context, ownerID uuid.UUID, input RecordInput) (*Record, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if strings.TrimSpace(input.ProductName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_name is required")
	}

	row := &models.Warranty{
		UserID:           ownerID,
		ProcessingStatus: enums.ProcessingStatusCompleted,
	}
	s.applyInput(ctx, row, input)

	created, err := s.repo.Create(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create warranty")
	}
	record := ToRecord(*created, s.now())
	return &record, nil
}

func (s *service) ListRecords(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		ownerID: params.OwnerID,
		limit:   pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warranties")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	now := s.now()
	items := make([]Record, len(rows))
	for i, row := range rows {
		items[i] = ToRecord(row, now)
	}

	return &ListResult{
		Items:  items,
		Cursor: nextCursor,
	}, nil
}

func (s *service) GetRecord(ctx context.Context, ownerID, id uuid.UUID) (*Record, error) {
	row, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	record := ToRecord(*row, s.now())
	if row.FilePath != "" {
		url, err := s.gcs.SignedReadURL(s.bucket, row.FilePath, s.downloadTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate signed read url")
		}
		record.SignedURL = url
	}
	return &record, nil
}

func (s *service) UpdateRecord(ctx context.Context, ownerID, id uuid.UUID, input RecordInput) (*Record, error) {
	if strings.TrimSpace(input.ProductName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_name is required")
	}

	row, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	// FilePath stays pinned to the originally stored object.
	s.applyInput(ctx, row, input)

	updated, err := s.repo.Update(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update warranty")
	}
	record := ToRecord(*updated, s.now())
	return &record, nil
}

func (s *service) DeleteRecord(ctx context.Context, ownerID, id uuid.UUID) error {
	row, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "warranty not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete warranty")
	}

	// Record and file deletion are not atomic; a failed file cleanup leaves
	// an unreferenced object and is logged rather than failing the request.
	if row.FilePath != "" {
		if err := s.gcs.DeleteObject(ctx, s.bucket, row.FilePath); err != nil {
			cleanupCtx := s.logg.WithFields(ctx, map[string]any{
				"warranty_id": id.String(),
				"file_path":   row.FilePath,
				"error":       err.Error(),
			})
			s.logg.Warn(cleanupCtx, "warranty file cleanup failed after record delete")
		}
	}
	return nil
}

func (s *service) findOwned(ctx context.Context, ownerID, id uuid.UUID) (*models.Warranty, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warranty id is required")
	}

	row, err := s.repo.FindByID(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "warranty not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup warranty")
	}
	return row, nil
}

func (s *service) applyInput(ctx context.Context, row *models.Warranty, input RecordInput) {
	row.ProductName = optionalString(input.ProductName)
	row.Brand = optionalString(input.Brand)
	row.Model = optionalString(input.Model)
	row.SerialNumber = optionalString(input.SerialNumber)
	row.WarrantyDuration = optionalString(input.WarrantyDuration)

	reconciled := Reconcile(input.PurchaseDate, input.ExpiryDate, input.WarrantyDuration, s.defaultDurationDays)
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
		s.logg.Warn(conflictCtx, "warranty expiry precedes purchase date; storing with conflict flag")
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
