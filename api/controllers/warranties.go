package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warrantyvault/backend/api/middleware"
	"github.com/warrantyvault/backend/api/responses"
	"github.com/warrantyvault/backend/api/validators"
	"github.com/warrantyvault/backend/internal/uploads"
	"github.com/warrantyvault/backend/internal/warranties"
	pkgerrors "github.com/warrantyvault/backend/pkg/errors"
	"github.com/warrantyvault/backend/pkg/logger"
	"github.com/warrantyvault/backend/pkg/pagination"
)

// multipartOverheadBytes covers boundary markers and part headers on top of
// the file size limit.
const multipartOverheadBytes = 64 << 10

const (
	maxTextFieldLen     = 255
	maxDurationFieldLen = 64
)

var requestDateLayouts = []string{"2006-01-02", time.RFC3339}

type warrantyRequest struct {
	ProductName      string  `json:"product_name" validate:"required"`
	Brand            string  `json:"brand"`
	Model            string  `json:"model"`
	SerialNumber     string  `json:"serial_number"`
	PurchaseDate     *string `json:"purchase_date"`
	WarrantyDuration string  `json:"warranty_duration"`
	ExpiryDate       *string `json:"expiry_date"`
}

func (r warrantyRequest) toInput() (warranties.RecordInput, error) {
	purchaseDate, err := parseDateField("purchase_date", r.PurchaseDate)
	if err != nil {
		return warranties.RecordInput{}, err
	}
	expiryDate, err := parseDateField("expiry_date", r.ExpiryDate)
	if err != nil {
		return warranties.RecordInput{}, err
	}

	return warranties.RecordInput{
		ProductName:      validators.SanitizeString(r.ProductName, maxTextFieldLen),
		Brand:            validators.SanitizeString(r.Brand, maxTextFieldLen),
		Model:            validators.SanitizeString(r.Model, maxTextFieldLen),
		SerialNumber:     validators.SanitizeString(r.SerialNumber, maxTextFieldLen),
		PurchaseDate:     purchaseDate,
		WarrantyDuration: validators.SanitizeString(r.WarrantyDuration, maxDurationFieldLen),
		ExpiryDate:       expiryDate,
	}, nil
}

func parseDateField(field string, raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, nil
	}
	for _, layout := range requestDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			normalized := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			return &normalized, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid date").WithDetails(map[string]any{"field": field, "expected": "YYYY-MM-DD"})
}

// WarrantyUpload receives a multipart warranty document and runs the full
// store-extract-persist pipeline.
func WarrantyUpload(svc uploads.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartOverheadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart request"))
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file part is required"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read file part"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read uploaded file"))
			return
		}

		record, err := svc.UploadAndExtract(r.Context(), ownerID, uploads.UploadInput{
			FileName: header.Filename,
			Data:     data,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// WarrantyCreate handles manual record creation without a document.
func WarrantyCreate(svc warranties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "warranty service unavailable"))
			return
		}

		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload warrantyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.AddManualRecord(r.Context(), ownerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// WarrantyList returns the owner's records newest-first with a cursor.
func WarrantyList(svc warranties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "warranty service unavailable"))
			return
		}

		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListRecords(r.Context(), warranties.ListParams{
			OwnerID: ownerID,
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// WarrantyDetail returns one record with its live status and a fresh signed
// read URL for the stored document.
func WarrantyDetail(svc warranties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "warranty service unavailable"))
			return
		}

		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := warrantyIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetRecord(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// WarrantyUpdate replaces the user-editable field set and re-runs date
// reconciliation.
func WarrantyUpdate(svc warranties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "warranty service unavailable"))
			return
		}

		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := warrantyIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload warrantyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.UpdateRecord(r.Context(), ownerID, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// WarrantyDelete removes a record and best-effort cleans up its stored file.
func WarrantyDelete(svc warranties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "warranty service unavailable"))
			return
		}

		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := warrantyIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteRecord(r.Context(), ownerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

func ownerFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return ownerID, nil
}

func warrantyIDFromRoute(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "warrantyId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid warranty id")
	}
	return id, nil
}
