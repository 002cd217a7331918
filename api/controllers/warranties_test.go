package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warrantyvault/backend/api/middleware"
	"github.com/warrantyvault/backend/internal/uploads"
	"github.com/warrantyvault/backend/internal/warranties"
	pkgerrors "github.com/warrantyvault/backend/pkg/errors"
)

type stubUploadService struct {
	record    *warranties.Record
	err       error
	lastInput uploads.UploadInput
	lastOwner uuid.UUID
}

func (s *stubUploadService) UploadAndExtract(_ context.Context, ownerID uuid.UUID, input uploads.UploadInput) (*warranties.Record, error) {
	s.lastOwner = ownerID
	s.lastInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

type stubWarrantyService struct {
	record    *warranties.Record
	list      *warranties.ListResult
	err       error
	lastInput warranties.RecordInput
}

func (s *stubWarrantyService) AddManualRecord(_ context.Context, _ uuid.UUID, input warranties.RecordInput) (*warranties.Record, error) {
	s.lastInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubWarrantyService) ListRecords(context.Context, warranties.ListParams) (*warranties.ListResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubWarrantyService) GetRecord(context.Context, uuid.UUID, uuid.UUID) (*warranties.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubWarrantyService) UpdateRecord(_ context.Context, _, _ uuid.UUID, input warranties.RecordInput) (*warranties.Record, error) {
	s.lastInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubWarrantyService) DeleteRecord(context.Context, uuid.UUID, uuid.UUID) error {
	return s.err
}

func authedRequest(t *testing.T, method, target string, body *bytes.Buffer) *http.Request {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func multipartBody(t *testing.T, fieldName, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func decodeErrorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

func TestWarrantyUploadForwardsFile(t *testing.T) {
	svc := &stubUploadService{record: &warranties.Record{ID: uuid.New()}}
	handler := WarrantyUpload(svc, 1<<20, nil)

	body, contentType := multipartBody(t, "file", "receipt.pdf", []byte("%PDF-1.4 content"))
	req := authedRequest(t, http.MethodPost, "/api/v1/warranties/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastInput.FileName != "receipt.pdf" {
		t.Fatalf("file name not forwarded, got %q", svc.lastInput.FileName)
	}
	if string(svc.lastInput.Data) != "%PDF-1.4 content" {
		t.Fatalf("file bytes not forwarded, got %q", svc.lastInput.Data)
	}
	if svc.lastOwner == uuid.Nil {
		t.Fatal("owner id not forwarded")
	}
}

func TestWarrantyUploadRequiresFilePart(t *testing.T) {
	svc := &stubUploadService{record: &warranties.Record{}}
	handler := WarrantyUpload(svc, 1<<20, nil)

	body, contentType := multipartBody(t, "document", "receipt.pdf", []byte("%PDF-1.4"))
	req := authedRequest(t, http.MethodPost, "/api/v1/warranties/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestWarrantyUploadRequiresUserContext(t *testing.T) {
	handler := WarrantyUpload(&stubUploadService{}, 1<<20, nil)

	body, contentType := multipartBody(t, "file", "receipt.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/warranties/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestWarrantyCreateParsesDates(t *testing.T) {
	svc := &stubWarrantyService{record: &warranties.Record{ID: uuid.New()}}
	handler := WarrantyCreate(svc, nil)

	payload := `{"product_name":"Espresso Machine","brand":"Gaggia","purchase_date":"2024-01-15","warranty_duration":"2 years"}`
	req := authedRequest(t, http.MethodPost, "/api/v1/warranties", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastInput.ProductName != "Espresso Machine" {
		t.Fatalf("product name not forwarded, got %q", svc.lastInput.ProductName)
	}
	want := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	if svc.lastInput.PurchaseDate == nil || !svc.lastInput.PurchaseDate.Equal(want) {
		t.Fatalf("purchase date not parsed, got %v", svc.lastInput.PurchaseDate)
	}
}

func TestWarrantyCreateRejectsBadDate(t *testing.T) {
	svc := &stubWarrantyService{record: &warranties.Record{}}
	handler := WarrantyCreate(svc, nil)

	payload := `{"product_name":"TV","purchase_date":"15th of January"}`
	req := authedRequest(t, http.MethodPost, "/api/v1/warranties", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code got %s", code)
	}
}

func TestWarrantyCreateRequiresProductName(t *testing.T) {
	handler := WarrantyCreate(&stubWarrantyService{record: &warranties.Record{}}, nil)

	req := authedRequest(t, http.MethodPost, "/api/v1/warranties", bytes.NewBufferString(`{"brand":"LG"}`))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestWarrantyListRejectsOutOfRangeLimit(t *testing.T) {
	handler := WarrantyList(&stubWarrantyService{list: &warranties.ListResult{}}, nil)

	req := authedRequest(t, http.MethodGet, "/api/v1/warranties?limit=9999", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestWarrantyDetailMapsNotFound(t *testing.T) {
	svc := &stubWarrantyService{err: pkgerrors.New(pkgerrors.CodeNotFound, "warranty not found")}
	handler := WarrantyDetail(svc, nil)

	req := authedRequest(t, http.MethodGet, "/api/v1/warranties/"+uuid.NewString(), nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("warrantyId", uuid.NewString())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestWarrantyDeleteReportsSuccess(t *testing.T) {
	handler := WarrantyDelete(&stubWarrantyService{}, nil)

	req := authedRequest(t, http.MethodDelete, "/api/v1/warranties/"+uuid.NewString(), nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("warrantyId", uuid.NewString())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"deleted":true`) {
		t.Fatalf("expected deletion ack, got %s", resp.Body.String())
	}
}
