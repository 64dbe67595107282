package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_ProcessBatch(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.engine)
	e := echo.New()

	body := `[
		{"_id":"doc-p-1","type":"patient","cpt":"CPT-001","fullName":"Sokha Chan"},
		{"_id":"doc-x-1","type":"hologram"}
	]`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.ProcessBatch(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Received != 2 || resp.Applied != 1 {
		t.Errorf("response = %+v, want received 2 applied 1", resp)
	}
}

func TestHandler_ProcessFeed(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.engine)
	e := echo.New()

	body := `{"seq":"7-xyz","docs":[{"_id":"doc-p-1","type":"patient","cpt":"CPT-001","fullName":"Sokha Chan"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.ProcessFeed(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.store.checkpoint != "7-xyz" {
		t.Errorf("checkpoint = %q, want 7-xyz", f.store.checkpoint)
	}
}

func TestHandler_GetCheckpoint(t *testing.T) {
	f := newFixture()
	f.store.checkpoint = "99-abc"
	h := NewHandler(f.engine)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := h.GetCheckpoint(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["seq"] != "99-abc" {
		t.Errorf("seq = %q", resp["seq"])
	}
}
