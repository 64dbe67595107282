package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	if p := paramsFor(t, ""); p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("defaults = %+v", p)
	}
	if p := paramsFor(t, "limit=5&offset=10"); p.Limit != 5 || p.Offset != 10 {
		t.Errorf("explicit = %+v", p)
	}
	if p := paramsFor(t, "limit=5000"); p.Limit != MaxLimit {
		t.Errorf("limit not capped: %+v", p)
	}
	if p := paramsFor(t, "limit=-1&offset=-3"); p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("negatives = %+v", p)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2}, 10, 2, 0)
	if !r.HasMore {
		t.Error("expected HasMore with total 10 at offset 0")
	}
	r = NewResponse([]int{1, 2}, 4, 2, 2)
	if r.HasMore {
		t.Error("expected no more at the last page")
	}
}
