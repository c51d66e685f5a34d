package center

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler(codes ...string) (*Handler, *mockRepo, *echo.Echo) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.generate = sequence(codes...)
	return NewHandler(svc), repo, echo.New()
}

func httpErr(t *testing.T, err error) *echo.HTTPError {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he
}

func TestHandler_Create(t *testing.T) {
	h, _, e := newTestHandler("42424")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/centers", strings.NewReader(`{"centerName":"PHC Korba"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var resp struct {
		Message string `json:"message"`
		Data    Center `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Code != "42424" || resp.Data.Name != "PHC Korba" {
		t.Errorf("unexpected center: %+v", resp.Data)
	}
}

func TestHandler_Create_DuplicateName(t *testing.T) {
	h, _, e := newTestHandler("10001", "10002")

	for i, want := range []int{http.StatusCreated, http.StatusBadRequest} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/centers", strings.NewReader(`{"centerName":"PHC Korba"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		err := h.Create(e.NewContext(req, rec))

		if i == 0 {
			if err != nil || rec.Code != want {
				t.Fatalf("first create: err=%v code=%d", err, rec.Code)
			}
			continue
		}
		he := httpErr(t, err)
		if he.Code != want {
			t.Errorf("expected %d, got %d", want, he.Code)
		}
		if msg := he.Message.(echo.Map)["message"]; msg != "Center name already exists." {
			t.Errorf("unexpected message %v", msg)
		}
	}
}

func TestHandler_Create_MissingName(t *testing.T) {
	h, _, e := newTestHandler("10001")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/centers", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	if he := httpErr(t, err); he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", he.Code)
	}
}

func TestHandler_Get(t *testing.T) {
	h, _, e := newTestHandler("77777")
	h.svc.Create(context.Background(), "CHC Raigarh")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("77777")

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "CHC Raigarh") {
		t.Errorf("expected center in body, got %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("code")
	c.SetParamValues("00000")
	if he := httpErr(t, h.Get(c)); he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", he.Code)
	}
}

func TestHandler_List_InternalError(t *testing.T) {
	h, repo, e := newTestHandler()
	repo.err = errors.New("connection reset")

	err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	he := httpErr(t, err)
	if he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", he.Code)
	}
	if he.Internal == nil {
		t.Error("expected cause to be attached")
	}
}
