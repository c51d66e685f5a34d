package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *mockUserRepo, *echo.Echo) {
	svc, repo := newTestService()
	return NewHandler(svc), repo, echo.New()
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func messageOf(t *testing.T, err error) (int, interface{}) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code, he.Message.(echo.Map)["message"]
}

const registerBody = `{"Fullname":"Priya Sharma","username":"priya01","password":"s3cure-pass","confirmpassword":"s3cure-pass"}`

func TestHandler_Register(t *testing.T) {
	h, repo, e := newTestHandler()

	c, rec := postJSON(e, "/user/register", registerBody)
	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "User registered successfully") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if _, ok := repo.users["priya01"]; !ok {
		t.Error("expected user to be stored")
	}

	c, _ = postJSON(e, "/user/register", registerBody)
	code, msg := messageOf(t, h.Register(c))
	if code != http.StatusBadRequest || msg != "Username already exists" {
		t.Errorf("expected 400 Username already exists, got %d %v", code, msg)
	}
}

func TestHandler_Register_Mismatch(t *testing.T) {
	h, _, e := newTestHandler()

	c, _ := postJSON(e, "/user/register", `{"Fullname":"A","username":"abc","password":"password1","confirmpassword":"password2"}`)
	code, msg := messageOf(t, h.Register(c))
	if code != http.StatusBadRequest || msg != "Passwords do not match" {
		t.Errorf("expected 400 Passwords do not match, got %d %v", code, msg)
	}
}

func TestHandler_Login(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := postJSON(e, "/user/register", registerBody)
	if err := h.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}

	c, rec := postJSON(e, "/user/login", `{"userName":"priya01","password":"s3cure-pass"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "$2") || strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response leaks credentials: %s", rec.Body.String())
	}

	var resp struct {
		Message string `json:"message"`
		Data    struct {
			Token   string                 `json:"token"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "User Logged in successfully" || resp.Data.Token == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Data.Payload["username"] != "priya01" {
		t.Errorf("unexpected payload: %v", resp.Data.Payload)
	}
}

func TestHandler_Login_Errors(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := postJSON(e, "/user/register", registerBody)
	h.Register(c)

	tests := []struct {
		body    string
		message string
	}{
		{`{"userName":"ghost","password":"whatever1"}`, "No user found! Please register"},
		{`{"userName":"priya01","password":"wrong-pass"}`, "Incorrect Password"},
		{`{"userName":"priya01"}`, "Invalid Username/password"},
	}
	for _, tt := range tests {
		c, _ := postJSON(e, "/user/login", tt.body)
		code, msg := messageOf(t, h.Login(c))
		if code != http.StatusBadRequest || msg != tt.message {
			t.Errorf("%s: expected 400 %q, got %d %v", tt.body, tt.message, code, msg)
		}
	}
}
