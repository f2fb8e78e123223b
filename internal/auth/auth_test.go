package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/inamate/tripwire/internal/store"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	s := NewService(db, "test-secret")
	s.cost = bcrypt.MinCost
	return s
}

func TestRegisterLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	reg, err := s.Register(ctx, "ana", "correct horse", "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if reg.Operator.Username != "ana" || reg.Token == "" {
		t.Fatalf("register = %+v", reg)
	}
	id, err := s.ValidateToken(reg.Token)
	if err != nil || id != reg.Operator.ID {
		t.Fatalf("validate = %q, %v", id, err)
	}

	if _, err := s.Register(ctx, "ana", "another pass", "Ana 2"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate: err = %v", err)
	}

	login, err := s.Login(ctx, "ana", "correct horse")
	if err != nil || login.Operator.ID != reg.Operator.ID {
		t.Fatalf("login = %+v, %v", login, err)
	}
	if _, err := s.Login(ctx, "ana", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if _, err := s.Login(ctx, "bob", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: err = %v", err)
	}

	op, err := s.GetOperator(ctx, reg.Operator.ID)
	if err != nil || op.DisplayName != "Ana" {
		t.Fatalf("get = %+v, %v", op, err)
	}
	if _, err := s.GetOperator(ctx, "op_missing"); !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	s := newTestService(t)

	sign := func(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		t.Helper()
		tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatal(err)
		}
		return tok
	}

	tests := map[string]string{
		"garbage":      "not-a-token",
		"other secret": sign(jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "op_1"}),
		"expired": sign(jwt.SigningMethodHS256, []byte("test-secret"), jwt.MapClaims{
			"sub": "op_1", "exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"no subject": sign(jwt.SigningMethodHS256, []byte("test-secret"), jwt.MapClaims{"iat": time.Now().Unix()}),
		"none alg":   sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "op_1"}),
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := s.ValidateToken(tok); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	s := newTestService(t)
	reg, err := s.Register(context.Background(), "ana", "correct horse", "")
	if err != nil {
		t.Fatal(err)
	}

	var seen string
	h := s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OperatorIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"empty token", "Bearer  ", http.StatusUnauthorized},
		{"lowercase scheme", "bearer " + reg.Token, http.StatusNoContent},
		{"ok", "Bearer " + reg.Token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cameras", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if seen != reg.Operator.ID {
		t.Fatalf("operator in context = %q", seen)
	}
}

func TestHandlers(t *testing.T) {
	h := NewHandler(newTestService(t))

	post := func(fn http.HandlerFunc, body any) *httptest.ResponseRecorder {
		data, _ := json.Marshal(body)
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data)))
		return rec
	}

	if rec := post(h.Register, registerRequest{Username: "ana", Password: "short"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("short password: %d", rec.Code)
	}
	rec := post(h.Register, registerRequest{Username: "ana", Password: "long enough"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	var res AuthResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Operator.DisplayName != "ana" {
		t.Fatalf("display name defaults to username, got %q", res.Operator.DisplayName)
	}
	if rec := post(h.Register, registerRequest{Username: "ana", Password: "long enough"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: %d", rec.Code)
	}
	if rec := post(h.Login, loginRequest{Username: "ana", Password: "long enough"}); rec.Code != http.StatusOK {
		t.Fatalf("login: %d", rec.Code)
	}
	if rec := post(h.Login, loginRequest{Username: "ana", Password: "wrong pass"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", rec.Code)
	}
	if rec := post(h.Register, registerRequest{Username: "a b", Password: "long enough"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid username: %d", rec.Code)
	}
	if rec := post(h.Login, loginRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty login: %d", rec.Code)
	}
}

func TestUsernameNormalization(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "  Gate.Keeper ", "correct horse", "")
	if err != nil {
		t.Fatal(err)
	}
	if reg.Operator.Username != "gate.keeper" || reg.Operator.DisplayName != "gate.keeper" {
		t.Fatalf("operator = %+v", reg.Operator)
	}
	if _, err := s.Login(ctx, "GATE.KEEPER", "correct horse"); err != nil {
		t.Fatalf("case-folded login: %v", err)
	}
	if _, err := s.Register(ctx, "gate.keeper", "correct horse", ""); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate after folding: err = %v", err)
	}

	for _, bad := range []string{"ab", "has space", "semi;colon", "waytoolong_waytoolong_waytoolong_x"} {
		if _, err := s.Register(ctx, bad, "correct horse", ""); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("Register(%q) err = %v", bad, err)
		}
		if _, err := s.Login(ctx, bad, "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q) err = %v", bad, err)
		}
	}
}

func TestMeHandler(t *testing.T) {
	s := newTestService(t)
	h := NewHandler(s)
	reg, err := s.Register(context.Background(), "ana", "correct horse", "Ana")
	if err != nil {
		t.Fatal(err)
	}

	me := func(operatorID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req = req.WithContext(WithOperatorID(req.Context(), operatorID))
		rec := httptest.NewRecorder()
		h.Me(rec, req)
		return rec
	}

	rec := me(reg.Operator.ID)
	var op Operator
	if rec.Code != http.StatusOK || json.NewDecoder(rec.Body).Decode(&op) != nil || op.DisplayName != "Ana" {
		t.Fatalf("me = %d %+v", rec.Code, op)
	}
	if rec := me("op_missing"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown operator: %d", rec.Code)
	}
}

func TestHandlerFoldsOperatorNames(t *testing.T) {
	s := newTestService(t)
	h := NewHandler(s)

	post := func(fn http.HandlerFunc, body any) *httptest.ResponseRecorder {
		data, _ := json.Marshal(body)
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data)))
		return rec
	}
	errorOf := func(rec *httptest.ResponseRecorder) string {
		var body map[string]string
		json.NewDecoder(rec.Body).Decode(&body)
		return body["error"]
	}

	rec := post(h.Register, registerRequest{Username: " Night.Shift ", Password: "long enough"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	var res AuthResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Operator.Username != "night.shift" {
		t.Fatalf("username = %q", res.Operator.Username)
	}
	if rec := post(h.Register, registerRequest{Username: "NIGHT.SHIFT", Password: "long enough"}); rec.Code != http.StatusConflict {
		t.Fatalf("case variant registered twice: %d", rec.Code)
	}
	if rec := post(h.Login, loginRequest{Username: "Night.Shift", Password: "long enough"}); rec.Code != http.StatusOK {
		t.Fatalf("mixed case login: %d", rec.Code)
	}

	tests := []struct {
		name string
		req  registerRequest
		want string
	}{
		{"pattern", registerRequest{Username: "x", Password: "long enough"}, ErrInvalidUsername.Error()},
		{"too long", registerRequest{Username: "longpass", Password: strings.Repeat("p", 73)}, "password must be at most 72 bytes"},
		{"same as username", registerRequest{Username: "dock.guard", Password: "Dock.Guard"}, "password must not match the username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(h.Register, tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := errorOf(rec); got != tt.want {
				t.Fatalf("error = %q, want %q", got, tt.want)
			}
		})
	}

	if rec := post(h.Login, loginRequest{Username: "no spaces allowed", Password: "long enough"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("malformed username login: %d", rec.Code)
	}
}
