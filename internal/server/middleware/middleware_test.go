package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pitchside/pitchside/internal/auth"
	"github.com/pitchside/pitchside/internal/model"
)

func TestRequestIDGenerated(t *testing.T) {
	var captured string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if captured == "" {
		t.Fatal("no request ID in context")
	}
	if rec.Header().Get("X-Request-ID") != captured {
		t.Error("response header does not match context value")
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	var captured string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if captured != "client-supplied" {
		t.Errorf("request ID = %q, want client-supplied", captured)
	}
}

func TestLoggerCapturesStatus(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/teapot", nil))

	out := buf.String()
	if !strings.Contains(out, "status=418") {
		t.Errorf("log missing status: %s", out)
	}
	if !strings.Contains(out, "path=/teapot") {
		t.Errorf("log missing path: %s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("4xx not logged at warn: %s", out)
	}
}

func TestLoggerSurfacesActor(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := Logger(logger)(RequireAuth(stubVerifier{user: activeUser(model.RoleAdmin)}, nil)(inner))

	req := httptest.NewRequest("POST", "/news", nil)
	req.Header.Set("Authorization", "Bearer x")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "actor=a@b.c") {
		t.Errorf("log missing actor: %s", buf.String())
	}

	// Anonymous requests log without an actor attribute.
	buf.Reset()
	Logger(logger)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/fixtures", nil))
	if strings.Contains(buf.String(), "actor=") {
		t.Errorf("anonymous log carries actor: %s", buf.String())
	}
}

// stubVerifier returns a fixed user or error.
type stubVerifier struct {
	user *model.AdminUser
	err  error
}

func (s stubVerifier) VerifyRequest(_ context.Context, authorization string, requireSuperAdmin bool) (*model.AdminUser, error) {
	if s.err != nil {
		return nil, s.err
	}
	if requireSuperAdmin && !s.user.IsSuperAdmin() {
		return nil, auth.ErrSuperAdminRequired
	}
	return s.user, nil
}

type countingRecorder struct{ reasons []string }

func (c *countingRecorder) RecordAuthFailure(reason string) { c.reasons = append(c.reasons, reason) }

func activeUser(role string) *model.AdminUser {
	return &model.AdminUser{ID: "u1", Email: "a@b.c", Role: role, Status: model.StatusActive}
}

func TestRequireAuthAttachesUser(t *testing.T) {
	var got *model.AdminUser
	h := RequireAuth(stubVerifier{user: activeUser(model.RoleEditor)}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = UserFrom(r.Context())
		}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/news", nil)
	req.Header.Set("Authorization", "Bearer x")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.ID != "u1" {
		t.Errorf("user = %+v", got)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"invalid", auth.ErrTokenInvalid, http.StatusUnauthorized, "invalid_token"},
		{"expired", auth.ErrTokenExpired, http.StatusUnauthorized, "expired_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := &countingRecorder{}
			h := RequireAuth(stubVerifier{err: tt.err}, failures)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Error("handler reached")
				}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("POST", "/news", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := rec.Body.String()
			if !strings.Contains(body, `"success":false`) || !strings.Contains(body, `"error":"Unauthorized"`) {
				t.Errorf("body = %s", body)
			}
			if !strings.Contains(body, `"message":`) {
				t.Errorf("body missing message: %s", body)
			}
			if len(failures.reasons) != 1 || failures.reasons[0] != tt.wantReason {
				t.Errorf("reasons = %v", failures.reasons)
			}
		})
	}
}

func TestRequireSuperAdmin(t *testing.T) {
	h := RequireSuperAdmin(stubVerifier{user: activeUser(model.RoleEditor)}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler reached")
		}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/activity-log", nil)
	req.Header.Set("Authorization", "Bearer x")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Forbidden"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestOptionalAuth(t *testing.T) {
	var got *model.AdminUser
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFrom(r.Context())
	})

	// No header: anonymous, request still served.
	rec := httptest.NewRecorder()
	OptionalAuth(stubVerifier{err: auth.ErrTokenInvalid})(inner).
		ServeHTTP(rec, httptest.NewRequest("GET", "/site-settings", nil))
	if rec.Code != http.StatusOK || got != nil {
		t.Errorf("anonymous: status=%d user=%+v", rec.Code, got)
	}

	// Valid token: user attached.
	req := httptest.NewRequest("GET", "/site-settings", nil)
	req.Header.Set("Authorization", "Bearer x")
	OptionalAuth(stubVerifier{user: activeUser(model.RoleAdmin)})(inner).
		ServeHTTP(httptest.NewRecorder(), req)
	if got == nil {
		t.Error("valid token: no user attached")
	}

	// Bad token: anonymous, not rejected.
	got = nil
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/site-settings", nil)
	req.Header.Set("Authorization", "Bearer bad")
	OptionalAuth(stubVerifier{err: auth.ErrTokenInvalid})(inner).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || got != nil {
		t.Errorf("bad token: status=%d user=%+v", rec.Code, got)
	}
}

func TestRequirePermission(t *testing.T) {
	editor := activeUser(model.RoleEditor)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	run := func(user *model.AdminUser, perm string) int {
		h := RequirePermission(perm)(inner)
		req := httptest.NewRequest("POST", "/x", nil)
		if user != nil {
			req = req.WithContext(context.WithValue(req.Context(), AuthUserKey, user))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := run(editor, model.PermNews); code != http.StatusOK {
		t.Errorf("editor news: %d", code)
	}
	if code := run(editor, model.PermUsers); code != http.StatusForbidden {
		t.Errorf("editor users: %d", code)
	}
	if code := run(nil, model.PermNews); code != http.StatusForbidden {
		t.Errorf("anonymous: %d", code)
	}
}
