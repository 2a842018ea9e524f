package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pitchside/pitchside/internal/activity"
	"github.com/pitchside/pitchside/internal/auth"
	"github.com/pitchside/pitchside/internal/blob/blobtest"
	"github.com/pitchside/pitchside/internal/content"
	"github.com/pitchside/pitchside/internal/model"
	"github.com/pitchside/pitchside/internal/server/middleware"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixtureEnv builds a users service plus a fixtures handler over a
// shared in-memory blob store, with one seeded super-admin.
func newFixtureEnv(t *testing.T) (*auth.UserService, *ContentHandler[*model.Fixture], *blobtest.Store) {
	t.Helper()
	store := blobtest.New()
	users := auth.NewUserService(store, auth.NewLoginLimiter(store),
		auth.NewTokenCodec([]byte("test-secret"), false, discardLogger()), discardLogger())
	if _, err := users.CreateBootstrapUser(context.Background(), "super@club.test", "", "swordfish1"); err != nil {
		t.Fatal(err)
	}
	fixtures := content.NewStore(store, model.KeyFixtures, "fixture",
		func() *model.Fixture { return &model.Fixture{} })
	return users, NewContentHandler(fixtures, "fixtures", "fixtures", nil), store
}

func asAdmin(req *http.Request) *http.Request {
	user := &model.AdminUser{ID: "u1", Email: "a@b.c", Role: model.RoleAdmin, Status: model.StatusActive}
	return req.WithContext(context.WithValue(req.Context(), middleware.AuthUserKey, user))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestContentCreateAndList(t *testing.T) {
	_, h, _ := newFixtureEnv(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/fixtures", strings.NewReader(
		`{"team":"Mens 1st XV","opponent":"Harbourside RFC","dateTime":"2026-09-12T15:00:00Z","venue":"Home"}`))
	h.Create(rec, asAdmin(req))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	if data["id"] == "" {
		t.Error("no id in response")
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/fixtures", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decodeBody(t, rec)
	if items := list["data"].([]any); len(items) != 1 {
		t.Errorf("items = %d, want 1", len(items))
	}
}

func TestContentCreateMissingField(t *testing.T) {
	_, h, _ := newFixtureEnv(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/fixtures", strings.NewReader(`{"team":"Mens 1st XV"}`))
	h.Create(rec, asAdmin(req))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if msg := body["error"].(string); !strings.Contains(msg, "opponent") {
		t.Errorf("error does not name the missing field: %q", msg)
	}
}

func TestContentUpdateNotFound(t *testing.T) {
	_, h, _ := newFixtureEnv(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/fixtures?id=ghost", strings.NewReader(`{"result":"W"}`))
	h.Update(rec, asAdmin(req))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestContentDeleteRequiresAdminRole(t *testing.T) {
	_, h, _ := newFixtureEnv(t)

	editor := &model.AdminUser{ID: "e", Role: model.RoleEditor, Status: model.StatusActive}
	req := httptest.NewRequest("DELETE", "/fixtures?id=x", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.AuthUserKey, editor))
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestBulkPluralKeyFallback(t *testing.T) {
	_, h, _ := newFixtureEnv(t)

	body := `{"action":"create","fixtures":[
		{"team":"Mens 1st XV","opponent":"A","dateTime":"2026-09-12T15:00:00Z","venue":"Home"},
		{"team":"Mens 1st XV","opponent":"B","dateTime":"2026-09-19T15:00:00Z","venue":"Away"}
	]}`
	rec := httptest.NewRecorder()
	h.Bulk(rec, asAdmin(httptest.NewRequest("POST", "/fixtures-bulk", strings.NewReader(body))))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	results := resp["results"].(map[string]any)
	if results["created"].(float64) != 2 {
		t.Errorf("results = %v", results)
	}
}

func TestBulkUnknownAction(t *testing.T) {
	_, h, _ := newFixtureEnv(t)

	rec := httptest.NewRecorder()
	h.Bulk(rec, asAdmin(httptest.NewRequest("POST", "/fixtures-bulk",
		strings.NewReader(`{"action":"upsert","items":[]}`))))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestUsersLoginSuccessShape(t *testing.T) {
	users, _, _ := newFixtureEnv(t)
	h := NewUsersHandler(users, nil)

	rec := httptest.NewRecorder()
	h.Post(rec, httptest.NewRequest("POST", "/admin-users",
		strings.NewReader(`{"action":"login","email":"super@club.test","password":"swordfish1"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["token"] == "" {
		t.Errorf("body = %v", body)
	}
	user := body["user"].(map[string]any)
	if _, ok := user["password"]; ok {
		t.Error("response user carries password field")
	}
}

func TestUsersLoginRateLimitShape(t *testing.T) {
	users, _, _ := newFixtureEnv(t)
	h := NewUsersHandler(users, nil)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.Post(rec, httptest.NewRequest("POST", "/admin-users",
			strings.NewReader(`{"action":"login","email":"super@club.test","password":"wrong"}`)))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.Post(rec, httptest.NewRequest("POST", "/admin-users",
		strings.NewReader(`{"action":"login","email":"super@club.test","password":"swordfish1"}`)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["minutesLeft"].(float64) < 1 {
		t.Errorf("minutesLeft = %v", body["minutesLeft"])
	}
}

func TestUsersSaveRequiresSuperToken(t *testing.T) {
	users, _, _ := newFixtureEnv(t)
	h := NewUsersHandler(users, nil)

	rec := httptest.NewRecorder()
	h.Post(rec, httptest.NewRequest("POST", "/admin-users",
		strings.NewReader(`{"action":"saveUsers","users":[]}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSettingsSecretStripping(t *testing.T) {
	store := blobtest.New()
	settings := `{"clubName":"Harbourside RFC","smtpHost":"mail.example.com","calendarApiKey":"k","themeColor":"navy"}`
	if _, err := store.Put(context.Background(), model.KeySettings, []byte(settings), 0); err != nil {
		t.Fatal(err)
	}
	h := NewSettingsHandler(store, nil)

	// Anonymous read: credential keys stripped.
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest("GET", "/site-settings", nil))
	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	if _, ok := data["smtpHost"]; ok {
		t.Error("smtpHost visible to anonymous caller")
	}
	if _, ok := data["calendarApiKey"]; ok {
		t.Error("calendarApiKey visible to anonymous caller")
	}
	if data["clubName"] != "Harbourside RFC" || data["themeColor"] != "navy" {
		t.Errorf("public keys missing: %v", data)
	}

	// Authenticated read: full object.
	rec = httptest.NewRecorder()
	h.Get(rec, asAdmin(httptest.NewRequest("GET", "/site-settings", nil)))
	data = decodeBody(t, rec)["data"].(map[string]any)
	if _, ok := data["smtpHost"]; !ok {
		t.Error("smtpHost stripped for authenticated caller")
	}
}

func TestSettingsPutRoundTrip(t *testing.T) {
	store := blobtest.New()
	h := NewSettingsHandler(store, nil)

	rec := httptest.NewRecorder()
	h.Put(rec, asAdmin(httptest.NewRequest("PUT", "/site-settings",
		strings.NewReader(`{"clubName":"Harbourside RFC"}`))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, asAdmin(httptest.NewRequest("GET", "/site-settings", nil)))
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["clubName"] != "Harbourside RFC" {
		t.Errorf("data = %v", data)
	}
}

func TestSystemReady(t *testing.T) {
	store := blobtest.New()
	h := NewSystemHandler(store, activity.NewRecorder(store, discardLogger()), "test")

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}

	store.PingErr = context.DeadlineExceeded
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
