package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/mailer"
	"github.com/newoon/backoffice-server/internal/metrics"
	"github.com/newoon/backoffice-server/internal/middleware"
	"github.com/newoon/backoffice-server/internal/services"
	"github.com/newoon/backoffice-server/internal/storage"
	"github.com/newoon/backoffice-server/internal/store"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type testServer struct {
	t       *testing.T
	handler http.Handler
	repos   *store.Repos
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	log := zap.NewNop()
	sugar := log.Sugar()
	repos := store.NewMemory()
	uploadDir := t.TempDir()
	files, err := storage.NewLocalStore(uploadDir, "/uploads")
	require.NoError(t, err)
	m := metrics.New()
	mail := mailer.NewLogMailer(sugar)
	notify := services.NewDispatcher(
		services.NewInlineOutbox(services.NewNotificationDeliverer(repos.Notifications, sugar)), m, sugar)

	svc := Services{
		Auth: services.NewAuthService(repos, services.AuthDeps{
			Tokens:      services.NewTokenService("test-secret", time.Hour),
			Revoked:     services.NewMemoryRevocationList(),
			Mail:        mail,
			Files:       files,
			Metrics:     m,
			FrontendURL: "http://app.test",
		}, sugar),
		Clients:       services.NewClientService(repos, notify, sugar),
		Documents:     services.NewDocumentService(repos, files, notify, m, sugar),
		Notifications: services.NewNotificationService(repos, sugar),
		Forms:         services.NewFormService(repos, notify, mail, m, sugar),
		Intakes:       services.NewIntakeService(repos, mail, m, "http://app.test", sugar),
		Complaints:    services.NewComplaintService(repos, files, notify, sugar),
		Meetings:      services.NewMeetingService(repos, notify, sugar),
		Roles:         services.NewRoleService(repos, notify, sugar),
		Catalog:       services.NewCatalogService(repos, files, notify, sugar),
		Assignments:   services.NewAssignmentService(repos, notify, sugar),
	}
	if cfg.AuthRatePerMinute == 0 {
		cfg.AuthRatePerMinute = 6000
		cfg.AuthRateBurst = 100
	}
	cfg.AllowedOrigins = []string{"http://app.test"}
	cfg.UploadDir = files.Dir()
	cfg.UploadBaseURL = "/uploads"
	return &testServer{t: t, handler: NewRouter(svc, cfg, m, log), repos: repos}
}

func (s *testServer) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) json(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(s.t, err)
		body = bytes.NewReader(raw)
	}
	return s.do(method, path, token, body, "application/json")
}

func (s *testServer) token(rec *httptest.ResponseRecorder) string {
	s.t.Helper()
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(s.t, out.Token)
	return out.Token
}

func (s *testServer) registerAdmin(username, role string) string {
	return s.token(s.json(http.MethodPost, "/api/auth/admin/register", "",
		map[string]string{"username": username, "password": "secret123", "role": role}))
}

func (s *testServer) registerClient(name, email string) string {
	return s.token(s.json(http.MethodPost, "/api/auth/client/register", "",
		map[string]string{"name": name, "email": email, "password": "secret123"}))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := srv.do(http.MethodGet, "/api/health", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = srv.do(http.MethodGet, "/api/health/ready", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "memory", body["database"])
	assert.Equal(t, "disabled", body["redis"])
}

func TestReadinessReportsFailedDependency(t *testing.T) {
	srv := newTestServer(t, RouterConfig{
		DBPing: func(context.Context) error { return errors.New("connection refused") },
	})

	rec := srv.do(http.MethodGet, "/api/health/ready", "", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "disconnected", body["database"])
}

func TestCookieSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := srv.json(http.MethodPost, "/api/users/register", "",
		map[string]string{"name": "Ada", "email": "Ada@Example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	withCookie := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.AddCookie(session)
		out := httptest.NewRecorder()
		srv.handler.ServeHTTP(out, req)
		return out
	}

	rec = withCookie(http.MethodGet, "/api/users/getUser")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ada@example.com", decode(t, rec)["email"])

	rec = withCookie(http.MethodGet, "/api/users/getLoginStatus")
	assert.Equal(t, "true", strings.TrimSpace(rec.Body.String()))

	rec = withCookie(http.MethodGet, "/api/users/logout")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = withCookie(http.MethodGet, "/api/users/getUser")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "auth_error", body["error"])
	assert.Equal(t, "Session has been logged out, please login again", body["message"])

	rec = withCookie(http.MethodGet, "/api/users/getLoginStatus")
	assert.Equal(t, "false", strings.TrimSpace(rec.Body.String()))
}

func TestLoginWithEmail(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	srv.registerClient("Ada", "ada@example.com")

	rec := srv.json(http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "ada@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "client", decode(t, rec)["role"])

	rec = srv.json(http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "ada@example.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials.", decode(t, rec)["message"])
}

func TestRoleGatesOnAdminRoutes(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	admin := srv.registerAdmin("root", "admin")
	client := srv.registerClient("Ada", "ada@example.com")

	rec := srv.do(http.MethodGet, "/api/users/all-clients", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodGet, "/api/users/all-clients", client, nil, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden_error", decode(t, rec)["error"])

	rec = srv.do(http.MethodGet, "/api/users/all-clients", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// public role listing needs no session
	rec = srv.do(http.MethodGet, "/api/roles-task/roles", "", nil, "")
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestDocumentWorkflowOverHTTP(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	collector := srv.registerAdmin("collector", "Collecting")
	admin := srv.registerAdmin("root", "admin")
	client := srv.registerClient("Ada", "ada@example.com")

	body, ct := multipartBody(t, map[string]string{
		"name":               "Ada Lovelace",
		"email":              "ada@example.com",
		"date":               "2025-03-01",
		"renewalPreferences": "true",
	}, "documentAttach", "passport.png", pngHeader)
	rec := srv.do(http.MethodPost, "/api/document/create", client, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode(t, rec)["data"].(map[string]interface{})
	id := doc["id"].(string)
	assert.Equal(t, "Collecting", doc["timelineStatus"])
	assert.Equal(t, "Pending", doc["status"])
	attach := doc["formData"].(map[string]interface{})["documentAttach"].(string)
	require.True(t, strings.HasPrefix(attach, "/uploads/documents/"), attach)

	// stored attachment is served back
	rec = srv.do(http.MethodGet, attach, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	// clients cannot move documents
	rec = srv.do(http.MethodPut, "/api/document/next-stage/"+id, client, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(http.MethodPut, "/api/document/next-stage/"+id, collector, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Screening", decode(t, rec)["data"].(map[string]interface{})["timelineStatus"])

	rec = srv.json(http.MethodPut, "/api/document/verify-document/"+id, admin,
		map[string]interface{}{"status": "Rejected", "rejectionReason": "Blurry", "corrections": []string{"passport"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.json(http.MethodPut, "/api/document/submit-corrections/"+id, client,
		map[string]interface{}{"formData": map[string]string{"phone": "+230 5555 0000"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Corrected", decode(t, rec)["data"].(map[string]interface{})["status"])

	rec = srv.json(http.MethodPut, "/api/document/verify-document/"+id, admin, map[string]string{"status": "Verified"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.json(http.MethodPut, "/api/document/verify-document/"+id, admin,
		map[string]interface{}{"status": "Rejected", "rejectionReason": "Late", "corrections": []string{"date"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "terminal_state_error", decode(t, rec)["error"])

	rec = srv.do(http.MethodGet, "/api/document/renewal-preferences-true", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["data"], 1)

	rec = srv.do(http.MethodGet, "/api/document/user-profile-timeline", client, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodGet, "/api/notifications/", client, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Body.String())
}

func TestDocumentResponsesAndMultipartCorrections(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	admin := srv.registerAdmin("root", "admin")
	client := srv.registerClient("Ada", "ada@example.com")

	body, ct := multipartBody(t, map[string]string{"name": "Ada", "password": "hunter22"}, "documentAttach", "id.png", pngHeader)
	rec := srv.do(http.MethodPost, "/api/document/create", client, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "$2a$")
	doc := decode(t, rec)["data"].(map[string]interface{})
	id := doc["id"].(string)
	assert.Equal(t, true, doc["hasSecret"])
	first := doc["formData"].(map[string]interface{})["documentAttach"].(string)

	rec = srv.json(http.MethodPut, "/api/document/verify-document/"+id, admin,
		map[string]interface{}{"status": "Rejected", "rejectionReason": "Blurry"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body, ct = multipartBody(t, map[string]string{"phone": "+230 5555 0000", "documentAttach": "/uploads/documents/other.pdf"},
		"documentAttach", "id.png", pngHeader)
	rec = srv.do(http.MethodPut, "/api/document/submit-corrections/"+id, client, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fd := decode(t, rec)["data"].(map[string]interface{})["formData"].(map[string]interface{})
	assert.Equal(t, "+230 5555 0000", fd["phone"])
	second := fd["documentAttach"].(string)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(second, "/uploads/documents/"), second)

	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, second, "", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodGet, first, "", nil, "").Code)

	rec = srv.do(http.MethodGet, "/api/document/all-document", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestDocumentUploadRejectsDisguisedFile(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	client := srv.registerClient("Ada", "ada@example.com")

	body, ct := multipartBody(t, map[string]string{"name": "Ada"}, "documentAttach", "passport.exe", []byte("MZ"))
	rec := srv.do(http.MethodPost, "/api/document/create", client, body, ct)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode(t, rec)["error"])

	body, ct = multipartBody(t, map[string]string{"name": "Ada"}, "documentAttach", "passport.pdf", []byte("plain text"))
	rec = srv.do(http.MethodPost, "/api/document/create", client, body, ct)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File content does not match its extension", decode(t, rec)["message"])
}

func TestInvalidPathID(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	admin := srv.registerAdmin("root", "admin")

	rec := srv.do(http.MethodGet, "/api/document/document-id/not-a-uuid", admin, nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid id", decode(t, rec)["message"])
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	srv := newTestServer(t, RouterConfig{AuthRatePerMinute: 1, AuthRateBurst: 1})

	login := func() int {
		return srv.json(http.MethodPost, "/api/auth/login", "",
			map[string]string{"username": "nobody", "password": "x"}).Code
	}
	assert.Equal(t, http.StatusNotFound, login())
	assert.Equal(t, http.StatusTooManyRequests, login())

	// other routes are not limited
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/health", "", nil, "").Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	srv.do(http.MethodGet, "/api/health", "", nil, "")

	rec := srv.do(http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "backoffice_http_requests_total")
}
