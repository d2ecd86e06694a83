package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/advrag/ragd/internal/admin"
	"github.com/advrag/ragd/internal/auth"
	"github.com/advrag/ragd/internal/config"
	"github.com/advrag/ragd/internal/email"
	"github.com/advrag/ragd/internal/indexing"
	"github.com/advrag/ragd/internal/ingestion"
	"github.com/advrag/ragd/internal/project"
	"github.com/advrag/ragd/internal/store"
	"github.com/advrag/ragd/internal/tabular"
	"github.com/advrag/ragd/internal/user"
	"github.com/advrag/ragd/internal/vectordb"
)

type fakeEmbedder struct{ size int }

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.size)
	}
	return out, nil
}

func (f *fakeEmbedder) Size() int { return f.size }

type fakeCaptioner struct{}

func (fakeCaptioner) CaptionImage(context.Context, string, []byte, string) (string, error) {
	return "a tabby cat", nil
}

type fakeVectorDB struct{ vectordb.Provider }

func (f *fakeVectorDB) CreateCollection(context.Context, string, int, bool) error { return nil }
func (f *fakeVectorDB) InsertMany(context.Context, string, []vectordb.Record) error {
	return nil
}

type testServer struct {
	srv  *Server
	mock pgxmock.PgxPoolIface
	auth *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cfg := &config.Config{
		App: config.AppConfig{
			Name:        "ragd",
			Version:     "0.1.0-test",
			FrontendURL: "http://localhost:3000",
		},
		Server: config.ServerConfig{Port: 8000},
		Auth: config.AuthConfig{
			SecretKey:                "test-key",
			Algorithm:                "HS256",
			AccessTokenExpireMinutes: 30,
			AdminResetAPIKey:         "reset-key",
		},
		Files: config.FilesConfig{
			Dir:              t.TempDir(),
			AllowedTypes:     []string{"text/plain"},
			MaxSizeMB:        1,
			DefaultChunkSize: 512000,
		},
	}

	logger := zap.NewNop()
	st := store.New(mock)
	authSvc := auth.NewService(cfg.Auth)
	mailer := email.NewMailer(config.SMTPConfig{}, cfg.App.FrontendURL, logger)
	files := ingestion.NewService(cfg.Files, st, nil, logger)
	loader := tabular.NewLoader(mock, logger)
	embedder := &fakeEmbedder{size: 3}
	vdb := &fakeVectorDB{}

	srv, err := NewServer(cfg, Services{
		Auth:      authSvc,
		Users:     user.NewService(st, authSvc, mailer, logger),
		Projects:  project.NewService(st, files, logger),
		Files:     files,
		Processor: ingestion.NewProcessor(files, loader, st, vdb, embedder.Size(), cfg.Files.DefaultChunkSize, logger),
		Indexing:  indexing.NewService(st, vdb, embedder, logger),
		Admin:     admin.NewService(mock, files, logger),
		Captioner: fakeCaptioner{},
		Store:     st,
	}, logger)
	require.NoError(t, err)

	return &testServer{srv: srv, mock: mock, auth: authSvc}
}

func (ts *testServer) request(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.echo.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) jsonRequest(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	return ts.request(method, path, token, &buf, echo.MIMEApplicationJSON)
}

func (ts *testServer) tokenFor(t *testing.T, u *store.User) string {
	t.Helper()
	token, err := ts.auth.CreateAccessToken(u.Email, u.Role, u.ID)
	require.NoError(t, err)
	return token
}

func userColumns() []string {
	return []string{"user_id", "email", "hashed_password", "role", "is_active", "password_change_required", "created_at", "updated_at"}
}

func projectColumns() []string {
	return []string{"project_id", "project_uuid", "owner_id", "created_at", "updated_at"}
}

// expectAuthLookup satisfies the authenticate middleware's account load.
func (ts *testServer) expectAuthLookup(u *store.User) {
	ts.mock.ExpectQuery(`SELECT .* FROM users WHERE email`).
		WithArgs(u.Email).
		WillReturnRows(pgxmock.NewRows(userColumns()).
			AddRow(u.ID, u.Email, "x", u.Role, true, false, time.Now(), time.Now()))
}

// expectProjectLookup satisfies withProject with access granted.
func (ts *testServer) expectProjectLookup(u *store.User, p *store.Project) {
	ts.mock.ExpectQuery(`SELECT .* FROM projects WHERE project_uuid`).
		WithArgs(p.UUID).
		WillReturnRows(pgxmock.NewRows(projectColumns()).
			AddRow(p.ID, p.UUID, nil, time.Now(), time.Now()))
	ts.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(u.ID, p.ID).
		WillReturnRows(pgxmock.NewRows([]string{"allowed"}).AddRow(true))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndWelcome(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = ts.request(http.MethodGet, "/api/v1/welcome", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ragd", body["app_name"])
	assert.Equal(t, "0.1.0-test", body["app_version"])
}

func TestTokenLogin(t *testing.T) {
	ts := newTestServer(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	ts.mock.ExpectQuery(`SELECT .* FROM users WHERE email`).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows(userColumns()).
			AddRow(1, "alice@example.com", string(hash), store.RoleUploader, true, false, time.Now(), time.Now()))

	form := url.Values{"username": {"alice@example.com"}, "password": {"hunter2"}}
	rec := ts.request(http.MethodPost, "/api/v1/token", "",
		strings.NewReader(form.Encode()), echo.MIMEApplicationForm)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "bearer", body["token_type"])
	assert.NotEmpty(t, body["access_token"])
}

func TestTokenLoginRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	ts.mock.ExpectQuery(`SELECT .* FROM users WHERE email`).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows(userColumns()).
			AddRow(1, "alice@example.com", string(hash), store.RoleUploader, true, false, time.Now(), time.Now()))

	form := url.Values{"username": {"alice@example.com"}, "password": {"wrong"}}
	rec := ts.request(http.MethodPost, "/api/v1/token", "",
		strings.NewReader(form.Encode()), echo.MIMEApplicationForm)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect username or password")
}

func TestAuthenticateRejectsMissingAndPurposeTokens(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/api/v1/users/me", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A purpose token must never work as a login token.
	setup, err := ts.auth.CreatePurposeToken("alice@example.com", auth.PurposeSetup, time.Hour)
	require.NoError(t, err)
	rec = ts.request(http.MethodGet, "/api/v1/users/me", setup, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRejectsInactiveAccount(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 1, Email: "alice@example.com", Role: store.RoleAdmin}

	ts.mock.ExpectQuery(`SELECT .* FROM users WHERE email`).
		WithArgs(u.Email).
		WillReturnRows(pgxmock.NewRows(userColumns()).
			AddRow(u.ID, u.Email, "x", u.Role, false, false, time.Now(), time.Now()))

	rec := ts.request(http.MethodGet, "/api/v1/users/me", ts.tokenFor(t, u), nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListUsersRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 2, Email: "bob@example.com", Role: store.RoleChatter}
	ts.expectAuthLookup(u)

	rec := ts.request(http.MethodGet, "/api/v1/users", ts.tokenFor(t, u), nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateUser(t *testing.T) {
	ts := newTestServer(t)
	adminUser := &store.User{ID: 1, Email: "root@example.com", Role: store.RoleAdmin}
	ts.expectAuthLookup(adminUser)
	ts.mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("new@example.com", pgxmock.AnyArg(), store.RoleChatter, false).
		WillReturnRows(pgxmock.NewRows(userColumns()).
			AddRow(5, "new@example.com", "h", store.RoleChatter, true, false, time.Now(), time.Now()))

	rec := ts.jsonRequest(http.MethodPost, "/api/v1/users", ts.tokenFor(t, adminUser), map[string]any{
		"email":    "new@example.com",
		"password": "password1",
		"role":     store.RoleChatter,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "new@example.com", body["email"])
	assert.NotContains(t, rec.Body.String(), "hashed_password")
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	ts := newTestServer(t)
	adminUser := &store.User{ID: 1, Email: "root@example.com", Role: store.RoleAdmin}
	ts.expectAuthLookup(adminUser)

	rec := ts.jsonRequest(http.MethodPost, "/api/v1/users", ts.tokenFor(t, adminUser), map[string]any{
		"email":    "new@example.com",
		"password": "password1",
		"role":     "superuser",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUsersPagination(t *testing.T) {
	ts := newTestServer(t)
	adminUser := &store.User{ID: 1, Email: "root@example.com", Role: store.RoleAdmin}
	ts.expectAuthLookup(adminUser)

	rows := pgxmock.NewRows(userColumns())
	for i := 1; i <= 3; i++ {
		rows.AddRow(i, "u@example.com", "h", store.RoleChatter, true, false, time.Now(), time.Now())
	}
	ts.mock.ExpectQuery(`SELECT .* FROM users`).WillReturnRows(rows)

	rec := ts.request(http.MethodGet, "/api/v1/users?skip=1&limit=1", ts.tokenFor(t, adminUser), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var users []store.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, 2, users[0].ID)
}

func TestCreateProject(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 4, Email: "up@example.com", Role: store.RoleUploader}
	ts.expectAuthLookup(u)

	id := uuid.New()
	ts.mock.ExpectQuery(`INSERT INTO projects`).
		WithArgs(4).
		WillReturnRows(pgxmock.NewRows(projectColumns()).
			AddRow(9, id, &u.ID, time.Now(), time.Now()))

	rec := ts.jsonRequest(http.MethodPost, "/api/v1/projects", ts.tokenFor(t, u), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, id.String(), decodeBody(t, rec)["project_uuid"])
}

func TestProjectAccessDeniedLooksForbidden(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 4, Email: "chat@example.com", Role: store.RoleChatter}
	ts.expectAuthLookup(u)

	id := uuid.New()
	ts.mock.ExpectQuery(`SELECT .* FROM projects WHERE project_uuid`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(projectColumns()).
			AddRow(9, id, nil, time.Now(), time.Now()))
	ts.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(4, 9).
		WillReturnRows(pgxmock.NewRows([]string{"allowed"}).AddRow(false))

	rec := ts.request(http.MethodGet, "/api/v1/projects/"+id.String()+"/chat_history",
		ts.tokenFor(t, u), nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type uploadFile struct {
	name        string
	contentType string
	content     []byte
}

func multipartBody(t *testing.T, files []uploadFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename=%q`, f.name))
		header.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadSkipsInvalidFiles(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 4, Email: "up@example.com", Role: store.RoleUploader}
	p := &store.Project{ID: 9, UUID: uuid.New()}
	ts.expectAuthLookup(u)
	ts.expectProjectLookup(u, p)

	// Only the txt upload reaches the assets table; the exe is rejected
	// by type before any write.
	ts.mock.ExpectQuery(`INSERT INTO assets`).
		WillReturnRows(pgxmock.NewRows([]string{
			"asset_id", "asset_project_id", "asset_type", "asset_name", "asset_size", "asset_config", "created_at",
		}).AddRow(11, 9, store.AssetTypeFile, "stored_notes.txt", int64(5), map[string]any{}, time.Now()))

	body, contentType := multipartBody(t, []uploadFile{
		{name: "notes.txt", contentType: "text/plain", content: []byte("hello")},
		{name: "tool.exe", contentType: "application/octet-stream", content: []byte{0x4d, 0x5a}},
	})
	rec := ts.request(http.MethodPost, "/api/v1/data/upload/"+p.UUID.String(),
		ts.tokenFor(t, u), body, contentType)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, SignalFileUploadSuccess, resp["signal"])
	assert.Len(t, resp["uploaded_files_details"], 1)
}

func TestUploadAllInvalid(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 4, Email: "up@example.com", Role: store.RoleUploader}
	p := &store.Project{ID: 9, UUID: uuid.New()}
	ts.expectAuthLookup(u)
	ts.expectProjectLookup(u, p)

	body, contentType := multipartBody(t, []uploadFile{
		{name: "tool.exe", contentType: "application/octet-stream", content: []byte{0x4d, 0x5a}},
	})
	rec := ts.request(http.MethodPost, "/api/v1/data/upload/"+p.UUID.String(),
		ts.tokenFor(t, u), body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, SignalFileUploadFailed, decodeBody(t, rec)["signal"])
}

func TestProcessWithoutFiles(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 4, Email: "up@example.com", Role: store.RoleUploader}
	p := &store.Project{ID: 9, UUID: uuid.New()}
	ts.expectAuthLookup(u)
	ts.expectProjectLookup(u, p)

	ts.mock.ExpectQuery(`SELECT .* FROM assets`).
		WithArgs(9).
		WillReturnRows(pgxmock.NewRows([]string{
			"asset_id", "asset_project_id", "asset_type", "asset_name", "asset_size", "asset_config", "created_at",
		}))

	rec := ts.jsonRequest(http.MethodPost, "/api/v1/data/process/"+p.UUID.String(),
		ts.tokenFor(t, u), map[string]any{"do_reset": false})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, SignalNoFilesError, decodeBody(t, rec)["signal"])
}

func TestIndexPushWithoutChunks(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 4, Email: "up@example.com", Role: store.RoleUploader}
	p := &store.Project{ID: 9, UUID: uuid.New()}
	ts.expectAuthLookup(u)
	ts.expectProjectLookup(u, p)

	ts.mock.ExpectQuery(`SELECT count\(\*\) FROM chunks`).
		WithArgs(9).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	rec := ts.jsonRequest(http.MethodPost, "/api/v1/nlp/index/push/"+p.UUID.String(),
		ts.tokenFor(t, u), map[string]any{"do_reset": false})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, SignalVectorDBInsertError, decodeBody(t, rec)["signal"])
}

func TestIndexPush(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 4, Email: "up@example.com", Role: store.RoleUploader}
	p := &store.Project{ID: 9, UUID: uuid.New()}
	ts.expectAuthLookup(u)
	ts.expectProjectLookup(u, p)

	chunkRows := pgxmock.NewRows([]string{
		"chunk_id", "chunk_text", "chunk_metadata", "chunk_order", "chunk_project_id", "chunk_asset_id",
	}).AddRow(1, "some text", map[string]any{}, 1, 9, 2)

	ts.mock.ExpectQuery(`SELECT count\(\*\) FROM chunks`).
		WithArgs(9).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	ts.mock.ExpectQuery(`SELECT .* FROM chunks`).
		WithArgs(9, 100, 0).
		WillReturnRows(chunkRows)
	ts.mock.ExpectQuery(`SELECT .* FROM chunks`).
		WithArgs(9, 100, 100).
		WillReturnRows(pgxmock.NewRows([]string{
			"chunk_id", "chunk_text", "chunk_metadata", "chunk_order", "chunk_project_id", "chunk_asset_id",
		}))

	rec := ts.jsonRequest(http.MethodPost, "/api/v1/nlp/index/push/"+p.UUID.String(),
		ts.tokenFor(t, u), map[string]any{"do_reset": true})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, SignalVectorDBInsertSuccess, resp["signal"])
	assert.Equal(t, float64(1), resp["inserted_items_count"])
}

func TestMetricsRecordErrorStatus(t *testing.T) {
	ts := newTestServer(t)
	counter := requestsTotal.WithLabelValues(http.MethodGet, "/api/v1/users/me", "401")
	before := testutil.ToFloat64(counter)

	rec := ts.request(http.MethodGet, "/api/v1/users/me", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestExplainImage(t *testing.T) {
	ts := newTestServer(t)
	u := &store.User{ID: 4, Email: "chat@example.com", Role: store.RoleChatter}
	ts.expectAuthLookup(u)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="cat.png"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := ts.request(http.MethodPost, "/api/v1/vision/explain-image",
		ts.tokenFor(t, u), &buf, w.FormDataContentType())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a tabby cat", decodeBody(t, rec)["caption"])
}

func TestExplainImageWithoutBackend(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.svc.Captioner = nil
	u := &store.User{ID: 4, Email: "chat@example.com", Role: store.RoleChatter}
	ts.expectAuthLookup(u)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_, err := w.CreateFormFile("image", "cat.png")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := ts.request(http.MethodPost, "/api/v1/vision/explain-image",
		ts.tokenFor(t, u), &buf, w.FormDataContentType())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNukeRequiresAPIKey(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodDelete, "/api/v1/admin/nuke-and-rebuild-db", "", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/nuke-and-rebuild-db", nil)
	req.Header.Set(headerResetAPIKey, "wrong")
	rr := httptest.NewRecorder()
	ts.srv.echo.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestNuke(t *testing.T) {
	ts := newTestServer(t)

	ts.mock.ExpectQuery(`SELECT tablename FROM pg_tables`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"tablename"}).AddRow("chunks"))
	ts.mock.ExpectExec(`DROP TABLE IF EXISTS "chunks" CASCADE`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/nuke-and-rebuild-db", nil)
	req.Header.Set(headerResetAPIKey, "reset-key")
	rec := httptest.NewRecorder()
	ts.srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["asset_directory_cleared"])
	assert.NoError(t, ts.mock.ExpectationsWereMet())
}
