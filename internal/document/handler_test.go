package document_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwiki/config"
	"inkwiki/internal/attachment"
	docHandler "inkwiki/internal/document"
	"inkwiki/internal/document/repository"
	"inkwiki/internal/document/service"
	"inkwiki/pkg/logger"
	"inkwiki/router"
	"inkwiki/socket"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	local, err := attachment.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{FilesDir: local.Root()},
		Status: config.StatusConfig{
			Username:          "anonymous",
			Space:             config.Space{Recipe: "default"},
			TiddlyWikiVersion: "5.3.8",
		},
	}
	svc := service.NewDocumentService(repository.NewDocumentRepository(db), local, nil, nil, cfg.S3)
	h := docHandler.NewDocumentHandler(svc, nil, cfg.Status)
	return router.Setup(h, socket.NewHub(), cfg), mock
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "anonymous", status["username"])
	assert.Equal(t, "5.3.8", status["tiddlywiki_version"])
	assert.Equal(t, map[string]any{"recipe": "default"}, status["space"])
}

func TestPutDocumentSetsEtag(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs("HelloThere", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"revision"}).AddRow(int64(2)))

	req := httptest.NewRequest(http.MethodPut, "/recipes/default/tiddlers/HelloThere",
		strings.NewReader(`{"title":"HelloThere","text":"hi"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "default/HelloThere/2:", rec.Header().Get("Etag"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentWithSlashesInTitle(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT revision, metadata FROM documents WHERE title = $1")).
		WithArgs("$:/StoryList").
		WillReturnRows(sqlmock.NewRows([]string{"revision", "metadata"}).
			AddRow(int64(1), []byte(`{"title":"$:/StoryList","list":"HelloThere"}`)))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recipes/default/tiddlers/$:/StoryList", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "$:/StoryList", doc["title"])
	assert.Equal(t, "1", doc["revision"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingDocument(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT revision, metadata FROM documents WHERE title = $1")).
		WithArgs("Nope").
		WillReturnError(sql.ErrNoRows)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recipes/default/tiddlers/Nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDocumentsIsSkinny(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT title, revision, metadata FROM documents")).
		WillReturnRows(sqlmock.NewRows([]string{"title", "revision", "metadata"}).
			AddRow("A", int64(0), []byte(`{"title":"A","text":"a very long body"}`)))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recipes/default/tiddlers.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "A", docs[0]["title"])
	assert.NotContains(t, docs[0], "text")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteViaLegacyBagRoute(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM documents WHERE title = $1 RETURNING metadata")).
		WithArgs("Old").
		WillReturnRows(sqlmock.NewRows([]string{"metadata"}).AddRow([]byte(`{"title":"Old"}`)))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/bags/efault/tiddlers/Old", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignUploadWithoutS3(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sign-upload?filename=cat.png&content_type=image/png", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInboxRejectsEmptyText(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/inbox", strings.NewReader(`{"text":""}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
