package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"ragchat/internal/config"
	"ragchat/internal/embedding"
)

type fakeModelProvider struct{}

func (fakeModelProvider) Embed(ctx context.Context, texts []string, mode embedding.Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, embedding.Dim)
	}
	return out, nil
}

func (fakeModelProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return "answer", nil
}

func (fakeModelProvider) GenerateStream(ctx context.Context, prompt string) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}

func testAppConfig(t *testing.T) *config.Config {
	return &config.Config{
		IngestMode:      config.IngestModeSync,
		ChunkSize:       800,
		ChunkOverlap:    150,
		MaxUploadSizeMB: 10,
		ServerPort:      8081,
		QueryLogPath:    t.TempDir() + "/query.log",
	}
}

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	a, err := New(testAppConfig(t), db, fakeModelProvider{}, nil)
	assert.NoError(t, err)
	assert.NotNil(t, a)
	assert.NotNil(t, a.Handler)
	assert.NotNil(t, a.DocumentService)
	assert.NotNil(t, a.IngestConsumer)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRoutes_MethodMatching(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	a, err := New(testAppConfig(t), db, fakeModelProvider{}, nil)
	assert.NoError(t, err)

	// Wrong method on a registered path.
	req := httptest.NewRequest("PUT", "/documents", nil)
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	// Unknown route.
	req = httptest.NewRequest("GET", "/nope", nil)
	w = httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
