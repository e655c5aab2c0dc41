package memory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/media"
)

func TestHost_UploadAndGet(t *testing.T) {
	h := New("http://localhost:8000/")

	res, err := h.Upload(context.Background(), &media.UploadInput{
		Key:         "avatars/a.png",
		ContentType: "image/png",
		Data:        strings.NewReader("data"),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/media/avatars/a.png", res.URL)

	data, ct, ok := h.Get("avatars/a.png")
	require.True(t, ok)
	assert.Equal(t, "data", string(data))
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, 1, h.Len())

	_, _, ok = h.Get("missing")
	assert.False(t, ok)
}

func TestHost_ServeHTTP(t *testing.T) {
	h := New("http://localhost:8000")
	_, err := h.Upload(context.Background(), &media.UploadInput{
		Key:         "covers/c.jpg",
		ContentType: "image/jpeg",
		Data:        strings.NewReader("jpeg"),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/covers/c.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/covers/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
