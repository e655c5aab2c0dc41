// Package memory provides an in-process media host for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/vidtube/backend/internal/media"
)

type object struct {
	contentType string
	data        []byte
}

// Host implements media.Host using an in-memory map.
type Host struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

// New creates a new in-memory host serving URLs under baseURL.
func New(baseURL string) *Host {
	return &Host{
		objects: make(map[string]object),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload reads the data into memory and returns the generated URL.
func (h *Host) Upload(_ context.Context, input *media.UploadInput) (*media.UploadResult, error) {
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", input.Key, err)
	}

	h.mu.Lock()
	h.objects[input.Key] = object{contentType: input.ContentType, data: data}
	h.mu.Unlock()

	return &media.UploadResult{
		Key: input.Key,
		URL: fmt.Sprintf("%s/media/%s", h.baseURL, input.Key),
	}, nil
}

// Get returns the stored bytes for key.
func (h *Host) Get(key string) ([]byte, string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	o, ok := h.objects[key]
	return o.data, o.contentType, ok
}

// Len returns the number of stored objects.
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.objects)
}

// ServeHTTP serves stored objects. Mounted under /media/ so the URLs returned
// by Upload resolve.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := h.Get(strings.TrimPrefix(r.URL.Path, "/media/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
