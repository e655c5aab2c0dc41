package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/validator"
)

const (
	maxJSONBody = 1 << 20
	// multipart parts above this size spill to temporary files.
	multipartMemory = 8 << 20
)

// decodeJSON decodes and validates an optional JSON body into dst. An empty
// body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return validator.Validate(dst)
}

// parseMultipart reads a multipart form of at most maxBytes. The caller must
// call RemoveAll on the returned form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, apperrors.InvalidInput(fmt.Sprintf("request body exceeds %d bytes", maxBytes))
		case errors.Is(err, http.ErrNotMultipart):
			return nil, apperrors.InvalidInput("request must be multipart/form-data")
		default:
			return nil, apperrors.InvalidInput("invalid multipart form")
		}
	}
	return r.MultipartForm, nil
}

// formFile returns the first file uploaded under name, or nil.
func formFile(form *multipart.Form, name string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	if files := form.File[name]; len(files) > 0 {
		return files[0]
	}
	return nil
}

func formValue(form *multipart.Form, name string) string {
	if form == nil {
		return ""
	}
	if values := form.Value[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}
