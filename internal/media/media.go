// Package media stages uploaded files on local disk and hands them to a
// media host that returns a public URL.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Folders used as key prefixes on the host.
const (
	FolderAvatars = "avatars"
	FolderCovers  = "covers"
)

var uploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vidtube",
		Name:      "media_uploads_total",
		Help:      "Total number of media uploads by folder and result",
	},
	[]string{"folder", "result"},
)

// Host defines the interface for media hosting.
type Host interface {
	// Upload stores a file and returns the result with key and URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// Uploader copies multipart files into a temp directory and uploads the
// staged copy. The staged file is removed whether or not the upload succeeds.
type Uploader struct {
	host    Host
	tempDir string
	logger  *slog.Logger
}

// NewUploader creates an Uploader staging files under tempDir.
func NewUploader(host Host, tempDir string, logger *slog.Logger) *Uploader {
	return &Uploader{host: host, tempDir: tempDir, logger: logger}
}

// Upload stages fh and uploads it under folder. It returns the public URL.
func (u *Uploader) Upload(ctx context.Context, folder string, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", fmt.Errorf("upload %s: no file", folder)
	}

	staged, err := u.stage(fh)
	if err != nil {
		uploadsTotal.WithLabelValues(folder, "error").Inc()
		return "", fmt.Errorf("stage %s: %w", fh.Filename, err)
	}
	defer u.discard(staged)

	info, err := staged.Stat()
	if err != nil {
		uploadsTotal.WithLabelValues(folder, "error").Inc()
		return "", fmt.Errorf("stat staged file: %w", err)
	}

	res, err := u.host.Upload(ctx, &UploadInput{
		Key:         StorageKey(folder, fh.Filename, time.Now()),
		ContentType: contentType(fh),
		Size:        info.Size(),
		Data:        staged,
	})
	if err != nil {
		uploadsTotal.WithLabelValues(folder, "error").Inc()
		return "", fmt.Errorf("upload %s: %w", fh.Filename, err)
	}

	uploadsTotal.WithLabelValues(folder, "ok").Inc()
	u.logger.DebugContext(ctx, "media uploaded",
		slog.String("folder", folder),
		slog.String("key", res.Key),
		slog.Int64("size", info.Size()),
	)
	return res.URL, nil
}

func (u *Uploader) stage(fh *multipart.FileHeader) (*os.File, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err := os.MkdirAll(u.tempDir, 0o750); err != nil {
		return nil, err
	}
	dst, err := os.CreateTemp(u.tempDir, "upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		u.discard(dst)
		return nil, err
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		u.discard(dst)
		return nil, err
	}
	return dst, nil
}

func (u *Uploader) discard(f *os.File) {
	_ = f.Close()
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		u.logger.Warn("failed to remove staged upload",
			slog.String("path", f.Name()),
			slog.String("error", err.Error()),
		)
	}
}

// StorageKey builds a dated, collision-free object key under folder.
func StorageKey(folder, filename string, t time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s", folder, t.Year(), t.Month(), t.Day(), uuid.NewString(), ext)
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(fh.Filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
