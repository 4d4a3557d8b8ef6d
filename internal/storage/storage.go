// Package storage validates uploaded attachments and persists them to local
// disk or Cloudinary, recompressing images on the way.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/metrics"
	"github.com/esplendidez/fest-registration/internal/model"
)

var (
	// ErrUnsupportedType is returned for content outside the allow-list.
	ErrUnsupportedType = errors.New("only images (png, jpg, jpeg, webp, gif) or PDF files are allowed")
	// ErrFileTooLarge is returned when a file exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUpstream wraps disk and object store failures.
	ErrUpstream = errors.New("storage upstream failure")
)

// allowedTypes is checked against the sniffed content, not the client's
// declared Content-Type.
var allowedTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif", "application/pdf"}

// Kind names what an attachment proves. Remote backends file each kind
// under its own folder.
type Kind string

const (
	KindIDProof      Kind = "id-proof"
	KindPaymentProof Kind = "payment-proof"
)

// File is an accepted upload held in memory.
type File struct {
	Kind         Kind
	OriginalName string
	MimeType     string
	Data         []byte
}

// IsImage reports whether the file will be recompressed.
func (f *File) IsImage() bool { return strings.HasPrefix(f.MimeType, "image/") }

// Backend persists accepted files.
type Backend interface {
	Name() string
	Store(ctx context.Context, f *File) (*model.Attachment, error)
	Remove(ctx context.Context, att model.Attachment) error
}

// Intake is the entry point for attachments: it enforces the size ceiling
// and type allow-list before anything reaches the backend.
type Intake struct {
	backend  Backend
	maxBytes int64
}

func NewIntake(b Backend, maxBytes int64) *Intake {
	return &Intake{backend: b, maxBytes: maxBytes}
}

// MaxBytes returns the per-file ceiling.
func (in *Intake) MaxBytes() int64 { return in.maxBytes }

// Inspect validates data without storing it.
func (in *Intake) Inspect(kind Kind, name string, data []byte) (*File, error) {
	f, err := in.inspect(kind, name, data)
	if err != nil {
		metrics.Uploads.WithLabelValues(in.backend.Name(), "rejected").Inc()
	}
	return f, err
}

func (in *Intake) inspect(kind Kind, name string, data []byte) (*File, error) {
	if int64(len(data)) > in.maxBytes {
		return nil, fmt.Errorf("%w: maximum size is %s", ErrFileTooLarge, humanSize(in.maxBytes))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedType)
	}
	mt := mimetype.Detect(data)
	for _, allowed := range allowedTypes {
		if mt.Is(allowed) {
			return &File{Kind: kind, OriginalName: filepath.Base(name), MimeType: allowed, Data: data}, nil
		}
	}
	return nil, fmt.Errorf("%w (got %s)", ErrUnsupportedType, mt.String())
}

// Accept validates data and hands it to the backend.
func (in *Intake) Accept(ctx context.Context, kind Kind, name string, data []byte) (*model.Attachment, error) {
	f, err := in.Inspect(kind, name, data)
	if err != nil {
		return nil, err
	}
	return in.Store(ctx, f)
}

// Store persists a file that already passed Inspect.
func (in *Intake) Store(ctx context.Context, f *File) (*model.Attachment, error) {
	att, err := in.backend.Store(ctx, f)
	if err != nil {
		metrics.Uploads.WithLabelValues(in.backend.Name(), "failed").Inc()
		return nil, err
	}
	metrics.Uploads.WithLabelValues(in.backend.Name(), "stored").Inc()
	return att, nil
}

// Discard removes a stored attachment after a failed registration. Failures
// are logged only.
func (in *Intake) Discard(ctx context.Context, att *model.Attachment) {
	if att == nil {
		return
	}
	if err := in.backend.Remove(ctx, *att); err != nil {
		log.Warn().Err(err).Str("file", att.Filename).Msg("discard stored attachment")
	}
}

// ReadFormFile reads at most max+1 bytes so oversized parts are detected
// without buffering them fully.
func ReadFormFile(fh *multipart.FileHeader, max int64) ([]byte, error) {
	if fh.Size > max {
		return nil, fmt.Errorf("%w: maximum size is %s", ErrFileTooLarge, humanSize(max))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: maximum size is %s", ErrFileTooLarge, humanSize(max))
	}
	return data, nil
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/mb), "0"), ".") + "MB"
	}
	return fmt.Sprintf("%dKB", n/1024)
}

// extensionFor picks the stored file extension from the sniffed type,
// falling back to the client's name.
func extensionFor(f *File) string {
	switch f.MimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	}
	return strings.ToLower(filepath.Ext(f.OriginalName))
}
