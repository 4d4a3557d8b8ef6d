package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/metrics"
	"github.com/esplendidez/fest-registration/internal/model"
)

// LocalBackend writes files under dir; they are served statically under
// publicPrefix.
type LocalBackend struct {
	dir          string
	publicPrefix string
	comp         *Compressor
}

// NewLocalBackend creates dir if needed. A nil Compressor stores images
// unchanged.
func NewLocalBackend(dir, publicPrefix string, comp *Compressor) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalBackend{dir: dir, publicPrefix: publicPrefix, comp: comp}, nil
}

func (b *LocalBackend) Name() string { return "local" }

// Store writes the original under a random name, then for images replaces
// it with the recompressed JPEG. Recompression failure keeps the original.
func (b *LocalBackend) Store(_ context.Context, f *File) (*model.Attachment, error) {
	id := uuid.NewString()
	name := id + extensionFor(f)
	full := filepath.Join(b.dir, name)
	if err := os.WriteFile(full, f.Data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrUpstream, name, err)
	}
	att := &model.Attachment{
		Filename:     name,
		OriginalName: f.OriginalName,
		Path:         path.Join(b.publicPrefix, name),
		Size:         int64(len(f.Data)),
		MimeType:     f.MimeType,
	}
	if b.comp == nil || !f.IsImage() {
		return att, nil
	}

	out, err := b.comp.Compress(f.Data)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("image recompression failed, keeping original")
		metrics.Uploads.WithLabelValues(b.Name(), "compress_failed").Inc()
		return att, nil
	}
	jpgName := id + ".jpg"
	jpgFull := filepath.Join(b.dir, jpgName)
	tmp := jpgFull + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("write recompressed image failed, keeping original")
		_ = os.Remove(tmp)
		return att, nil
	}
	if err := os.Rename(tmp, jpgFull); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("replace with recompressed image failed, keeping original")
		_ = os.Remove(tmp)
		return att, nil
	}
	if jpgFull != full {
		if err := os.Remove(full); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("remove pre-compression file")
		}
	}
	att.Filename = jpgName
	att.Path = path.Join(b.publicPrefix, jpgName)
	att.Size = int64(len(out))
	att.MimeType = "image/jpeg"
	return att, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (b *LocalBackend) Remove(_ context.Context, att model.Attachment) error {
	err := os.Remove(filepath.Join(b.dir, filepath.Base(att.Filename)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
