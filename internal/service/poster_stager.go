package service

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/cinevault/internal/apperr"
)

// ObjectStore is the remote image storage behind the stager.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, folder string) (string, error)
	Destroy(ctx context.Context, publicID string) error
}

// PosterStager moves uploaded poster files from local disk to object
// storage and removes them again when a movie's poster is replaced or the
// movie is deleted.
type PosterStager struct {
	store  ObjectStore
	folder string
	log    *zap.Logger
}

func NewPosterStager(store ObjectStore, folder string, log *zap.Logger) *PosterStager {
	return &PosterStager{store: store, folder: folder, log: log.Named("poster-stager")}
}

// Stage uploads the file at localPath and returns its public URL. The
// local file is removed only after a successful upload; on failure it is
// left for the caller's cleanup.
func (p *PosterStager) Stage(ctx context.Context, localPath string) (string, error) {
	u, err := p.store.Upload(ctx, localPath, p.folder)
	if err != nil {
		return "", apperr.Upstream("Failed to upload poster image", err)
	}
	if err := os.Remove(localPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.log.Warn("remove staged temp file", zap.String("path", localPath), zap.Error(err))
	}
	return u, nil
}

// Unstage deletes the object behind posterURL. URLs that do not point at
// our object storage are ignored. Failures are logged and returned; no
// caller treats them as fatal.
func (p *PosterStager) Unstage(ctx context.Context, posterURL string) error {
	id := PublicIDFromURL(posterURL)
	if id == "" {
		return nil
	}
	if err := p.store.Destroy(ctx, id); err != nil {
		p.log.Warn("poster cleanup failed", zap.String("public_id", id), zap.Error(err))
		return err
	}
	p.log.Debug("poster removed", zap.String("public_id", id))
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL derives the storage public id from a delivery URL such
// as https://res.cloudinary.com/<cloud>/image/upload/v1712/cinevault/images/abc.jpg
// (-> "cinevault/images/abc"). It returns "" for anything else.
func PublicIDFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !strings.HasSuffix(u.Hostname(), "cloudinary.com") {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	i := 0
	for i < len(segs) && segs[i] != "upload" {
		i++
	}
	if i >= len(segs)-1 {
		return ""
	}
	rest := segs[i+1:]
	if versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return ""
	}
	id := strings.Join(rest, "/")
	return strings.TrimSuffix(id, path.Ext(id))
}
