// Package media stores profile avatars.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"zeelink/internal/config"
	"zeelink/internal/middleware"
	"zeelink/internal/models"
)

const (
	DefaultAvatarUploadDir       = "/tmp/zeelink/uploads/avatars"
	DefaultAvatarMaxUploadSizeMB = 5
	// URLPrefix is where stored avatars are served from.
	URLPrefix = "/media/avatars/"

	avatarExt = ".webp"
)

// storedName matches the files Upload writes. Nothing else is served.
var storedName = regexp.MustCompile(`^[0-9a-f]{1,128}\.webp$`)

// AvatarService normalizes uploaded avatars into square WebP files named by
// content hash.
type AvatarService struct {
	dir      string
	maxBytes int64
}

// NewAvatarService reads AVATAR_UPLOAD_DIR and AVATAR_MAX_UPLOAD_MB from cfg,
// which may be nil.
func NewAvatarService(cfg *config.Config) *AvatarService {
	s := &AvatarService{dir: DefaultAvatarUploadDir, maxBytes: DefaultAvatarMaxUploadSizeMB << 20}
	if cfg == nil {
		return s
	}
	if cfg.AvatarUploadDir != "" {
		s.dir = cfg.AvatarUploadDir
	}
	if cfg.AvatarMaxUploadSizeMB > 0 {
		s.maxBytes = int64(cfg.AvatarMaxUploadSizeMB) << 20
	}
	return s
}

// Dir is the directory avatars are written to.
func (s *AvatarService) Dir() string { return s.dir }

// MaxUploadBytes is the largest accepted upload.
func (s *AvatarService) MaxUploadBytes() int64 { return s.maxBytes }

// Upload normalizes content with normalizeAvatar and stores it under a name
// derived from the owner and the encoded bytes, so a repeated upload returns
// the same URL without writing again.
func (s *AvatarService) Upload(ctx context.Context, identityID string, content []byte, contentType string) (string, error) {
	switch {
	case identityID == "":
		return "", models.NewUnauthorizedError("Authentication required")
	case len(content) == 0:
		return "", models.NewValidationError("No file uploaded")
	case int64(len(content)) > s.maxBytes:
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes>>20))
	}

	encoded, err := normalizeAvatar(content, contentType)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(append([]byte(identityID+":"), encoded...))
	name := hex.EncodeToString(sum[:]) + avatarExt
	if err := s.writeOnce(name, encoded); err != nil {
		return "", models.NewInternalError(err)
	}

	middleware.Logger.InfoContext(ctx, "avatar stored",
		slog.String("identity_id", identityID), slog.String("file", name), slog.Int("bytes", len(encoded)))
	return URLPrefix + name, nil
}

func (s *AvatarService) writeOnce(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Resolve maps a stored avatar file name to its path on disk.
func (s *AvatarService) Resolve(name string) (string, error) {
	if !storedName.MatchString(name) {
		return "", models.NewValidationError("Invalid avatar name")
	}
	path := filepath.Join(s.dir, name)
	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", models.NewNotFoundError("Avatar", name)
	case err != nil:
		return "", models.NewInternalError(err)
	}
	return path, nil
}
