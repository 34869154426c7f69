package media

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zeelink/internal/config"
	"zeelink/internal/models"
	"zeelink/internal/testutil"

	"github.com/chai2010/webp"
)

func TestAvatarServiceUpload(t *testing.T) {
	cfg := &config.Config{AvatarUploadDir: t.TempDir(), AvatarMaxUploadSizeMB: 1}
	svc := NewAvatarService(cfg)

	content := testutil.TinyPNG(t, 600, 400)
	url, err := svc.Upload(context.Background(), "identity-1", content, "image/png")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if !strings.HasPrefix(url, URLPrefix) || !strings.HasSuffix(url, ".webp") {
		t.Fatalf("unexpected url %q", url)
	}

	name := strings.TrimPrefix(url, URLPrefix)
	path, err := svc.Resolve(name)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	stored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored avatar: %v", err)
	}
	cfgImg, err := webp.DecodeConfig(bytes.NewReader(stored))
	if err != nil {
		t.Fatalf("stored avatar is not webp: %v", err)
	}
	if cfgImg.Width != AvatarSize || cfgImg.Height != AvatarSize {
		t.Fatalf("expected %dx%d avatar, got %dx%d", AvatarSize, AvatarSize, cfgImg.Width, cfgImg.Height)
	}

	// Same content by the same identity dedupes.
	again, err := svc.Upload(context.Background(), "identity-1", content, "image/png")
	if err != nil {
		t.Fatalf("repeat upload failed: %v", err)
	}
	if again != url {
		t.Fatalf("expected deduped url %q, got %q", url, again)
	}

	other, err := svc.Upload(context.Background(), "identity-2", content, "")
	if err != nil {
		t.Fatalf("upload for other identity failed: %v", err)
	}
	if other == url {
		t.Fatal("expected distinct file per identity")
	}
}

func TestAvatarServiceUploadJPEG(t *testing.T) {
	svc := NewAvatarService(&config.Config{AvatarUploadDir: t.TempDir()})
	if _, err := svc.Upload(context.Background(), "identity-1", testutil.TinyJPEG(t, 64, 128), "image/jpg"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
}

func TestAvatarServiceUploadValidation(t *testing.T) {
	svc := NewAvatarService(&config.Config{AvatarUploadDir: t.TempDir(), AvatarMaxUploadSizeMB: 1})
	png := testutil.TinyPNG(t, 32, 32)

	tests := []struct {
		name        string
		identityID  string
		content     []byte
		contentType string
		wantCode    string
	}{
		{"anonymous", "", png, "image/png", models.CodeUnauthorized},
		{"empty", "id", nil, "image/png", models.CodeValidation},
		{"not an image", "id", []byte("not an image"), "text/plain", models.CodeValidation},
		{"too large", "id", bytes.Repeat([]byte{'a'}, 2*1024*1024), "image/png", models.CodeValidation},
		{"type mismatch", "id", png, "image/gif", models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.identityID, tt.content, tt.contentType)
			if !models.HasCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestAvatarServiceResolveRejectsTraversal(t *testing.T) {
	svc := NewAvatarService(&config.Config{AvatarUploadDir: t.TempDir()})
	for _, name := range []string{"../config.yml", "abc.png", "ABC.webp", ".webp", filepath.Join("..", "abc.webp")} {
		if _, err := svc.Resolve(name); !models.HasCode(err, models.CodeValidation) {
			t.Fatalf("expected validation error for %q, got %v", name, err)
		}
	}
	if _, err := svc.Resolve("abcdef.webp"); !models.HasCode(err, models.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCropSquare(t *testing.T) {
	img := cropSquare(image.NewRGBA(image.Rect(0, 0, 300, 100)))
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Fatalf("expected 100x100, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeAvatar_DeclaredType(t *testing.T) {
	jpeg := testutil.TinyJPEG(t, 40, 20)
	for _, declared := range []string{"", "image/jpeg", "image/jpg", "IMAGE/JPEG; q=1", "application/octet-stream"} {
		if _, err := normalizeAvatar(jpeg, declared); err != nil {
			t.Fatalf("declared %q: unexpected error %v", declared, err)
		}
	}
	if _, err := normalizeAvatar(jpeg, "image/png"); !models.HasCode(err, models.CodeValidation) {
		t.Fatalf("expected mismatch to be rejected, got %v", err)
	}
}

func TestScaleSquare(t *testing.T) {
	small := scaleSquare(image.NewRGBA(image.Rect(0, 0, 10, 10)), AvatarSize)
	if b := small.Bounds(); b.Dx() != AvatarSize || b.Dy() != AvatarSize {
		t.Fatalf("expected %dx%d, got %dx%d", AvatarSize, AvatarSize, b.Dx(), b.Dy())
	}
}
