package media

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"slices"
	"strings"

	"zeelink/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	AvatarSize  = 256
	WebPQuality = 80
)

// acceptedFormats maps an image.Decode format name to the content types a
// client may declare for it.
var acceptedFormats = map[string][]string{
	"jpeg": {"image/jpeg", "image/jpg"},
	"png":  {"image/png"},
	"gif":  {"image/gif"},
	"webp": {"image/webp"},
}

// normalizeAvatar decodes content, checks it against the declared type,
// center-crops it to a square, scales it to AvatarSize and encodes WebP.
func normalizeAvatar(content []byte, declared string) ([]byte, error) {
	if !strings.HasPrefix(http.DetectContentType(content), "image/") {
		return nil, models.NewValidationError("Invalid image type")
	}
	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	aliases, ok := acceptedFormats[format]
	if !ok {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if ct := mediaType(declared); strings.HasPrefix(ct, "image/") && !slices.Contains(aliases, ct) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, scaleSquare(cropSquare(img), AvatarSize), &webp.Options{Quality: WebPQuality}); err != nil {
		return nil, models.NewInternalError(err)
	}
	return buf.Bytes(), nil
}

func mediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// cropSquare takes the largest centered square.
func cropSquare(src image.Image) image.Image {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	if side <= 0 {
		return src
	}
	offset := image.Pt(b.Min.X+(b.Dx()-side)/2, b.Min.Y+(b.Dy()-side)/2)
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, offset, draw.Src)
	return dst
}

// scaleSquare scales a square image to size x size, up or down.
func scaleSquare(src image.Image, size int) image.Image {
	if b := src.Bounds(); b.Dx() == size && b.Dy() == size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
