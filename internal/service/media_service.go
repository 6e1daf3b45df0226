package service

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/config"
)

// Sentinel errors for verification image uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnknownImageKind    = errors.New("unknown image kind")
)

// ImageKind distinguishes the two verification captures.
type ImageKind string

const (
	ImageKindFace   ImageKind = "face"
	ImageKindIDCard ImageKind = "id_card"
)

// Allowed image MIME types.
var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// MediaService stores verification images. Storage failures are reported to
// the caller but never block a capture retry: the flow only needs a URL to
// eventually appear.
type MediaService struct {
	cfg *config.Config
}

// NewMediaService creates a new MediaService.
func NewMediaService(cfg *config.Config) *MediaService {
	return &MediaService{cfg: cfg}
}

// SaveVerificationImage validates and stores an uploaded image for an
// invitation. Returns the relative URL path to the saved file.
func (s *MediaService) SaveVerificationImage(invitationID uuid.UUID, kind ImageKind, file multipart.File, header *multipart.FileHeader) (string, error) {
	if kind != ImageKindFace && kind != ImageKindIDCard {
		return "", fmt.Errorf("%w: %q", ErrUnknownImageKind, kind)
	}

	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}

	if header.Size > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}

	dir := filepath.Join(s.cfg.UploadDir, "verification", invitationID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	filename := string(kind) + "-" + uuid.New().String() + ext
	destPath := filepath.Join(dir, filename)

	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return "/uploads/verification/" + invitationID.String() + "/" + filename, nil
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	return types
}
