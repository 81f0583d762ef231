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
	"github.com/vivassoc/roster-backend/internal/config"
)

// Sentinel errors for spreadsheet uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// Accepted spreadsheet extensions. Validation is by extension, not MIME:
// browsers and office suites disagree wildly on the MIME type of .xlsx and
// .csv uploads.
var allowedExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".csv":  true,
	".json": true,
}

// UploadService stores uploaded roster spreadsheets before ingestion.
type UploadService struct {
	cfg *config.Config
}

// NewUploadService creates a new UploadService.
func NewUploadService(cfg *config.Config) *UploadService {
	return &UploadService{cfg: cfg}
}

// SaveUpload saves an uploaded spreadsheet to local storage with a UUID
// filename, keeping the original extension so the reader can dispatch on it.
// Returns the absolute path of the saved file.
func (s *UploadService) SaveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, ext, strings.Join(allowedExts(), ", "))
	}

	if header.Size > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	filename := uuid.New().String() + ext
	destPath := filepath.Join(s.cfg.UploadDir, filename)

	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return destPath, nil
}

func allowedExts() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for e := range allowedExtensions {
		exts = append(exts, e)
	}
	return exts
}
