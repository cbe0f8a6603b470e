package services

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/a-abukar/cv-review-generator/internal/models"
)

// StagingService writes uploads to disk for environments that need a file path.
// Every staged file is removed by the cleanup func returned from Stage.
type StagingService interface {
	EnsureUploadDir() error
	Stage(doc models.UploadedDocument, prefix string) (string, func(), error)
	GetFilePath(filename string) string
	DeleteFile(filename string) error
}

type stagingService struct {
	uploadPath string
	logger     *slog.Logger
}

func NewStagingService(uploadPath string, logger *slog.Logger) StagingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &stagingService{
		uploadPath: uploadPath,
		logger:     logger,
	}
}

func (s *stagingService) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0o700); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	return nil
}

func (s *stagingService) Stage(doc models.UploadedDocument, prefix string) (string, func(), error) {
	uniqueFilename := fmt.Sprintf("%s_%s.pdf", prefix, uuid.New().String())
	filePath := s.GetFilePath(uniqueFilename)

	if err := os.WriteFile(filePath, doc.Bytes, 0o600); err != nil {
		// a partial write may have left a file behind
		_ = os.Remove(filePath)
		return "", func() {}, fmt.Errorf("failed to stage upload: %w", err)
	}

	cleanup := func() {
		if err := s.DeleteFile(uniqueFilename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("⚠️ Failed to remove staged file", "file", uniqueFilename, "error", err)
		}
	}

	return filePath, cleanup, nil
}

func (s *stagingService) GetFilePath(filename string) string {
	return filepath.Join(s.uploadPath, filepath.Base(filename))
}

func (s *stagingService) DeleteFile(filename string) error {
	if err := os.Remove(s.GetFilePath(filename)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
