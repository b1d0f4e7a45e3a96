package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snapsort/internal/category"
	apperrors "snapsort/internal/errors"
	"snapsort/internal/logger"
	"snapsort/pkg/models"
)

// Store is the category-partitioned photo gallery on local disk. Every
// committed photo lives in exactly one category directory, optionally
// paired with a JSON metadata sidecar sharing its base name.
type Store struct {
	root string
}

// New creates the full category directory tree under root. Creating the
// closed set up front means readers never see a missing directory.
func New(root string) (*Store, error) {
	for _, c := range category.All() {
		if err := os.MkdirAll(filepath.Join(root, c.String()), 0o755); err != nil {
			return nil, apperrors.NewStorageError("failed to create category directory", err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the gallery root directory.
func (s *Store) Root() string {
	return s.root
}

// Provenance carries the upload facts recorded alongside a stored image.
type Provenance struct {
	FilterDisplay string
	ReceivedAt    time.Time
}

// StoredPhoto describes where a committed photo landed.
type StoredPhoto struct {
	Category category.Category
	Filename string
	Path     string
}

// Commit moves a staged file into its category directory with a single
// rename, then writes the metadata sidecar. The move never degrades into
// copy-plus-delete, so the staging directory must share a filesystem with
// the gallery root. A sidecar failure is logged and absorbed: the image is
// already safe, and readers fall back to display defaults.
func (s *Store) Commit(stagingPath string, res category.Resolution, prov Provenance) (StoredPhoto, error) {
	filename := filepath.Base(stagingPath)
	destPath := filepath.Join(s.root, res.Category.String(), filename)

	if err := os.Rename(stagingPath, destPath); err != nil {
		return StoredPhoto{}, apperrors.NewStorageError("failed to move photo into gallery", err)
	}

	meta := models.PhotoMetadata{
		Filename:   filename,
		Category:   res.Category.String(),
		AILabel:    res.Label,
		Confidence: fmt.Sprintf("%.2f%%", res.Confidence*100),
		Filter:     prov.FilterDisplay,
		Timestamp:  prov.ReceivedAt.Format(time.RFC3339),
		IsAnimal:   res.Category.IsAnimal(),
	}
	if err := s.writeSidecar(destPath, meta); err != nil {
		logger.WithError(err).WithField("filename", filename).Warn("Failed to write metadata sidecar")
	}

	return StoredPhoto{Category: res.Category, Filename: filename, Path: destPath}, nil
}

func (s *Store) writeSidecar(imagePath string, meta models.PhotoMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath(imagePath), data, 0o644)
}

// sidecarPath swaps the image extension for .json.
func sidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
}
