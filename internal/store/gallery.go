package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"snapsort/internal/category"
	apperrors "snapsort/internal/errors"
	"snapsort/pkg/models"
)

// Display defaults for photos whose sidecar is missing or unreadable.
const (
	defaultFilter     = "Normal"
	defaultLabel      = "Not classified"
	defaultConfidence = "N/A"
)

// List returns the photos of one category, newest first. Filenames embed
// their capture timestamp, so descending name order is recency order and no
// stat calls are needed to sort.
func (s *Store) List(cat category.Category) ([]models.PhotoItem, error) {
	dir := filepath.Join(s.root, cat.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read category directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isImageName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	items := make([]models.PhotoItem, 0, len(names))
	for _, name := range names {
		items = append(items, s.itemFor(cat, dir, name))
	}
	return items, nil
}

// ListAll maps every category to its items.
func (s *Store) ListAll() (map[string][]models.PhotoItem, error) {
	out := make(map[string][]models.PhotoItem, len(category.All()))
	for _, c := range category.All() {
		items, err := s.List(c)
		if err != nil {
			return nil, err
		}
		out[c.String()] = items
	}
	return out, nil
}

// Stats counts photos per category and per filter display name.
func (s *Store) Stats() (models.GalleryStats, error) {
	stats := models.GalleryStats{
		Categories: make(map[string]int),
		Filters:    make(map[string]int),
	}
	for _, c := range category.All() {
		items, err := s.List(c)
		if err != nil {
			return models.GalleryStats{}, err
		}
		stats.Categories[c.String()] = len(items)
		stats.Total += len(items)
		for _, item := range items {
			stats.Filters[item.Filter]++
		}
	}
	return stats, nil
}

// LastModified reports the newest modification time under any category
// directory. Pollers use it to detect gallery changes without listing
// everything.
func (s *Store) LastModified() (time.Time, error) {
	var latest time.Time
	for _, c := range category.All() {
		entries, err := os.ReadDir(filepath.Join(s.root, c.String()))
		if err != nil {
			return time.Time{}, apperrors.NewStorageError("failed to read category directory", err)
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(latest) {
				latest = info.ModTime()
			}
		}
	}
	return latest, nil
}

// ImagePath resolves a serving request to the stored file, confirming it
// exists. Callers validate the category and sanitize the filename first.
func (s *Store) ImagePath(cat category.Category, filename string) (string, error) {
	path := filepath.Join(s.root, cat.String(), filename)
	if _, err := os.Stat(path); err != nil {
		return "", apperrors.NewNotFoundError("photo not found", err)
	}
	return path, nil
}

func (s *Store) itemFor(cat category.Category, dir, name string) models.PhotoItem {
	item := models.PhotoItem{
		URL:        fmt.Sprintf("/gallery/%s/%s", cat, name),
		Name:       name,
		Category:   cat.String(),
		Filter:     defaultFilter,
		AILabel:    defaultLabel,
		Confidence: defaultConfidence,
	}

	path := filepath.Join(dir, name)
	if info, err := os.Stat(path); err == nil {
		item.Time = info.ModTime().Format("2006-01-02 15:04:05")
	}

	data, err := os.ReadFile(sidecarPath(path))
	if err != nil {
		return item
	}
	var meta models.PhotoMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return item
	}
	if meta.Filter != "" {
		item.Filter = meta.Filter
	}
	if meta.AILabel != "" {
		item.AILabel = meta.AILabel
	}
	if meta.Confidence != "" {
		item.Confidence = meta.Confidence
	}
	return item
}

func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}
