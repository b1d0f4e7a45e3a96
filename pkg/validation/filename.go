package validation

import (
	"path/filepath"
	"strings"

	apperrors "snapsort/internal/errors"
)

// FilenameValidator handles validation of client-supplied image filenames.
// Upload headers arrive from an unauthenticated socket, so every name is
// treated as hostile until it reduces to a plain base name.
type FilenameValidator struct {
	allowedExtensions []string
}

// NewFilenameValidator creates a validator accepting JPEG filenames
func NewFilenameValidator() *FilenameValidator {
	return &FilenameValidator{
		allowedExtensions: []string{".jpg", ".jpeg"},
	}
}

// NewFilenameValidatorWithExtensions creates a validator with a custom extension list
func NewFilenameValidatorWithExtensions(extensions []string) *FilenameValidator {
	return &FilenameValidator{
		allowedExtensions: extensions,
	}
}

// Sanitize validates a client filename and returns the form that is safe to
// create inside the staging directory. The returned name is always a plain
// base name with no directory components.
func (v *FilenameValidator) Sanitize(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperrors.NewValidationError("filename cannot be empty", nil)
	}
	// Reject both separator styles outright; filepath.Base would pass
	// backslashes through untouched on Linux.
	if strings.ContainsAny(trimmed, `/\`) {
		return "", apperrors.NewValidationError("filename must not contain path separators", nil)
	}
	base := filepath.Base(trimmed)
	if base == "." || base == ".." || strings.HasPrefix(base, "..") {
		return "", apperrors.NewValidationError("filename must not reference parent directories", nil)
	}
	if strings.ContainsRune(base, '\x00') {
		return "", apperrors.NewValidationError("filename contains control characters", nil)
	}
	if len(base) > 255 {
		return "", apperrors.NewValidationError("filename too long", nil)
	}
	if !v.isExtensionAllowed(base) {
		return "", apperrors.NewValidationError("filename extension not allowed", nil)
	}
	return base, nil
}

// isExtensionAllowed checks the file extension against the allowed list.
// An empty list allows any extension.
func (v *FilenameValidator) isExtensionAllowed(name string) bool {
	if len(v.allowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range v.allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
