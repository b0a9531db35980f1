package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	ErrFileTooLarge  = errors.New("file too large")
	ErrTooManyFiles  = errors.New("too many files")
	ErrNotAnImage    = errors.New("file is not an image")
	ErrEmptyFile     = errors.New("file is empty")
	ErrSizeMismatch  = errors.New("received size does not match declared size")
	ErrMissingHeader = errors.New("chunk received before file header")
)

var validate = validator.New()

// validateRequest runs the struct tag rules of a request message.
func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Limits bound a single upload batch.
type Limits struct {
	MaxFileBytes int64
	MaxFiles     int
}

// Admit checks f against the limits and its declared content type, then adds
// it to batch.
func (l Limits) Admit(batch *models.UploadBatch, f models.PendingFile) error {
	if l.MaxFiles > 0 && batch.Len() >= l.MaxFiles {
		return fmt.Errorf("%w: at most %d per upload", ErrTooManyFiles, l.MaxFiles)
	}
	if err := l.CheckSize(f.Filename, f.Size()); err != nil {
		return err
	}
	if f.Size() == 0 {
		return fmt.Errorf("%s: %w", f.Filename, ErrEmptyFile)
	}
	if err := ValidateContentType(f.Data, f.ContentType); err != nil {
		return fmt.Errorf("%s: %w", f.Filename, err)
	}
	batch.Add(f)
	return nil
}

// CheckSize rejects a file as soon as it grows past MaxFileBytes.
func (l Limits) CheckSize(filename string, size int64) error {
	if l.MaxFileBytes > 0 && size > l.MaxFileBytes {
		return fmt.Errorf("%s: %w (max %d bytes)", filename, ErrFileTooLarge, l.MaxFileBytes)
	}
	return nil
}

// ValidateContentType checks that data looks like an image and, when a type
// was declared, that it agrees with the detected one. Formats the sniffer
// does not know (HEIC, for one) pass when declared as an image.
func ValidateContentType(data []byte, declaredType string) error {
	n := len(data)
	if n > 512 {
		n = 512
	}
	actualType := http.DetectContentType(data[:n])

	if !strings.HasPrefix(actualType, "image/") {
		if actualType == "application/octet-stream" && strings.HasPrefix(declaredType, "image/") {
			return nil
		}
		return fmt.Errorf("%w: detected %s", ErrNotAnImage, actualType)
	}
	if declaredType != "" && !isContentTypeMatch(actualType, declaredType) {
		return fmt.Errorf("%w: declared=%s, detected=%s", ErrNotAnImage, declaredType, actualType)
	}
	return nil
}

func isContentTypeMatch(actual, declared string) bool {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if actual == declared {
		return true
	}

	// "image/jpeg" matches "image/*" and any other image subtype; clients
	// often guess the subtype from the extension.
	actualPrefix, _, _ := strings.Cut(actual, "/")
	declaredPrefix, _, _ := strings.Cut(declared, "/")
	if actualPrefix == declaredPrefix {
		return true
	}

	// Browsers send this for files they can't type.
	return declared == "application/octet-stream"
}
