// Package receipts defines the receipt store used when an expense is
// recorded with an attached image or document. Adapters live in the
// gdrive and dropbox subpackages.
package receipts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"expensetracker/internal/core"

	"github.com/google/uuid"
)

// File is an uploaded receipt held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stores a receipt and returns a reference (URL or opaque id).
// Every failure wraps core.ErrUploadFailure.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}

// Disabled is used when no receipt store is configured.
type Disabled struct {
	Reason string
}

func (d Disabled) Upload(ctx context.Context, f File) (string, error) {
	reason := d.Reason
	if reason == "" {
		reason = "no receipt store configured"
	}
	return "", fmt.Errorf("%w: %s", core.ErrUploadFailure, reason)
}

// ObjectName builds a destination name that will not collide with other
// receipts uploaded for the same day:
// <YYYY-MM-DD>_<8 hex>_<sanitized original name>.
func ObjectName(f File, day core.Date) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return day.ISO() + "_" + id + "_" + sanitizeName(f.Name)
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "receipt"
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, name)
	if cleaned == "" || strings.Trim(cleaned, ".") == "" {
		return "receipt"
	}
	return cleaned
}
