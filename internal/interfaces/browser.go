package interfaces

import (
	"context"

	"github.com/ternarybob/recondo/internal/models"
)

// BrowserService owns the process-wide headless browser. Init and Close are
// idempotent; Capture fails fast when the browser is not initialized.
type BrowserService interface {
	Init(ctx context.Context) error
	Capture(ctx context.Context, url string) (*models.Capture, error)
	Close() error
}

// CookieStore provides browser cookies parsed from a Netscape cookies.txt
// file, reloading when the file changes on disk.
type CookieStore interface {
	Cookies() []models.Cookie
	ReloadIfChanged() error
}
