// File: internal/driver/driver.go
package driver

import (
	"context"
	"time"
)

// Session is the automation-driver surface the worker drives. It accepts
// primitive pointer/keyboard commands, each optionally preceded by a
// caller-supplied delay from the motion models, and returns page state on
// query. Implementations must make Close safe to call more than once.
type Session interface {
	// Navigate loads the given URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// PageText returns the visible text content of the page body.
	PageText(ctx context.Context) (string, error)

	// MoveMouse moves the pointer to the given viewport coordinates.
	MoveMouse(ctx context.Context, x, y float64) error

	// MousePress presses the left button at the given coordinates.
	MousePress(ctx context.Context, x, y float64) error

	// MouseRelease releases the left button at the given coordinates.
	MouseRelease(ctx context.Context, x, y float64) error

	// TypeChar types a single character into the focused element.
	TypeChar(ctx context.Context, ch rune) error

	// Scroll dispatches a wheel event at the current pointer position.
	Scroll(ctx context.Context, deltaY float64) error

	// Sleep pauses execution, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error

	// Close releases the browser session. Idempotent.
	Close() error
}
