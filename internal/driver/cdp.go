// File: internal/driver/cdp.go
// Description: chromedp-backed implementation of the driver Session. One
// CDPSession owns one browser allocator and one tab; the worker is its only
// caller, so pointer-position tracking needs no locking.
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wraith/internal/config"
)

// CDPSession drives a headless Chrome tab over the DevTools protocol.
type CDPSession struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context

	// Last dispatched pointer position; wheel events anchor here.
	curX, curY float64

	closeOnce sync.Once
}

var _ Session = (*CDPSession)(nil)

// NewCDPSession launches the browser and opens a fresh tab. The returned
// error is a fatal-startup condition for the caller: without a driver
// session there is no mission to run.
func NewCDPSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*CDPSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(viewportOrDefault(cfg.ViewportWidth, 1366), viewportOrDefault(cfg.ViewportHeight, 768)),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &CDPSession{
		cfg:         cfg,
		logger:      logger.With(zap.String("component", "driver")),
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		tab:         tabCtx,
	}

	// Starting the browser and installing the init script in one shot also
	// verifies the binary is actually launchable.
	boot := chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthInitScript).Do(ctx)
		return err
	})
	if err := chromedp.Run(tabCtx, boot); err != nil {
		s.release()
		return nil, fmt.Errorf("automation driver session unavailable: %w", err)
	}

	s.logger.Info("Browser session established",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_width", viewportOrDefault(cfg.ViewportWidth, 1366)),
		zap.Int("viewport_height", viewportOrDefault(cfg.ViewportHeight, 768)),
	)
	return s, nil
}

// Navigate loads url and waits for the body to be ready, bounded by the
// configured navigation timeout.
func (s *CDPSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	navCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Screenshot captures the viewport as PNG bytes.
func (s *CDPSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf []byte
	if err := chromedp.Run(s.tab, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

// PageText returns the visible text of the document body.
func (s *CDPSession) PageText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var text string
	script := `document.body ? document.body.innerText : ""`
	if err := chromedp.Run(s.tab, chromedp.Evaluate(script, &text)); err != nil {
		return "", fmt.Errorf("page text extraction failed: %w", err)
	}
	return text, nil
}

func (s *CDPSession) MoveMouse(ctx context.Context, x, y float64) error {
	if err := s.dispatchMouse(ctx, input.DispatchMouseEvent(input.MouseType("mouseMoved"), x, y)); err != nil {
		return err
	}
	s.curX, s.curY = x, y
	return nil
}

func (s *CDPSession) MousePress(ctx context.Context, x, y float64) error {
	p := input.DispatchMouseEvent(input.MouseType("mousePressed"), x, y).
		WithButton(input.MouseButton("left")).
		WithButtons(1).
		WithClickCount(1)
	if err := s.dispatchMouse(ctx, p); err != nil {
		return err
	}
	s.curX, s.curY = x, y
	return nil
}

func (s *CDPSession) MouseRelease(ctx context.Context, x, y float64) error {
	p := input.DispatchMouseEvent(input.MouseType("mouseReleased"), x, y).
		WithButton(input.MouseButton("left")).
		WithClickCount(1)
	if err := s.dispatchMouse(ctx, p); err != nil {
		return err
	}
	s.curX, s.curY = x, y
	return nil
}

func (s *CDPSession) TypeChar(ctx context.Context, ch rune) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.tab, chromedp.KeyEvent(string(ch))); err != nil {
		return fmt.Errorf("key event dispatch failed: %w", err)
	}
	return nil
}

func (s *CDPSession) Scroll(ctx context.Context, deltaY float64) error {
	p := input.DispatchMouseEvent(input.MouseType("mouseWheel"), s.curX, s.curY).
		WithDeltaX(0).
		WithDeltaY(deltaY)
	return s.dispatchMouse(ctx, p)
}

// Sleep pauses for d, honoring context cancellation.
func (s *CDPSession) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CheckWebdriverHidden reports whether the automation marker is absent from
// the page. A quick local validation that needs no external service.
func (s *CDPSession) CheckWebdriverHidden(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var hidden bool
	script := `navigator.webdriver === undefined || navigator.webdriver === false`
	if err := chromedp.Run(s.tab, chromedp.Evaluate(script, &hidden)); err != nil {
		return false, fmt.Errorf("webdriver check failed: %w", err)
	}
	return hidden, nil
}

// Close tears down the tab and the browser. Safe to call repeatedly.
func (s *CDPSession) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Releasing browser session")
		s.release()
	})
	return nil
}

func (s *CDPSession) release() {
	s.tabCancel()
	s.allocCancel()
}

func (s *CDPSession) dispatchMouse(ctx context.Context, p *input.DispatchMouseEventParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.tab, p); err != nil {
		return fmt.Errorf("mouse event dispatch failed: %w", err)
	}
	return nil
}

func viewportOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
