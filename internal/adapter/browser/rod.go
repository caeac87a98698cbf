// Package browser drives a Chrome instance for the download strategies that
// need a real browser: clicking a hidden link and opening a new window.
package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
)

// Config holds browser configuration
type Config struct {
	Enabled     bool
	DebuggerURL string   // connect to an existing Chrome instead of launching one
	Bin         string   // chrome binary, empty lets rod find or fetch one
	Flags       []string // extra chrome flags, "name" or "name=value"
	Headless    bool
	DownloadDir string

	// LinkReleaseDelay is how long the hidden anchor stays in the page after the click
	LinkReleaseDelay  time.Duration
	NavigationTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		Headless:          true,
		LinkReleaseDelay:  time.Second,
		NavigationTimeout: 30 * time.Second,
	}
}

// clickLinkJS appends a hidden anchor, clicks it and removes it after a delay
const clickLinkJS = `(href, name, delay) => {
	const a = document.createElement('a');
	a.href = href;
	a.download = name;
	a.target = '_blank';
	a.style.display = 'none';
	document.body.appendChild(a);
	a.click();
	setTimeout(() => a.remove(), delay);
	return true;
}`

// openWindowJS opens url and keeps the handle so it can be closed later.
// Returns -1 when the window was blocked.
const openWindowJS = `(url) => {
	const w = window.open(url, '_blank');
	if (!w) return -1;
	window.__stockfillWindows = window.__stockfillWindows || [];
	window.__stockfillWindows.push(w);
	return window.__stockfillWindows.length - 1;
}`

const closeWindowJS = `(i) => {
	const list = window.__stockfillWindows || [];
	if (list[i]) { list[i].close(); list[i] = null; }
}`

// Driver owns the Chrome instance and the host page downloads are triggered from
type Driver struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// Ensure Driver implements the browser ports
var (
	_ port.LinkClicker  = (*Driver)(nil)
	_ port.WindowOpener = (*Driver)(nil)
)

// New creates a driver; the browser is started lazily on first use
func New(cfg Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LinkReleaseDelay <= 0 {
		cfg.LinkReleaseDelay = time.Second
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Driver{cfg: cfg, logger: logger}
}

// Enabled reports whether browser strategies can run at all
func (d *Driver) Enabled() bool {
	return d.cfg.Enabled
}

// ensureStarted connects to or launches Chrome and prepares the host page
func (d *Driver) ensureStarted(ctx context.Context) (*rod.Page, error) {
	if !d.cfg.Enabled {
		return nil, domain.ErrBrowserUnavailable
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page != nil {
		return d.page, nil
	}

	controlURL := d.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(d.cfg.Headless)
		if d.cfg.Bin != "" {
			l = l.Bin(d.cfg.Bin)
		}
		for _, rawFlag := range d.cfg.Flags {
			name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: launch chrome: %v", domain.ErrBrowserUnavailable, err)
		}
		d.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		d.cleanupLocked()
		return nil, fmt.Errorf("%w: connect to chrome: %v", domain.ErrBrowserUnavailable, err)
	}
	d.browser = browser

	if d.cfg.DownloadDir != "" {
		if err := os.MkdirAll(d.cfg.DownloadDir, 0755); err != nil {
			d.cleanupLocked()
			return nil, fmt.Errorf("failed to create download dir: %w", err)
		}
		err := proto.BrowserSetDownloadBehavior{
			Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
			DownloadPath: d.cfg.DownloadDir,
		}.Call(browser)
		if err != nil {
			d.logger.Warn("failed to set download behavior", zap.Error(err))
		}
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		d.cleanupLocked()
		return nil, fmt.Errorf("%w: open host page: %v", domain.ErrBrowserUnavailable, err)
	}
	d.page = page

	d.logger.Debug("browser started",
		zap.Bool("headless", d.cfg.Headless),
		zap.Bool("attached", d.cfg.DebuggerURL != ""),
		zap.String("download_dir", d.cfg.DownloadDir))

	return page, nil
}

// ClickLink triggers a download through a hidden anchor.
// Success only means the click was dispatched.
func (d *Driver) ClickLink(ctx context.Context, href, filename string) error {
	page, err := d.ensureStarted(ctx)
	if err != nil {
		return err
	}

	_, err = page.Context(ctx).Timeout(d.cfg.NavigationTimeout).Evaluate(&rod.EvalOptions{
		JS:          clickLinkJS,
		JSArgs:      []interface{}{href, filename, d.cfg.LinkReleaseDelay.Milliseconds()},
		ByValue:     true,
		UserGesture: true,
	})
	if err != nil {
		return fmt.Errorf("click download link: %w", err)
	}
	return nil
}

// OpenWindow opens url in a new window; nil means the window was blocked or
// the browser is unavailable
func (d *Driver) OpenWindow(ctx context.Context, url string) port.Window {
	page, err := d.ensureStarted(ctx)
	if err != nil {
		d.logger.Debug("browser unavailable for window", zap.Error(err))
		return nil
	}

	res, err := page.Context(ctx).Timeout(d.cfg.NavigationTimeout).Evaluate(&rod.EvalOptions{
		JS:      openWindowJS,
		JSArgs:  []interface{}{url},
		ByValue: true,
	})
	if err != nil || res == nil {
		d.logger.Debug("window.open failed", zap.Error(err))
		return nil
	}

	idx := res.Value.Int()
	if idx < 0 {
		return nil
	}
	return &window{page: page, index: idx}
}

// Close shuts down a launched browser. An attached browser is left running.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cleanupLocked()
}

func (d *Driver) cleanupLocked() error {
	var err error
	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}
	if d.browser != nil {
		if d.launcher != nil {
			err = d.browser.Close()
		}
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
		d.launcher = nil
	}
	return err
}

// window is a handle to a window opened from the host page
type window struct {
	page  *rod.Page
	index int
}

func (w *window) Close() error {
	_, err := w.page.Evaluate(&rod.EvalOptions{
		JS:      closeWindowJS,
		JSArgs:  []interface{}{w.index},
		ByValue: true,
	})
	return err
}
