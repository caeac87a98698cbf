package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vertextoedge/stockfill/internal/domain"
)

func TestDriver_Disabled(t *testing.T) {
	d := New(Config{Enabled: false}, nil)
	defer d.Close()

	if d.Enabled() {
		t.Error("Enabled() = true, want false")
	}

	err := d.ClickLink(context.Background(), "http://localhost/download/a.csv", "a.csv")
	if !errors.Is(err, domain.ErrBrowserUnavailable) {
		t.Errorf("ClickLink error = %v, want ErrBrowserUnavailable", err)
	}

	if w := d.OpenWindow(context.Background(), "http://localhost/download/a.csv"); w != nil {
		t.Error("OpenWindow should return nil when disabled")
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	d := New(Config{}, nil)
	if d.cfg.LinkReleaseDelay != time.Second {
		t.Errorf("LinkReleaseDelay = %v", d.cfg.LinkReleaseDelay)
	}
	if d.cfg.NavigationTimeout != 30*time.Second {
		t.Errorf("NavigationTimeout = %v", d.cfg.NavigationTimeout)
	}

	def := DefaultConfig()
	if !def.Enabled || !def.Headless {
		t.Errorf("DefaultConfig = %+v", def)
	}
}

func TestDriver_CloseWithoutStart(t *testing.T) {
	d := New(DefaultConfig(), nil)
	if err := d.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
