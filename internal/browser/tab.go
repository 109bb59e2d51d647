package browser

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/devices"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Devices lists the mobile devices Config.Device accepts, keyed by
// lower-cased name.
var Devices = map[string]devices.Device{
	"iphone x":  devices.IPhoneX,
	"ipad":      devices.IPad,
	"pixel 2":   devices.Pixel2,
	"galaxy s5": devices.GalaxyS5,
}

func deviceByName(name string) (*devices.Device, error) {
	if name == "" {
		return nil, nil
	}
	d, ok := Devices[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(Devices))
		for k := range Devices {
			names = append(names, k)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("browser: unknown device %q (have %s)", name, strings.Join(names, ", "))
	}
	return &d, nil
}

// Tab is a stealth page sized and, optionally, emulating a device.
// Device is the emulated device name, empty for a desktop viewport.
type Tab struct {
	Page   *rod.Page
	Device string
	mgr    *Manager
}

// OpenTab creates a new stealth tab and navigates it to pageURL when
// pageURL is set.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{Page: page, mgr: mgr}
	dev, err := deviceByName(mgr.cfg.Device)
	if err != nil {
		page.Close()
		return nil, err
	}
	if dev != nil {
		if err := page.Emulate(*dev); err != nil {
			page.Close()
			return nil, fmt.Errorf("browser: emulate %s: %w", mgr.cfg.Device, err)
		}
		t.Device = dev.Title
	} else if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  mgr.cfg.Width,
		Height: mgr.cfg.Height,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: set viewport: %w", err)
	}

	if pageURL != "" {
		if err := t.Navigate(ctx, pageURL); err != nil {
			page.Close()
			return nil, err
		}
	}
	return t, nil
}

// Navigate loads pageURL and waits for the load event, 30s at most. A
// load timeout is logged, not returned.
func (t *Tab) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		t.mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
