package automation

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// ErrNotClickable is returned when a control does not become interactable in time.
var ErrNotClickable = errors.New("element not clickable")

// BrowserAutomation handles the interactions a search session needs.
type BrowserAutomation struct {
	page   *rod.Page
	logger *slog.Logger
}

// NewBrowserAutomation wraps a Rod page with automation helpers.
func NewBrowserAutomation(page *rod.Page, logger *slog.Logger) *BrowserAutomation {
	return &BrowserAutomation{
		page:   page,
		logger: logger.With("component", "browser_automation"),
	}
}

// Open navigates to a URL and waits for the load event.
func (ba *BrowserAutomation) Open(url string, timeout time.Duration) error {
	p := ba.page.Timeout(timeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// TypeAndSubmit types text into an input field and presses Enter.
func (ba *BrowserAutomation) TypeAndSubmit(selector, text string, timeout time.Duration) error {
	p := ba.page.Timeout(timeout)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}

	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := el.SelectAllText(); err != nil {
		ba.logger.Debug("select text failed", "selector", selector, "error", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	if err := el.Type(input.Enter); err != nil {
		return fmt.Errorf("submit %s: %w", selector, err)
	}
	wait()
	return nil
}

// WaitForElement waits until at least one element matches the selector.
func (ba *BrowserAutomation) WaitForElement(selector string, timeout time.Duration) error {
	p := ba.page.Timeout(timeout)
	defer p.CancelTimeout()

	if _, err := p.Element(selector); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// ClickLinkText clicks the anchor whose text matches and waits for the navigation
// it triggers. Returns ErrNotClickable if no such link becomes interactable in time.
func (ba *BrowserAutomation) ClickLinkText(text string, timeout time.Duration) error {
	p := ba.page.Timeout(timeout)
	defer p.CancelTimeout()

	el, err := p.ElementR("a", text)
	if err != nil {
		return fmt.Errorf("%w: link %q: %v", ErrNotClickable, text, err)
	}
	if _, err := el.WaitInteractable(); err != nil {
		return fmt.Errorf("%w: link %q: %v", ErrNotClickable, text, err)
	}

	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: link %q: %v", ErrNotClickable, text, err)
	}
	wait()
	return nil
}

// HTML returns the current rendered document.
func (ba *BrowserAutomation) HTML() (string, error) {
	return ba.page.HTML()
}

// URL returns the current page address.
func (ba *BrowserAutomation) URL() string {
	info, err := ba.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}
