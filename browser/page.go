package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Affordance is one download link as rendered by the console, with the
// surrounding markup signals the catalog parser needs. Values are lifted
// off the live page so parsing stays pure and testable.
type Affordance struct {
	// AriaLabel is the link's aria-label, e.g. "Download part 22 of 59"
	// or "Download again part 21 of 59".
	AriaLabel string
	// Href is the download token.
	Href string
	// ListItemText is the text content of the nearest enclosing list item.
	ListItemText string
	// DataSize is the nearest ancestor's data-size attribute, empty if absent.
	DataSize string
}

// Page is the minimal surface of the live console page the downloader
// drives. There is exactly one active page per session; callers must not
// drive it from more than one goroutine.
type Page interface {
	// URL returns the current page URL.
	URL() string
	// Navigate loads the given URL.
	Navigate(url string) error
	// WaitForLoad waits for the basic load signal, bounded by timeout.
	WaitForLoad(timeout time.Duration) error
	// Affordances collects all download links currently rendered.
	Affordances() ([]Affordance, error)
	// PasswordInputVisible reports whether a password input is interactive,
	// waiting up to timeout for it to appear.
	PasswordInputVisible(timeout time.Duration) bool
	// SubmitPassword clears the password field, types the secret with a
	// pacing delay between keystrokes, and submits.
	SubmitPassword(secret string, keyDelay time.Duration) error
	// ExpectDownload registers a download awaiter, then runs trigger.
	// The awaiter is armed before trigger executes, so a download started
	// by the trigger itself cannot be missed.
	ExpectDownload(trigger func() error, timeout time.Duration) (Download, error)
	// ClickToken clicks the download link carrying the given href token.
	ClickToken(href string) error
}

// Download is a native browser download in flight or completed.
type Download interface {
	// SuggestedFilename is the filename the site declared for the artifact.
	SuggestedFilename() string
	// Path blocks until the transfer fully materializes and returns the
	// transient on-disk location.
	Path() (string, error)
	// SaveAs copies the artifact to the given path.
	SaveAs(path string) error
	// Remove deletes the transient artifact.
	Remove() error
}

// pwPage adapts a playwright page to the Page contract.
type pwPage struct {
	page playwright.Page
}

func (p *pwPage) URL() string { return p.page.URL() }

func (p *pwPage) Navigate(url string) error {
	_, err := p.page.Goto(url)
	return err
}

func (p *pwPage) WaitForLoad(timeout time.Duration) error {
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *pwPage) Affordances() ([]Affordance, error) {
	links, err := p.page.Locator(`a[aria-label^="Download"]`).All()
	if err != nil {
		return nil, fmt.Errorf("locating download links: %w", err)
	}

	affordances := make([]Affordance, 0, len(links))
	for _, link := range links {
		label, err := link.GetAttribute("aria-label")
		if err != nil {
			continue
		}
		href, err := link.GetAttribute("href")
		if err != nil {
			continue
		}

		// Completion marker lives in the enclosing list item's text.
		var itemText string
		item := link.Locator("xpath=ancestor::li[1]")
		if text, err := item.TextContent(); err == nil {
			itemText = text
		}

		// Size hint lives on the nearest ancestor carrying data-size.
		var dataSize string
		sized := link.Locator("xpath=ancestor::div[@data-size]")
		if n, err := sized.Count(); err == nil && n > 0 {
			if attr, err := sized.First().GetAttribute("data-size"); err == nil {
				dataSize = attr
			}
		}

		affordances = append(affordances, Affordance{
			AriaLabel:    label,
			Href:         href,
			ListItemText: itemText,
			DataSize:     dataSize,
		})
	}
	return affordances, nil
}

func (p *pwPage) PasswordInputVisible(timeout time.Duration) bool {
	input := p.page.Locator(`input[type="password"]`).First()
	err := input.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err == nil
}

func (p *pwPage) SubmitPassword(secret string, keyDelay time.Duration) error {
	input := p.page.Locator(`input[type="password"]`).First()
	if err := input.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10000),
	}); err != nil {
		return fmt.Errorf("password input not visible: %w", err)
	}

	if err := input.Click(); err != nil {
		return fmt.Errorf("focusing password input: %w", err)
	}
	if err := input.Fill(""); err != nil {
		return fmt.Errorf("clearing password input: %w", err)
	}
	// Paced typing; instant fill trips automation-detection heuristics.
	if err := input.PressSequentially(secret, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(float64(keyDelay.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("typing password: %w", err)
	}
	if err := input.Press("Enter"); err != nil {
		return fmt.Errorf("submitting password: %w", err)
	}
	return nil
}

func (p *pwPage) ExpectDownload(trigger func() error, timeout time.Duration) (Download, error) {
	dl, err := p.page.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, err
	}
	return &pwDownload{dl: dl}, nil
}

func (p *pwPage) ClickToken(href string) error {
	return p.page.Locator(fmt.Sprintf("a[href=%q]", href)).First().Click()
}

// pwDownload adapts a playwright download to the Download contract.
type pwDownload struct {
	dl playwright.Download
}

func (d *pwDownload) SuggestedFilename() string { return d.dl.SuggestedFilename() }
func (d *pwDownload) Path() (string, error)     { return d.dl.Path() }
func (d *pwDownload) SaveAs(path string) error  { return d.dl.SaveAs(path) }
func (d *pwDownload) Remove() error             { return d.dl.Delete() }
