package scraper

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Renderer re-renders a fetched page through a browser so script-built
// markup becomes visible to the selector chains. The plain HTTP path is
// used when no renderer is configured.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// rodRenderer drives a headless Chromium instance via go-rod.
type rodRenderer struct {
	browser *rod.Browser
}

// NewRodRenderer connects to (launching if needed) a local browser.
func NewRodRenderer() (Renderer, error) {
	browser := rod.New()
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return &rodRenderer{browser: browser}, nil
}

// Render loads the URL in a fresh page, waits for the load event, and
// returns the resulting document HTML.
func (r *rodRenderer) Render(ctx context.Context, url string) (string, error) {
	page, err := r.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for load: %w", err)
	}
	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read rendered html: %w", err)
	}
	return html, nil
}

func (r *rodRenderer) Close() error {
	return r.browser.Close()
}
