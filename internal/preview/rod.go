package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single preview, page load included.
const DefaultTimeout = 30 * time.Second

// ErrNoBrowser is returned when no Chromium binary can be found.
var ErrNoBrowser = errors.New("preview: browser executable not found")

// RodPreviewer renders pages in a headless browser launched per preview.
type RodPreviewer struct {
	log     logrus.FieldLogger
	timeout time.Duration
}

// NewRodPreviewer creates a previewer. A zero timeout means DefaultTimeout.
func NewRodPreviewer(timeout time.Duration, logger logrus.FieldLogger) *RodPreviewer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RodPreviewer{
		log:     logger.WithField("component", "preview"),
		timeout: timeout,
	}
}

// Preview loads url and evaluates selector against the rendered page.
func (p *RodPreviewer) Preview(ctx context.Context, url, selector string) (Result, error) {
	log := p.log.WithFields(logrus.Fields{"url": url, "selector": selector})
	log.Info("Rendering preview")

	path, exists := launcher.LookPath()
	if !exists {
		log.Error("Cannot find browser executable for rod")
		return Result{}, ErrNoBrowser
	}
	u, err := launcher.New().Bin(path).Launch()
	if err != nil {
		return Result{}, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		log.WithError(err).Error("Failed to connect to rod browser")
		return Result{}, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Error closing rod browser instance")
		}
	}()

	// The timeout covers navigation too, so it is attached before the page
	// is created.
	pageCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	page, err := browser.Context(pageCtx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return Result{}, pageError(pageCtx, log, url, "failed to create page", err)
	}
	defer func() {
		// pageCtx may already be expired here.
		if closeErr := page.Context(context.WithoutCancel(ctx)).Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Error closing rod page")
		}
	}()

	if err := page.WaitLoad(); err != nil {
		return Result{}, pageError(pageCtx, log, url, "failed waiting for page load", err)
	}

	res := Result{URL: url, Selector: strings.TrimSpace(selector)}
	res.Title = textOf(page, "title")

	if res.Selector == "" {
		res.Excerpt = excerpt(metaDescription(page))
		return res, nil
	}

	els, err := page.Elements(res.Selector)
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate selector: %w", err)
	}
	res.Matches = len(els)
	if len(els) > 0 {
		txt, err := els[0].Text()
		if err != nil {
			log.WithError(err).Warn("Failed to read matched element text")
		}
		res.Excerpt = excerpt(txt)
	}

	log.WithField("matches", res.Matches).Info("Preview rendered")
	return res, nil
}

// pageError wraps a page failure, reporting an expired preview deadline as a
// timeout.
func pageError(pageCtx context.Context, log logrus.FieldLogger, url, op string, err error) error {
	if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
		log.Warn("Preview timed out")
		return fmt.Errorf("preview timed out for %s: %w", url, pageCtx.Err())
	}
	return fmt.Errorf("%s: %w", op, err)
}

// textOf returns the text of the first element matching selector, if any.
func textOf(page *rod.Page, selector string) string {
	has, el, err := page.Has(selector)
	if err != nil || !has {
		return ""
	}
	txt, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(txt)
}

func metaDescription(page *rod.Page) string {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		has, el, err := page.Has(sel)
		if err != nil || !has {
			continue
		}
		content, err := el.Attribute("content")
		if err == nil && content != nil && strings.TrimSpace(*content) != "" {
			return strings.TrimSpace(*content)
		}
	}
	return ""
}
