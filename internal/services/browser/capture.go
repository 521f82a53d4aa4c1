package browser

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/recondo/internal/models"
)

const (
	navigationTimeout = 60 * time.Second
	screenshotTimeout = 15 * time.Second
	bodyWaitTimeout   = 5 * time.Second

	// A4 at 96 DPI, 20px margins
	pdfPaperWidthIn  = 8.27
	pdfPaperHeightIn = 11.69
	pdfMarginIn      = 20.0 / 96.0
	pdfScale         = 0.7
)

// PrivacyTerms configures the privacy filter; set from config at wiring time
type PrivacyTerms []string

// Capture runs the full capture protocol against one URL and returns the PDF,
// the viewport screenshot, and the extracted title.
func (s *Service) Capture(ctx context.Context, rawURL string) (*models.Capture, error) {
	rw := rewriter{socialMirrorHost: s.config.SocialMirrorHost}
	rewrite := rw.apply(rawURL)

	tabCtx, release, err := s.acquireTab()
	if err != nil {
		return nil, err
	}
	defer release()

	// The tab inherits cancellation from the caller
	go func() {
		select {
		case <-ctx.Done():
			release()
		case <-tabCtx.Done():
		}
	}()

	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(viewportWidth, viewportHeight)); err != nil {
		return nil, models.NewFailure(models.FailureNavigationError, "failed to prepare tab: %v", err)
	}
	if err := s.injectCookies(tabCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Cookie injection failed, continuing without cookies")
	}

	if err := s.navigate(tabCtx, rewrite.URL); err != nil {
		return nil, err
	}
	if err := s.settlePage(tabCtx); err != nil {
		s.logger.Debug().Err(err).Msg("Page settle incomplete, continuing")
	}

	s.applyPrivacyFilter(tabCtx)

	capture := &models.Capture{Rewritten: rewrite.Rewritten}

	// Mirror instances render external article links as a stub; those posts
	// are better captured from the original URL directly.
	if rewrite.IsSocial && rewrite.Rewritten && s.hasArticleStub(tabCtx) {
		s.logger.Debug().Str("url", rawURL).Msg("Mirror rendered an article stub, retrying original URL")
		if err := s.navigate(tabCtx, rawURL); err != nil {
			return nil, err
		}
		if err := s.settlePage(tabCtx); err != nil {
			s.logger.Debug().Err(err).Msg("Page settle incomplete, continuing")
		}
		s.applyPrivacyFilter(tabCtx)
		capture.DirectArticle = true
	}

	capture.Screenshot = s.screenshot(tabCtx)
	capture.Title = s.extractTitle(tabCtx)

	pdf, err := s.printPDF(tabCtx)
	if err != nil {
		return nil, err
	}
	capture.PDF = pdf

	return capture, nil
}

// navigate loads the URL, preferring a network-idle wait and falling back to
// DOM-content-loaded with a settle sleep when the page never goes quiet.
func (s *Service) navigate(tabCtx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(tabCtx, navigationTimeout)
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		waitForNetworkIdle(2*time.Second),
	)
	cancel()
	if err == nil {
		return nil
	}

	if isTimeout(err) {
		s.logger.Debug().Str("url", url).Msg("Network-idle navigation timed out, retrying with DOM-loaded strategy")
		retryCtx, retryCancel := context.WithTimeout(tabCtx, navigationTimeout)
		defer retryCancel()
		err = chromedp.Run(retryCtx,
			chromedp.Navigate(url),
			chromedp.Sleep(5*time.Second),
		)
		if err == nil {
			return nil
		}
		if isTimeout(err) {
			return models.NewFailure(models.FailureTimeout, "navigation to %s timed out", url)
		}
	}

	return classifyNavigationError(url, err)
}

func classifyNavigationError(url string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "net::ERR_BLOCKED") || strings.Contains(msg, "403") {
		return models.NewFailure(models.FailureBotDetected, "navigation to %s blocked: %v", url, err)
	}
	return models.NewFailure(models.FailureNavigationError, "navigation to %s failed: %v", url, err)
}

func isTimeout(err error) bool {
	return err == context.DeadlineExceeded || strings.Contains(err.Error(), "context deadline exceeded")
}

// settlePage waits out late renders and walks the page to trigger lazy loads
func (s *Service) settlePage(tabCtx context.Context) error {
	if err := chromedp.Run(tabCtx, chromedp.Sleep(time.Second)); err != nil {
		return err
	}

	bodyCtx, cancel := context.WithTimeout(tabCtx, bodyWaitTimeout)
	_ = chromedp.Run(bodyCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	cancel()

	var done bool
	return chromedp.Run(tabCtx,
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(scrollJS, &done, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.Sleep(500*time.Millisecond),
	)
}

// applyPrivacyFilter hides elements containing configured terms. Failure is
// never fatal to the capture.
func (s *Service) applyPrivacyFilter(tabCtx context.Context) {
	if len(s.privacyTerms) == 0 {
		return
	}
	lowered := make([]string, len(s.privacyTerms))
	for i, term := range s.privacyTerms {
		lowered[i] = strings.ToLower(term)
	}
	termsJSON, err := json.Marshal(lowered)
	if err != nil {
		return
	}

	var hidden int
	expr := privacyFilterJS + "(" + string(termsJSON) + ")"
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(expr, &hidden)); err != nil {
		s.logger.Debug().Err(err).Msg("Privacy filter failed")
		return
	}
	if hidden > 0 {
		s.logger.Debug().Int("hidden", hidden).Msg("Privacy filter hid elements")
	}
}

// hasArticleStub checks whether the mirror rendered an unsupported article stub
func (s *Service) hasArticleStub(tabCtx context.Context) bool {
	markerJSON, _ := json.Marshal(articleStubMarker)
	var stub bool
	expr := articleStubJS + "(" + string(markerJSON) + ")"
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(expr, &stub)); err != nil {
		return false
	}
	return stub
}

// screenshot captures the viewport. A failed screenshot degrades to an empty
// buffer; the verifier compensates.
func (s *Service) screenshot(tabCtx context.Context) []byte {
	shotCtx, cancel := context.WithTimeout(tabCtx, screenshotTimeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		s.logger.Warn().Err(err).Msg("Screenshot capture failed, continuing without")
		return nil
	}
	return buf
}

// extractTitle reads the document title with known suffixes trimmed
func (s *Service) extractTitle(tabCtx context.Context) string {
	var title string
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(titleJS, &title)); err != nil {
		return ""
	}
	return title
}

// printPDF emulates screen media, injects the print stylesheet, and renders
func (s *Service) printPDF(tabCtx context.Context) ([]byte, error) {
	if err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetEmulatedMedia().WithMedia("screen").Do(ctx)
	})); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to emulate screen media")
	}

	styleJSON, _ := json.Marshal(printCSS)
	injectExpr := `(function(css) {
		var style = document.createElement('style');
		style.textContent = css;
		document.head.appendChild(style);
		return true;
	})(` + string(styleJSON) + `)`
	var injected bool
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(injectExpr, &injected)); err != nil {
		s.logger.Debug().Err(err).Msg("Print stylesheet injection failed")
	}

	var pdf []byte
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdf, _, err = page.PrintToPDF().
			WithPrintBackground(true).
			WithScale(pdfScale).
			WithPaperWidth(pdfPaperWidthIn).
			WithPaperHeight(pdfPaperHeightIn).
			WithMarginTop(pdfMarginIn).
			WithMarginBottom(pdfMarginIn).
			WithMarginLeft(pdfMarginIn).
			WithMarginRight(pdfMarginIn).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, models.NewFailure(models.FailureNavigationError, "pdf generation failed: %v", err)
	}
	return pdf, nil
}

// waitForNetworkIdle resolves once no network request has been in flight for
// the quiet period
func waitForNetworkIdle(quiet time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		var once sync.Once
		idle := make(chan struct{})
		var mu sync.Mutex
		inflight := 0

		timer := time.AfterFunc(quiet, func() {
			once.Do(func() { close(idle) })
		})
		defer timer.Stop()

		lctx, cancel := context.WithCancel(ctx)
		defer cancel()

		chromedp.ListenTarget(lctx, func(ev interface{}) {
			switch ev.(type) {
			case *network.EventRequestWillBeSent:
				mu.Lock()
				inflight++
				timer.Stop()
				mu.Unlock()
			case *network.EventLoadingFinished, *network.EventLoadingFailed:
				mu.Lock()
				if inflight > 0 {
					inflight--
				}
				if inflight == 0 {
					timer.Reset(quiet)
				}
				mu.Unlock()
			}
		})

		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
