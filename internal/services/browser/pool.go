package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/common"
	"github.com/ternarybob/recondo/internal/interfaces"
)

const (
	viewportWidth  = 1280
	viewportHeight = 800
)

// Service owns the process-wide headless browser. Each capture runs in its
// own tab context allocated from the shared browser and released on every
// exit path.
type Service struct {
	config       common.BrowserConfig
	cookies      interfaces.CookieStore
	privacyTerms []string
	logger       arbor.ILogger

	mu              sync.Mutex
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	initialized     bool
	closed          bool
}

// Compile-time assertion
var _ interfaces.BrowserService = (*Service)(nil)

// NewService creates the browser service
func NewService(config common.BrowserConfig, cookies interfaces.CookieStore, privacyTerms []string, logger arbor.ILogger) *Service {
	return &Service{
		config:       config,
		cookies:      cookies,
		privacyTerms: privacyTerms,
		logger:       logger,
	}
}

// Init starts the browser. Calling Init on a running browser is a no-op.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", s.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.UserAgent(s.config.UserAgent),
		chromedp.WindowSize(viewportWidth, viewportHeight),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup probe: an unusable browser should fail Init, not the first job
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup probe: %w", err)
	}

	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.allocatorCancel = allocatorCancel
	s.initialized = true
	s.closed = false

	s.logger.Info().
		Str("user_agent", s.config.UserAgent).
		Bool("headless", s.config.Headless).
		Msg("Headless browser started")
	return nil
}

// acquireTab allocates an isolated capture context. The returned release
// closes the tab; callers must defer it on every path.
func (s *Service) acquireTab() (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized || s.closed {
		return nil, nil, fmt.Errorf("browser not initialized")
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	release := func() {
		tabCancel()
	}
	return tabCtx, release, nil
}

// injectCookies loads the cookie store's current set into the tab
func (s *Service) injectCookies(tabCtx context.Context) error {
	if err := s.cookies.ReloadIfChanged(); err != nil {
		s.logger.Warn().Err(err).Msg("Cookie reload failed, capturing without fresh cookies")
	}

	cookies := s.cookies.Cookies()
	if len(cookies) == 0 {
		return nil
	}

	return chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		now := time.Now().Unix()
		for _, c := range cookies {
			if c.Expires > 0 && c.Expires < now {
				continue
			}
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdpTimeSinceEpoch(c.Expires)
				param = param.WithExpires(&expires)
			}
			if err := param.Do(ctx); err != nil {
				s.logger.Debug().
					Err(err).
					Str("cookie", c.Name).
					Str("domain", c.Domain).
					Msg("Failed to set cookie")
			}
		}
		return nil
	}))
}

func cdpTimeSinceEpoch(unix int64) cdp.TimeSinceEpoch {
	return cdp.TimeSinceEpoch(time.Unix(unix, 0))
}

// Close shuts the browser down. Idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized || s.closed {
		return nil
	}

	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocatorCancel != nil {
		s.allocatorCancel()
	}
	s.closed = true
	s.initialized = false

	s.logger.Info().Msg("Headless browser closed")
	return nil
}
