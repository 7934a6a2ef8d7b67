// -----------------------------------------------------------------------
// ChromeLoader - pooled headless-browser page loading with network
// capture and per-domain pacing.
// -----------------------------------------------------------------------

package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"golang.org/x/time/rate"
)

// ChromeLoader manages a pool of browser contexts with round-robin
// allocation. Each Load runs in a fresh tab so network capture is
// isolated per page.
type ChromeLoader struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	mu               sync.Mutex
	currentIndex     int
	initialized      bool

	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex

	config *common.CrawlerConfig
	logger arbor.ILogger
}

// NewChromeLoader creates and initializes the browser pool.
func NewChromeLoader(config *common.CrawlerConfig, logger arbor.ILogger) (*ChromeLoader, error) {
	if config.PoolSize <= 0 {
		return nil, fmt.Errorf("pool_size must be greater than 0, got: %d", config.PoolSize)
	}

	l := &ChromeLoader{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
		logger:   logger,
	}

	logger.Info().
		Int("pool_size", config.PoolSize).
		Str("user_agent", config.UserAgent).
		Bool("headless", config.Headless).
		Msg("Initializing browser pool")

	for i := 0; i < config.PoolSize; i++ {
		if err := l.createBrowserInstance(i); err != nil {
			if len(l.browsers) == 0 {
				l.cleanupInstances()
				return nil, fmt.Errorf("failed to create any browser instances: %w", err)
			}
			logger.Warn().Err(err).Int("browser_index", i).Msg("Failed to create browser instance")
		}
	}

	l.initialized = true
	logger.Info().Int("browsers_created", len(l.browsers)).Msg("Browser pool initialized")
	return l, nil
}

func (l *ChromeLoader) createBrowserInstance(index int) error {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.config.Headless),
		chromedp.Flag("disable-gpu", l.config.DisableGPU),
		chromedp.Flag("no-sandbox", l.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(l.config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, l.config.RequestTimeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser instance failed startup test: %w", err)
	}

	l.browsers = append(l.browsers, browserCtx)
	l.browserCancels = append(l.browserCancels, browserCancel)
	l.allocatorCancels = append(l.allocatorCancels, allocatorCancel)

	l.logger.Debug().Int("browser_index", index).Msg("Browser instance created")
	return nil
}

// getBrowser returns a browser context using round-robin allocation.
func (l *ChromeLoader) getBrowser() (context.Context, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized || len(l.browsers) == 0 {
		return nil, fmt.Errorf("browser pool not initialized")
	}
	index := l.currentIndex % len(l.browsers)
	l.currentIndex = (l.currentIndex + 1) % len(l.browsers)
	return l.browsers[index], nil
}

// limiterFor returns the pacing limiter for a host, creating it on first
// use. One request per RequestDelay per domain.
func (l *ChromeLoader) limiterFor(host string) *rate.Limiter {
	l.limitersMu.Lock()
	defer l.limitersMu.Unlock()

	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.config.RequestDelay), 1)
		l.limiters[host] = limiter
	}
	return limiter
}

// pageCapture accumulates CDP network events for one page load.
type pageCapture struct {
	mu         sync.Mutex
	requests   map[network.RequestID]*models.NetworkRequest
	order      []network.RequestID
	docRequest network.RequestID
	docStatus  int
	docHeaders map[string]string
}

func (c *pageCapture) listen(ev interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if _, ok := c.requests[e.RequestID]; !ok {
			c.requests[e.RequestID] = &models.NetworkRequest{
				URL:  e.Request.URL,
				Type: strings.ToLower(e.Type.String()),
			}
			c.order = append(c.order, e.RequestID)
		}
		if e.Type == network.ResourceTypeDocument && c.docRequest == "" {
			c.docRequest = e.RequestID
		}
	case *network.EventResponseReceived:
		if req, ok := c.requests[e.RequestID]; ok {
			req.Mime = e.Response.MimeType
		}
		if e.RequestID == c.docRequest {
			c.docStatus = int(e.Response.Status)
			c.docHeaders = make(map[string]string, len(e.Response.Headers))
			for k, v := range e.Response.Headers {
				if s, ok := v.(string); ok {
					c.docHeaders[http.CanonicalHeaderKey(k)] = s
				}
			}
		}
	case *network.EventLoadingFinished:
		if req, ok := c.requests[e.RequestID]; ok {
			req.Bytes = int64(e.EncodedDataLength)
		}
	}
}

func (c *pageCapture) snapshot(pageHost string) ([]models.NetworkRequest, int, map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	requests := make([]models.NetworkRequest, 0, len(c.order))
	for _, id := range c.order {
		req := *c.requests[id]
		if u, err := url.Parse(req.URL); err == nil {
			req.FirstParty = strings.EqualFold(u.Host, pageHost)
		}
		requests = append(requests, req)
	}
	return requests, c.docStatus, c.docHeaders
}

// Load navigates to the URL in a pooled browser, waits for the DOM, and
// returns the rendered HTML together with observed network activity.
func (l *ChromeLoader) Load(ctx context.Context, pageURL string) (*models.LoadedPage, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", pageURL, err)
	}

	if err := l.limiterFor(strings.ToLower(u.Host)).Wait(ctx); err != nil {
		return nil, err
	}

	browserCtx, err := l.getBrowser()
	if err != nil {
		return nil, err
	}

	// Fresh tab per load so event capture is isolated.
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, l.config.RequestTimeout)
	defer timeoutCancel()

	// Honor caller cancellation.
	go func() {
		select {
		case <-ctx.Done():
			tabCancel()
		case <-tabCtx.Done():
		}
	}()

	capture := &pageCapture{requests: make(map[network.RequestID]*models.NetworkRequest)}
	chromedp.ListenTarget(tabCtx, capture.listen)

	var html string
	var perf struct {
		TTFB float64 `json:"ttfb"`
		DCL  float64 `json:"dcl"`
		Load float64 `json:"load"`
	}
	err = chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
		chromedp.Evaluate(`(() => {
			const n = performance.getEntriesByType('navigation')[0];
			if (!n) return {ttfb: 0, dcl: 0, load: 0};
			return {
				ttfb: n.responseStart - n.requestStart,
				dcl: n.domContentLoadedEventEnd - n.startTime,
				load: n.loadEventEnd - n.startTime
			};
		})()`, &perf),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("page load failed for %s: %w", pageURL, err)
	}
	if html == "" {
		return nil, fmt.Errorf("empty content returned for %s", pageURL)
	}

	requests, status, headers := capture.snapshot(strings.ToLower(u.Host))
	if status == 0 {
		status = http.StatusOK
	}

	page := &models.LoadedPage{
		URL:        pageURL,
		StatusCode: status,
		HTML:       html,
		Headers:    headers,
		Requests:   requests,
		Timing: models.PageTiming{
			TTFBMs: int64(perf.TTFB),
			DCLMs:  int64(perf.DCL),
			LoadMs: int64(perf.Load),
		},
	}

	l.logger.Debug().
		Str("url", pageURL).
		Int("status", status).
		Int("requests", len(requests)).
		Msg("Page loaded")

	return page, nil
}

// Close shuts the browser pool down.
func (l *ChromeLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil
	}
	l.cleanupInstances()
	l.initialized = false
	l.logger.Info().Msg("Browser pool shut down")
	return nil
}

func (l *ChromeLoader) cleanupInstances() {
	for _, cancel := range l.browserCancels {
		if cancel != nil {
			cancel()
		}
	}
	for _, cancel := range l.allocatorCancels {
		if cancel != nil {
			cancel()
		}
	}
	l.browsers = nil
	l.browserCancels = nil
	l.allocatorCancels = nil
	l.currentIndex = 0
}

var _ interfaces.PageLoader = (*ChromeLoader)(nil)
