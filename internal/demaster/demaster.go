package demaster

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultAPIURL is the public demaster service.
	DefaultAPIURL = "http://demaster.hankapi.com/demaster"

	defaultTimeout   = 2 * time.Second
	defaultRate      = 2
	maxResponseBytes = 4 << 10
	maxCacheEntries  = 512
)

var offlinePattern = regexp.MustCompile(`(?i)(\s(\(|-\s+))((199\d|20[0-2]\d)\s+)?(Remast|Live|Mono|From|Feat).*`)

// StripOffline removes suffixes such as "- Remastered 2011" or
// "(Live at Wembley)" from a track name.
func StripOffline(name string) string {
	loc := offlinePattern.FindStringIndex(name)
	if loc == nil {
		return name
	}
	return name[:loc[0]]
}

// Offline cleans names with the local pattern only.
type Offline struct{}

// Clean implements nowplaying.Cleaner.
func (Offline) Clean(_ context.Context, name string) string {
	return StripOffline(name)
}

// Config holds configuration for creating a Client.
type Config struct {
	APIURL     string        // Optional: defaults to DefaultAPIURL
	Timeout    time.Duration // Optional: per-request timeout, defaults to 2s
	RatePerSec float64       // Optional: remote lookups per second, defaults to 2
	Logger     *log.Logger
}

// Client shortens names with the remote demaster API. Requests that are
// throttled, fail, or time out fall back to StripOffline. Answers are
// cached by full name, including the offline fallback after a failed
// lookup, so a name keeps one short form until the cache is cleared.
type Client struct {
	logger     *log.Logger
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	cache map[string]string
}

// NewClient creates a remote cleaner.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = defaultRate
	}
	return &Client{
		logger:     logger,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		cache:      make(map[string]string),
	}
}

// Clean implements nowplaying.Cleaner. It never blocks on the limiter.
func (c *Client) Clean(ctx context.Context, name string) string {
	if strings.TrimSpace(name) == "" {
		return name
	}
	if short, ok := c.cached(name); ok {
		return short
	}
	if !c.limiter.Allow() {
		return StripOffline(name)
	}

	short, err := c.lookup(ctx, name)
	if err != nil {
		c.logger.Printf("DEMASTER: Online API failed, using offline pattern: %v", err)
		short = StripOffline(name)
		if ctx.Err() != nil {
			return short
		}
	}
	c.store(name, short)
	return short
}

func (c *Client) lookup(ctx context.Context, name string) (string, error) {
	params := url.Values{}
	params.Set("format", "simple")
	params.Set("long_track_name", name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("demaster returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	short := strings.TrimSpace(string(body))
	if short == "" {
		return "", fmt.Errorf("demaster returned an empty name")
	}
	return short, nil
}

func (c *Client) cached(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	short, ok := c.cache[name]
	return short, ok
}

func (c *Client) store(name, short string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cache) >= maxCacheEntries {
		clear(c.cache)
	}
	c.cache[name] = short
}
