package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"nse-screener/quote"
)

const (
	DefaultEquityListURL = "https://archives.nseindia.com/content/equities/EQUITY_L.csv"
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	yahooHome  = "https://finance.yahoo.com"
	crumbPath  = "/v1/test/getcrumb"
	maxBodyLen = 16 << 20
)

// DefaultChartHosts are tried in order for chart and quote requests.
var DefaultChartHosts = []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"}

// ErrHTTP is an upstream error status.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Upstream talks to Yahoo Finance and the NSE archives directly.
type Upstream struct {
	client        *http.Client
	hosts         []string
	equityListURL string
	userAgent     string
	home          string

	mu    sync.Mutex
	crumb string
}

// UpstreamConfig configures an Upstream. Zero fields take defaults.
type UpstreamConfig struct {
	Client        *http.Client
	ChartHosts    []string
	EquityListURL string
	UserAgent     string
	HomeURL       string // page visited for session cookies before a crumb
}

func NewUpstream(cfg UpstreamConfig) *Upstream {
	client := cfg.Client
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{Jar: jar}
	}
	if len(cfg.ChartHosts) == 0 {
		cfg.ChartHosts = DefaultChartHosts
	}
	if cfg.EquityListURL == "" {
		cfg.EquityListURL = DefaultEquityListURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HomeURL == "" {
		cfg.HomeURL = yahooHome
	}
	return &Upstream{
		client:        client,
		hosts:         cfg.ChartHosts,
		equityListURL: cfg.EquityListURL,
		userAgent:     cfg.UserAgent,
		home:          cfg.HomeURL,
	}
}

// URL builds the upstream address for req on host.
func (u *Upstream) URL(req Request, host string) string {
	req = req.withDefaults()
	sym := strings.ReplaceAll(url.PathEscape(YahooSymbol(req.Symbol)), "&", "%26")
	host = strings.TrimRight(host, "/")

	switch req.Type {
	case TypeChart:
		q := url.Values{}
		q.Set("range", string(req.Range))
		q.Set("interval", req.Interval)
		q.Set("includePrePost", "false")
		return fmt.Sprintf("%s/v8/finance/chart/%s?%s", host, sym, q.Encode())
	case TypeQuote:
		return fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s", host, sym, quote.Modules)
	default:
		return u.equityListURL
	}
}

// Get fetches req, trying each chart host in turn.
func (u *Upstream) Get(ctx context.Context, req Request) (*Payload, error) {
	if req.Type == TypeEquityList {
		body, ct, err := u.doGet(ctx, u.equityListURL, "text/csv, text/plain, */*")
		if err != nil {
			return nil, err
		}
		return &Payload{Type: req.Type, ContentType: ct, Body: body}, nil
	}

	var errs []error
	for _, host := range u.hosts {
		body, ct, err := u.getYahoo(ctx, req, host)
		if err == nil {
			return &Payload{Type: req.Type, ContentType: ct, Body: body}, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", host, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// getYahoo retries once with a session crumb when Yahoo answers 401.
func (u *Upstream) getYahoo(ctx context.Context, req Request, host string) ([]byte, string, error) {
	target := u.URL(req, host)
	if c := u.currentCrumb(); c != "" {
		target += "&crumb=" + url.QueryEscape(c)
	}
	body, ct, err := u.doGet(ctx, target, "application/json, text/plain, */*")

	var httpErr *ErrHTTP
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
		c, cerr := u.refreshCrumb(ctx, host)
		if cerr != nil {
			return nil, "", fmt.Errorf("%w (crumb: %v)", err, cerr)
		}
		return u.doGet(ctx, u.URL(req, host)+"&crumb="+url.QueryEscape(c), "application/json, text/plain, */*")
	}
	return body, ct, err
}

func (u *Upstream) currentCrumb() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.crumb
}

// refreshCrumb visits the Yahoo home page for cookies, then asks for a crumb.
func (u *Upstream) refreshCrumb(ctx context.Context, host string) (string, error) {
	if _, _, err := u.doGet(ctx, u.home, "text/html,application/xhtml+xml,*/*;q=0.8"); err != nil {
		return "", fmt.Errorf("fetch home page: %w", err)
	}
	body, _, err := u.doGet(ctx, strings.TrimRight(host, "/")+crumbPath, "text/plain, */*")
	if err != nil {
		return "", fmt.Errorf("fetch crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.Contains(crumb, "html") {
		return "", errors.New("invalid crumb")
	}

	u.mu.Lock()
	u.crumb = crumb
	u.mu.Unlock()
	return crumb, nil
}

func (u *Upstream) doGet(ctx context.Context, target, accept string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", u.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", yahooHome+"/")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("HTTP GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", &ErrHTTP{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLen))
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
