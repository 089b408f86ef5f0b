package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"nse-screener/models"
)

// Proxy fetches through a remote instance's /api/yahoo endpoint, for hosts
// that cannot reach the exchange or Yahoo directly.
type Proxy struct {
	baseURL string
	client  *http.Client
}

func NewProxy(baseURL string, client *http.Client) *Proxy {
	if client == nil {
		client = http.DefaultClient
	}
	return &Proxy{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Query encodes req as /api/yahoo parameters.
func (r Request) Query() url.Values {
	q := url.Values{}
	q.Set("type", string(r.Type))
	if r.Symbol != "" {
		q.Set("symbol", r.Symbol)
	}
	if r.Type == TypeChart {
		q.Set("range", string(r.Range))
		q.Set("interval", r.Interval)
	}
	return q
}

// RequestFromQuery is the inverse of Query.
func RequestFromQuery(q url.Values) Request {
	return Request{
		Type:     Type(q.Get("type")),
		Symbol:   strings.TrimSpace(q.Get("symbol")),
		Range:    models.Range(q.Get("range")),
		Interval: q.Get("interval"),
	}
}

func (p *Proxy) Get(ctx context.Context, req Request) (*Payload, error) {
	target := p.baseURL + "/api/yahoo?" + req.Query().Encode()
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLen))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Payload{Type: req.Type, ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

// Handler serves /api/yahoo: the browser-facing pass-through to the
// gateway. Equity lists are returned as text, everything else as JSON.
func Handler(g *Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := RequestFromQuery(r.URL.Query())
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		p := g.Fetch(r.Context(), req)
		if p == nil {
			writeError(w, http.StatusBadGateway, "upstream returned no data")
			return
		}

		if req.Type == TypeEquityList {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "s-maxage=3600")
		} else {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "s-maxage=60")
		}
		w.WriteHeader(http.StatusOK)
		w.Write(p.Body)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
