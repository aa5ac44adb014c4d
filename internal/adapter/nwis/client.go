// Package nwis retrieves WaterML documents from the USGS Water Services API.
package nwis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Query describes one retrieval from the instantaneous-values ("iv") or
// daily-values ("dv") service.
type Query struct {
	Service      string // "iv" or "dv"
	Sites        []string
	ParameterCds []string
	StatCds      []string
	StartDT      string // ISO date, mutually exclusive with Period
	EndDT        string
	Period       string // ISO-8601 duration, e.g. "P7D"
}

// Client fetches WaterML 1.1 documents from NWIS.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an NWIS client. baseURL has no trailing slash, e.g.
// "https://waterservices.usgs.gov/nwis".
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BuildURL constructs the request URL for a query.
func (c *Client) BuildURL(q Query) string {
	params := url.Values{
		"format": {"waterml,1.1"},
		"sites":  {strings.Join(q.Sites, ",")},
	}
	if len(q.ParameterCds) > 0 {
		params.Set("parameterCd", strings.Join(q.ParameterCds, ","))
	}
	if len(q.StatCds) > 0 && q.Service == "dv" {
		params.Set("statCd", strings.Join(q.StatCds, ","))
	}
	if q.Period != "" {
		params.Set("period", q.Period)
	}
	if q.StartDT != "" {
		params.Set("startDT", q.StartDT)
	}
	if q.EndDT != "" {
		params.Set("endDT", q.EndDT)
	}
	return fmt.Sprintf("%s/%s/?%s", c.baseURL, q.Service, params.Encode())
}

// Fetch retrieves the raw WaterML payload for a query and returns it together
// with the URL it came from, which callers attach to the normalized result as
// its source location.
func (c *Client) Fetch(ctx context.Context, q Query) ([]byte, string, error) {
	fullURL := c.BuildURL(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("nwis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("nwis API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	return body, fullURL, nil
}
