package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tradeanalyst/src/risk"
)

// NewsClient fetches the economic calendar used for entry blackouts.
// Implements the risk gate's EventSource.
type NewsClient struct {
	httpClient *http.Client
}

func NewNewsClient(httpClient *http.Client) *NewsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &NewsClient{httpClient: httpClient}
}

var currencyCountries = map[string]string{
	"USD": "US", "GBP": "GB", "JPY": "JP", "EUR": "EU",
	"CHF": "CH", "AUD": "AU", "CAD": "CA", "NZD": "NZ",
	"XAU": "US",
}

type calendarEvent struct {
	Title      string    `json:"title"`
	Country    string    `json:"country"`
	Currency   string    `json:"currency"`
	Importance int       `json:"importance"`
	Date       time.Time `json:"date"`
}

type calendarResponse struct {
	Status string          `json:"status"`
	Result []calendarEvent `json:"result"`
}

// HighImpactEvents returns importance-1 calendar events for the given
// currencies inside [from, to].
func (c *NewsClient) HighImpactEvents(
	ctx context.Context,
	from, to time.Time,
	currencies []string,
) ([]risk.NewsEvent, error) {

	countries := make([]string, 0, len(currencies))
	seen := map[string]bool{}
	for _, currency := range currencies {
		country, ok := currencyCountries[strings.ToUpper(currency)]
		if !ok || seen[country] {
			continue
		}
		seen[country] = true
		countries = append(countries, country)
	}

	baseURL := "https://economic-calendar.tradingview.com/events"

	q := url.Values{}
	q.Set("from", from.UTC().Format("2006-01-02T15:04:05.000Z"))
	q.Set("to", to.UTC().Format("2006-01-02T15:04:05.000Z"))
	q.Set("countries", strings.Join(countries, ","))

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("accept-language", "en-GB,en;q=0.9")
	req.Header.Set("origin", "https://www.tradingview.com")
	req.Header.Set("referer", "https://www.tradingview.com/")
	req.Header.Set("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("unexpected status %d. body: %s", resp.StatusCode, string(b))
	}

	var decoded calendarResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if decoded.Status != "ok" && decoded.Status != "" {
		return nil, fmt.Errorf("unexpected status field: %q", decoded.Status)
	}

	out := make([]risk.NewsEvent, 0, len(decoded.Result))

	logrus.Infof("Fetched %d calendar events", len(decoded.Result))

	for _, ev := range decoded.Result {
		if ev.Importance != 1 {
			continue
		}
		out = append(out, risk.NewsEvent{
			Title:      ev.Title,
			Currency:   ev.Currency,
			Importance: ev.Importance,
			Time:       ev.Date,
		})
	}
	return out, nil
}
