// Package polygon binds the Polygon.io aggregates API as a provider for the
// StockEOD standard model.
package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quantdesk/command-registry/pkg/extensions/stocks"
	"github.com/quantdesk/command-registry/pkg/loader"
	"github.com/quantdesk/command-registry/pkg/registry"
)

// Name is the provider name used in dispatch requests.
const Name = "polygon"

const defaultBaseURL = "https://api.polygon.io"

// Client performs Polygon API calls.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// APIKey is used when the request carries no api_key extra parameter.
	APIKey string
}

// NewClient creates a Client against the production Polygon API.
func NewClient() *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Extension returns the Polygon provider extension for the loader.
func Extension(c *Client) loader.Extension {
	if c == nil {
		c = NewClient()
	}
	return loader.Extension{Name: "provider-polygon", Version: "1.0.3", Register: c.Register}
}

// Register binds Polygon to the StockEOD model. Extra parameters mirror the
// aggregates endpoint: timespan, multiplier, sort, limit, adjusted.
func (c *Client) Register(regs *loader.Registries) error {
	if err := regs.Providers.Bind(Name, stocks.ModelStockEOD,
		[]registry.Field{
			{Name: "api_key", Kind: registry.KindString, Description: "Polygon API key"},
			{Name: "timespan", Kind: registry.KindString, Default: "day"},
			{Name: "multiplier", Kind: registry.KindInt, Default: int64(1)},
			{Name: "sort", Kind: registry.KindString, Default: "asc"},
			{Name: "limit", Kind: registry.KindInt, Default: int64(49999)},
			{Name: "adjusted", Kind: registry.KindBool, Default: true},
		},
		map[string]string{
			"date": "date",
			"o":    "open",
			"h":    "high",
			"l":    "low",
			"c":    "close",
			"v":    "volume",
			"n":    "",
			"vw":   "",
		},
		c.FetchEOD); err != nil {
		return err
	}
	return nil
}

type aggsResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results []struct {
		T  int64   `json:"t"` // epoch millis
		O  float64 `json:"o"`
		H  float64 `json:"h"`
		L  float64 `json:"l"`
		C  float64 `json:"c"`
		V  float64 `json:"v"`
		N  int64   `json:"n"`
		VW float64 `json:"vw"`
	} `json:"results"`
}

// FetchEOD fetches aggregate bars for one symbol. A missing end date
// defaults to today, a missing start date to one year before the end.
func (c *Client) FetchEOD(ctx context.Context, params map[string]interface{}) (*registry.FetchResult, error) {
	symbol, _ := params["symbol"].(string)
	if symbol == "" {
		return nil, fmt.Errorf("polygon: symbol is required")
	}

	end, _ := params["end_date"].(string)
	if end == "" {
		end = time.Now().UTC().Format("2006-01-02")
	}
	start, _ := params["start_date"].(string)
	if start == "" {
		endDay, err := time.Parse("2006-01-02", end)
		if err != nil {
			return nil, fmt.Errorf("polygon: invalid end_date %q", end)
		}
		start = endDay.AddDate(-1, 0, 0).Format("2006-01-02")
	}

	timespan := stringParam(params, "timespan", "day")
	multiplier := intParam(params, "multiplier", 1)
	q := url.Values{}
	q.Set("sort", stringParam(params, "sort", "asc"))
	q.Set("limit", fmt.Sprintf("%d", intParam(params, "limit", 49999)))
	if adjusted, ok := params["adjusted"].(bool); ok {
		q.Set("adjusted", fmt.Sprintf("%t", adjusted))
	}
	if key := c.apiKey(params); key != "" {
		q.Set("apiKey", key)
	}

	requestURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%s/%s?%s",
		c.BaseURL, strings.ToUpper(symbol), multiplier, timespan, start, end, q.Encode())

	var resp aggsResponse
	if err := c.getJSON(ctx, requestURL, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("polygon: upstream error: %s", resp.Error)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("polygon: no results found, try adjusting the query parameters")
	}

	result := &registry.FetchResult{Records: make([]registry.Record, 0, len(resp.Results))}
	for _, bar := range resp.Results {
		result.Records = append(result.Records, registry.Record{
			"date": time.UnixMilli(bar.T).UTC().Format("2006-01-02"),
			"o":    bar.O,
			"h":    bar.H,
			"l":    bar.L,
			"c":    bar.C,
			"v":    bar.V,
			"n":    bar.N,
			"vw":   bar.VW,
		})
	}
	return result, nil
}

func (c *Client) apiKey(params map[string]interface{}) string {
	if key, ok := params["api_key"].(string); ok && key != "" {
		return key
	}
	return c.APIKey
}

func (c *Client) getJSON(ctx context.Context, requestURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("polygon: failed to build request: %w", err)
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polygon: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = resp.Status
		}
		return fmt.Errorf("polygon: upstream error: %s", payload.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("polygon: failed to decode response: %w", err)
	}
	return nil
}

func stringParam(params map[string]interface{}, name, fallback string) string {
	if s, ok := params[name].(string); ok && s != "" {
		return s
	}
	return fallback
}

func intParam(params map[string]interface{}, name string, fallback int64) int64 {
	if n, ok := params[name].(int64); ok && n > 0 {
		return n
	}
	return fallback
}
