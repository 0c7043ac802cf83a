// Package fmp binds the Financial Modeling Prep API as a provider for the
// equity standard models.
package fmp

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
const Name = "fmp"

const defaultBaseURL = "https://financialmodelingprep.com/api/v3"

// Client performs FMP API calls. The zero-value friendly constructor uses
// the production base URL; tests point BaseURL at a local server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// APIKey is used when the request carries no api_key extra parameter.
	APIKey string
}

// NewClient creates a Client against the production FMP API.
func NewClient() *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Extension returns the FMP provider extension for the loader.
func Extension(c *Client) loader.Extension {
	if c == nil {
		c = NewClient()
	}
	return loader.Extension{Name: "provider-fmp", Version: "1.1.0", Register: c.Register}
}

// Register binds FMP to the StockEOD and StockQuote models.
func (c *Client) Register(regs *loader.Registries) error {
	if err := regs.Providers.Bind(Name, stocks.ModelStockEOD,
		[]registry.Field{
			{Name: "api_key", Kind: registry.KindString, Description: "FMP API key"},
			{Name: "limit", Kind: registry.KindInt, Description: "Maximum number of rows returned"},
		},
		map[string]string{
			"date":     "date",
			"open":     "open",
			"high":     "high",
			"low":      "low",
			"close":    "close",
			"volume":   "volume",
			"adjClose": "",
		},
		c.FetchEOD); err != nil {
		return err
	}

	if err := regs.Providers.Bind(Name, stocks.ModelStockQuote,
		[]registry.Field{
			{Name: "api_key", Kind: registry.KindString, Description: "FMP API key"},
		},
		map[string]string{
			"symbol":            "symbol",
			"price":             "price",
			"change":            "change",
			"changesPercentage": "change_percent",
			"dayLow":            "day_low",
			"dayHigh":           "day_high",
			"volume":            "volume",
		},
		c.FetchQuote); err != nil {
		return err
	}
	return nil
}

type eodResponse struct {
	Symbol     string `json:"symbol"`
	Historical []struct {
		Date     string  `json:"date"`
		Open     float64 `json:"open"`
		High     float64 `json:"high"`
		Low      float64 `json:"low"`
		Close    float64 `json:"close"`
		AdjClose float64 `json:"adjClose"`
		Volume   float64 `json:"volume"`
	} `json:"historical"`
}

// FetchEOD fetches the end-of-day price series for one symbol.
func (c *Client) FetchEOD(ctx context.Context, params map[string]interface{}) (*registry.FetchResult, error) {
	symbol, _ := params["symbol"].(string)
	if symbol == "" {
		return nil, fmt.Errorf("fmp: symbol is required")
	}

	q := url.Values{}
	if from, ok := params["start_date"].(string); ok && from != "" {
		q.Set("from", from)
	}
	if to, ok := params["end_date"].(string); ok && to != "" {
		q.Set("to", to)
	}
	if limit, ok := params["limit"].(int64); ok && limit > 0 {
		q.Set("timeseries", fmt.Sprintf("%d", limit))
	}
	if key := c.apiKey(params); key != "" {
		q.Set("apikey", key)
	}

	requestURL := fmt.Sprintf("%s/historical-price-full/%s", c.BaseURL, strings.ToUpper(symbol))
	if encoded := q.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	var resp eodResponse
	if err := c.getJSON(ctx, requestURL, &resp); err != nil {
		return nil, err
	}
	if len(resp.Historical) == 0 {
		return nil, fmt.Errorf("fmp: no results found, try adjusting the query parameters")
	}

	result := &registry.FetchResult{Records: make([]registry.Record, 0, len(resp.Historical))}
	for _, row := range resp.Historical {
		result.Records = append(result.Records, registry.Record{
			"date":     row.Date,
			"open":     row.Open,
			"high":     row.High,
			"low":      row.Low,
			"close":    row.Close,
			"adjClose": row.AdjClose,
			"volume":   row.Volume,
		})
	}
	return result, nil
}

type quoteRow struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	Change            float64 `json:"change"`
	ChangesPercentage float64 `json:"changesPercentage"`
	DayLow            float64 `json:"dayLow"`
	DayHigh           float64 `json:"dayHigh"`
	Volume            float64 `json:"volume"`
}

// FetchQuote fetches the latest quote for one symbol.
func (c *Client) FetchQuote(ctx context.Context, params map[string]interface{}) (*registry.FetchResult, error) {
	symbol, _ := params["symbol"].(string)
	if symbol == "" {
		return nil, fmt.Errorf("fmp: symbol is required")
	}

	requestURL := fmt.Sprintf("%s/quote/%s", c.BaseURL, strings.ToUpper(symbol))
	if key := c.apiKey(params); key != "" {
		requestURL += "?apikey=" + url.QueryEscape(key)
	}

	var rows []quoteRow
	if err := c.getJSON(ctx, requestURL, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fmp: no quote found for %s", symbol)
	}

	result := &registry.FetchResult{}
	for _, row := range rows {
		result.Records = append(result.Records, registry.Record{
			"symbol":            row.Symbol,
			"price":             row.Price,
			"change":            row.Change,
			"changesPercentage": row.ChangesPercentage,
			"dayLow":            row.DayLow,
			"dayHigh":           row.DayHigh,
			"volume":            row.Volume,
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
		return fmt.Errorf("fmp: failed to build request: %w", err)
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fmp: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("fmp: endpoint does not exist")
	}
	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Message == "" {
			payload.Message = "unknown error"
		}
		return fmt.Errorf("fmp: upstream error: %s", payload.Message)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("fmp: failed to decode response: %w", err)
	}
	return nil
}
