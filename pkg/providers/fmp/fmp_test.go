package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/quantdesk/command-registry/pkg/extensions/stocks"
	"github.com/quantdesk/command-registry/pkg/loader"
)

const fmpTestPrefix = "fmp:fmp_test"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{BaseURL: srv.URL, HTTP: srv.Client()}
}

func TestFetchEOD(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"symbol":"TSLA","historical":[
			{"date":"2024-01-03","open":102,"high":104,"low":101,"close":103.5,"adjClose":103.1,"volume":900},
			{"date":"2024-01-02","open":100,"high":102,"low":99,"close":101.5,"adjClose":101.2,"volume":1200}
		]}`))
	})
	c.APIKey = "configured-key"

	res, err := c.FetchEOD(context.Background(), map[string]interface{}{
		"symbol":     "tsla",
		"start_date": "2024-01-01",
		"limit":      int64(50),
	})
	if err != nil {
		t.Fatalf("%s - FetchEOD failed: %v", fmpTestPrefix, err)
	}
	if gotPath != "/historical-price-full/TSLA" {
		t.Errorf("%s - path = %s, want uppercased symbol path", fmpTestPrefix, gotPath)
	}
	wantQuery := "apikey=configured-key&from=2024-01-01&timeseries=50"
	if gotQuery != wantQuery {
		t.Errorf("%s - query = %s, want %s", fmpTestPrefix, gotQuery, wantQuery)
	}
	if len(res.Records) != 2 {
		t.Fatalf("%s - got %d records, want 2", fmpTestPrefix, len(res.Records))
	}
	if res.Records[0]["close"] != 103.5 || res.Records[0]["date"] != "2024-01-03" {
		t.Errorf("%s - first record = %v", fmpTestPrefix, res.Records[0])
	}
}

func TestFetchEOD_ExplicitKeyBeatsConfigured(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"symbol":"TSLA","historical":[{"date":"2024-01-02","close":101.5}]}`))
	})
	c.APIKey = "configured-key"

	_, err := c.FetchEOD(context.Background(), map[string]interface{}{
		"symbol":  "TSLA",
		"api_key": "request-key",
	})
	if err != nil {
		t.Fatalf("%s - FetchEOD failed: %v", fmpTestPrefix, err)
	}
	if gotQuery != "apikey=request-key" {
		t.Errorf("%s - query = %s, want the request-supplied key", fmpTestPrefix, gotQuery)
	}
}

func TestFetchEOD_Errors(t *testing.T) {
	cases := []struct {
		name    string
		params  map[string]interface{}
		handler http.HandlerFunc
	}{
		{
			name:   "missing symbol",
			params: map[string]interface{}{},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				t.Error(fmpTestPrefix + " - request must not reach upstream without a symbol")
			},
		},
		{
			name:   "empty series",
			params: map[string]interface{}{"symbol": "TSLA"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"symbol":"TSLA","historical":[]}`))
			},
		},
		{
			name:   "not found",
			params: map[string]interface{}{"symbol": "TSLA"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name:   "upstream error message",
			params: map[string]interface{}{"symbol": "TSLA"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"Invalid API KEY"}`))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler)
			if _, err := c.FetchEOD(context.Background(), tc.params); err == nil {
				t.Errorf("%s - expected an error", fmpTestPrefix)
			}
		})
	}
}

func TestFetchQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote/TSLA" {
			t.Errorf("%s - path = %s, want /quote/TSLA", fmpTestPrefix, r.URL.Path)
		}
		w.Write([]byte(`[{"symbol":"TSLA","price":240.5,"change":2.5,"changesPercentage":1.05,
			"dayLow":236.1,"dayHigh":242.0,"volume":98000000}]`))
	})

	res, err := c.FetchQuote(context.Background(), map[string]interface{}{"symbol": "TSLA"})
	if err != nil {
		t.Fatalf("%s - FetchQuote failed: %v", fmpTestPrefix, err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("%s - got %d records, want 1", fmpTestPrefix, len(res.Records))
	}
	rec := res.Records[0]
	if rec["price"] != 240.5 || rec["changesPercentage"] != 1.05 {
		t.Errorf("%s - record = %v", fmpTestPrefix, rec)
	}
}

func TestFetchQuote_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})
	if _, err := c.FetchQuote(context.Background(), map[string]interface{}{"symbol": "NOPE"}); err == nil {
		t.Errorf("%s - expected an error for an empty quote response", fmpTestPrefix)
	}
}

func TestExtensionBindsBothModels(t *testing.T) {
	regs := loader.NewRegistries()
	report := loader.Load(regs, []loader.Extension{
		stocks.Extension(),
		Extension(&Client{BaseURL: "http://localhost:0"}),
	})

	if !reflect.DeepEqual(report.Loaded, []string{"stocks", "provider-fmp"}) {
		t.Fatalf("%s - Loaded = %v, skipped = %v", fmpTestPrefix, report.Loaded, report.Skipped)
	}
	models := regs.Providers.ModelsFor(Name)
	if !reflect.DeepEqual(models, []string{stocks.ModelStockEOD, stocks.ModelStockQuote}) {
		t.Errorf("%s - ModelsFor(fmp) = %v", fmpTestPrefix, models)
	}

	binding, err := regs.Providers.Resolve(Name, stocks.ModelStockEOD)
	if err != nil {
		t.Fatalf("%s - Resolve failed: %v", fmpTestPrefix, err)
	}
	if binding.ResultFieldMap["adjClose"] != "" {
		t.Errorf("%s - adjClose must map to empty (dropped)", fmpTestPrefix)
	}
	if _, ok := binding.ExtraParam("limit"); !ok {
		t.Errorf("%s - EOD binding must declare the limit extra", fmpTestPrefix)
	}
}
