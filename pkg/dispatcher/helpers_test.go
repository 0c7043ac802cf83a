package dispatcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/quantdesk/command-registry/pkg/journal"
	"github.com/quantdesk/command-registry/pkg/registry"
	"github.com/quantdesk/command-registry/pkg/router"
)

// fixture wires a small but complete dispatch surface: one model-backed
// route with two deterministic providers in bind order, one free-form
// route, one route whose model has zero providers, and a set of
// misbehaving providers (slow, panicking, failing).
type fixture struct {
	models    *registry.ModelRegistry
	providers *registry.ProviderRegistry
	router    *router.Router
}

func eodParams() []registry.Field {
	return []registry.Field{
		{Name: "symbol", Kind: registry.KindString, Required: true},
		{Name: "start_date", Kind: registry.KindDate},
		{Name: "limit", Kind: registry.KindInt, Default: int64(100)},
	}
}

func eodResultFields() []registry.Field {
	return []registry.Field{
		{Name: "date", Kind: registry.KindDate},
		{Name: "close", Kind: registry.KindFloat},
		{Name: "volume", Kind: registry.KindInt},
	}
}

// alphaFetch returns provider-native records: "c"/"v" need mapping,
// "noise" is mapped to empty (dropped), "vendor_tag" has no mapping and
// is not a standard result field.
func alphaFetch(_ context.Context, params map[string]interface{}) (*registry.FetchResult, error) {
	symbol, _ := params["symbol"].(string)
	return &registry.FetchResult{
		Records: []registry.Record{
			{"date": "2024-01-02", "c": 101.5, "v": int64(1200), "noise": 1, "vendor_tag": symbol},
			{"date": "2024-01-03", "c": 103.25, "v": int64(900), "noise": 2, "vendor_tag": symbol},
		},
	}, nil
}

func betaFetch(_ context.Context, _ map[string]interface{}) (*registry.FetchResult, error) {
	return &registry.FetchResult{
		Records:  []registry.Record{{"date": "2024-01-02", "c": 99.0, "v": int64(500)}},
		Warnings: []registry.Warning{{Category: "data", Message: "beta data is delayed"}},
	}, nil
}

func slowFetch(ctx context.Context, _ map[string]interface{}) (*registry.FetchResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(2 * time.Second):
		return &registry.FetchResult{}, nil
	}
}

func panickyFetch(_ context.Context, _ map[string]interface{}) (*registry.FetchResult, error) {
	panic("connection table corrupted")
}

func failingFetch(_ context.Context, _ map[string]interface{}) (*registry.FetchResult, error) {
	return nil, fmt.Errorf("upstream returned status 503")
}

func emptyFetch(_ context.Context, _ map[string]interface{}) (*registry.FetchResult, error) {
	return &registry.FetchResult{}, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	models := registry.NewModelRegistry()
	if err := models.Register("StockEOD", eodParams(), eodResultFields()); err != nil {
		t.Fatalf("fixture: register StockEOD: %v", err)
	}
	if err := models.Register("Orphan", eodParams(), eodResultFields()); err != nil {
		t.Fatalf("fixture: register Orphan: %v", err)
	}

	providers := registry.NewProviderRegistry(models)
	resultMap := map[string]string{"c": "close", "v": "volume", "noise": "", "date": "date"}
	alphaExtras := []registry.Field{
		{Name: "interval", Kind: registry.KindString, Default: "1d"},
		{Name: "api_key", Kind: registry.KindString},
	}
	if err := providers.Bind("alpha", "StockEOD", alphaExtras, resultMap, alphaFetch); err != nil {
		t.Fatalf("fixture: bind alpha: %v", err)
	}
	if err := providers.Bind("beta", "StockEOD", nil, resultMap, betaFetch); err != nil {
		t.Fatalf("fixture: bind beta: %v", err)
	}
	if err := providers.Bind("slow", "StockEOD", nil, nil, slowFetch); err != nil {
		t.Fatalf("fixture: bind slow: %v", err)
	}
	if err := providers.Bind("panicky", "StockEOD", nil, nil, panickyFetch); err != nil {
		t.Fatalf("fixture: bind panicky: %v", err)
	}
	if err := providers.Bind("failing", "StockEOD", nil, nil, failingFetch); err != nil {
		t.Fatalf("fixture: bind failing: %v", err)
	}
	if err := providers.Bind("empty", "StockEOD", nil, nil, emptyFetch); err != nil {
		t.Fatalf("fixture: bind empty: %v", err)
	}

	r := router.New()
	if err := r.Command("/stocks/load", "StockEOD"); err != nil {
		t.Fatalf("fixture: route /stocks/load: %v", err)
	}
	if err := r.Command("/orphan/load", "Orphan"); err != nil {
		t.Fatalf("fixture: route /orphan/load: %v", err)
	}
	pingHandler := func(_ context.Context, args map[string]interface{}) (*registry.FetchResult, error) {
		return &registry.FetchResult{Records: []registry.Record{{"pong": true, "echo": args["msg"]}}}, nil
	}
	if err := r.Handle("/system/ping", pingHandler); err != nil {
		t.Fatalf("fixture: route /system/ping: %v", err)
	}

	models.Seal()
	providers.Seal()
	r.Seal()

	return &fixture{models: models, providers: providers, router: r}
}

// newDispatcher builds a Dispatcher over the fixture with a fresh journal.
func (f *fixture) newDispatcher(cfg Config, defaults DefaultProviderSource) *Dispatcher {
	return New(Params{
		Models:    f.models,
		Providers: f.providers,
		Router:    f.router,
		Journal:   journal.New(),
		Defaults:  defaults,
		Config:    cfg,
	})
}
