// Package dispatcher executes dispatch requests end to end: route
// resolution, provider selection, parameter validation, fetch execution,
// result-field mapping, envelope construction, and invocation journaling.
package dispatcher

import (
	"time"

	"github.com/quantdesk/command-registry/pkg/chart"
	"github.com/quantdesk/command-registry/pkg/registry"
)

// Options carries per-request dispatch flags.
type Options struct {
	// Chart requests chart construction alongside the results. A chart
	// failure is downgraded to a warning, never an error.
	Chart bool `json:"chart,omitempty"`
	// Timeout aborts the dispatch at the provider-fetch boundary. Zero
	// falls back to the dispatcher's configured default.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Alias tags the journal entry for later FindByAlias lookup.
	Alias string `json:"alias,omitempty"`
}

// Request is one dispatch invocation. Provider empty means "use default":
// the per-route preference from the injected configuration source, falling
// back to the first provider in bind order.
type Request struct {
	Path     string                 `json:"path"`
	Provider string                 `json:"provider,omitempty"`
	Params   map[string]interface{} `json:"params,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
	Options  Options                `json:"options,omitempty"`
}

// Envelope is the uniform result wrapper returned by every dispatch.
// Exactly one of Results and Error is the primary signal, but both may
// coexist (partial success is expressed through Warnings).
type Envelope struct {
	ID       string             `json:"id"`
	Results  []registry.Record  `json:"results"`
	Provider string             `json:"provider,omitempty"`
	Warnings []registry.Warning `json:"warnings,omitempty"`
	Error    *registry.Error    `json:"error,omitempty"`
	Chart    *chart.Chart       `json:"chart,omitempty"`
}

// Success reports whether the dispatch produced a usable result.
func (e *Envelope) Success() bool {
	return e.Error == nil
}
