// Package coverage derives the route-to-provider support matrix from the
// route registry and the provider registry. It holds no state of its own:
// every read recomputes from the underlying sealed registries, so results
// are always consistent with them.
package coverage

import (
	"sort"

	"github.com/quantdesk/command-registry/pkg/registry"
	"github.com/quantdesk/command-registry/pkg/router"
)

// Index is the read-only coverage view over Router x ProviderRegistry.
type Index struct {
	router    *router.Router
	providers *registry.ProviderRegistry
}

// NewIndex creates a coverage index over the given registries.
func NewIndex(rt *router.Router, pr *registry.ProviderRegistry) *Index {
	return &Index{router: rt, providers: pr}
}

// CommandsByProvider returns, per provider, the sorted route paths whose
// model has a binding for that provider. Free-form routes have no model and
// appear under no provider.
func (ix *Index) CommandsByProvider() map[string][]string {
	out := make(map[string][]string)
	for _, path := range ix.router.Routes() {
		cmd, ok := ix.router.Lookup(path)
		if !ok || cmd.Kind != router.ModelBacked {
			continue
		}
		for _, provider := range ix.providers.ProvidersFor(cmd.Model) {
			out[provider] = append(out[provider], path)
		}
	}
	for provider := range out {
		sort.Strings(out[provider])
	}
	return out
}

// ProvidersByCommand returns, per model-backed route path, the providers
// bound to its model in registration order (the dispatcher's tie-break
// order). Routes with zero bound providers map to an empty list.
func (ix *Index) ProvidersByCommand() map[string][]string {
	out := make(map[string][]string)
	for _, path := range ix.router.Routes() {
		cmd, ok := ix.router.Lookup(path)
		if !ok || cmd.Kind != router.ModelBacked {
			continue
		}
		out[path] = ix.providers.ProvidersFor(cmd.Model)
	}
	return out
}
