package registry

import (
	"fmt"
	"log/slog"
)

const providersLogPrefix = "registry:providers"

// ProviderRegistry holds provider bindings keyed by (provider, model).
// Registration order per model is preserved: it is the deterministic
// tie-break when no provider is specified and no default is configured.
type ProviderRegistry struct {
	models *ModelRegistry
	// bindings[provider][model]
	bindings map[string]map[string]*Binding
	// byModel[model] lists providers in bind order.
	byModel map[string][]string
	// providerOrder lists provider names in first-bind order.
	providerOrder []string
	sealed        bool
}

// NewProviderRegistry creates a ProviderRegistry validating model names
// against the given ModelRegistry.
func NewProviderRegistry(models *ModelRegistry) *ProviderRegistry {
	return &ProviderRegistry{
		models:   models,
		bindings: make(map[string]map[string]*Binding),
		byModel:  make(map[string][]string),
	}
}

// Bind attaches a provider's fetch implementation to a standard model.
// Fails with UNKNOWN_MODEL if the model is not registered,
// PARAMETER_COLLISION if an extra-parameter name duplicates a standard
// parameter name, DUPLICATE_BINDING if (provider, model) is already bound,
// REGISTRY_SEALED after Seal.
func (r *ProviderRegistry) Bind(provider, modelName string, extraParams []Field, resultFieldMap map[string]string, fetch FetchFunc) *Error {
	if r.sealed {
		return NewError(CodeRegistrySealed, "provider registry is sealed, registration rejected")
	}
	if provider == "" {
		return NewError(CodeInvalidSchema, "provider name must not be empty")
	}
	if fetch == nil {
		return NewError(CodeInvalidSchema,
			fmt.Sprintf("binding %s/%s: fetch function must not be nil", provider, modelName))
	}

	model, err := r.models.Lookup(modelName)
	if err != nil {
		return err
	}
	if verr := validateFieldSet(modelName, "extra parameter", extraParams); verr != nil {
		return verr
	}
	for _, f := range extraParams {
		if _, ok := model.Param(f.Name); ok {
			return NewError(CodeParameterCollision,
				fmt.Sprintf("binding %s/%s: extra parameter collides with standard parameter: %s",
					provider, modelName, f.Name))
		}
	}

	byProvider, ok := r.bindings[provider]
	if !ok {
		byProvider = make(map[string]*Binding)
		r.bindings[provider] = byProvider
		r.providerOrder = append(r.providerOrder, provider)
	}
	if _, exists := byProvider[modelName]; exists {
		return NewError(CodeDuplicateBinding,
			fmt.Sprintf("provider %s already bound to model %s", provider, modelName))
	}

	fieldMap := make(map[string]string, len(resultFieldMap))
	for native, std := range resultFieldMap {
		fieldMap[native] = std
	}
	byProvider[modelName] = &Binding{
		Provider:       provider,
		Model:          modelName,
		ExtraParams:    append([]Field(nil), extraParams...),
		ResultFieldMap: fieldMap,
		Fetch:          fetch,
	}
	r.byModel[modelName] = append(r.byModel[modelName], provider)

	slog.Debug(fmt.Sprintf("%s - bound %s to model %s", providersLogPrefix, provider, modelName))
	return nil
}

// Resolve returns the binding for (provider, model) or fails with
// NO_SUCH_PROVIDER_BINDING.
func (r *ProviderRegistry) Resolve(provider, modelName string) (*Binding, *Error) {
	if byProvider, ok := r.bindings[provider]; ok {
		if b, ok := byProvider[modelName]; ok {
			return b, nil
		}
	}
	return nil, NewError(CodeNoSuchProviderBinding,
		fmt.Sprintf("no binding for provider %s on model %s", provider, modelName))
}

// ProvidersFor returns the providers bound to a model, in bind order.
func (r *ProviderRegistry) ProvidersFor(modelName string) []string {
	return append([]string(nil), r.byModel[modelName]...)
}

// Providers returns all provider names in first-bind order.
func (r *ProviderRegistry) Providers() []string {
	return append([]string(nil), r.providerOrder...)
}

// ModelsFor returns the model names a provider is bound to, in model
// registration order.
func (r *ProviderRegistry) ModelsFor(provider string) []string {
	byProvider, ok := r.bindings[provider]
	if !ok {
		return nil
	}
	var models []string
	for _, model := range r.models.Names() {
		if _, bound := byProvider[model]; bound {
			models = append(models, model)
		}
	}
	return models
}

// Seal marks the registry read-only. Subsequent Bind calls fail with
// REGISTRY_SEALED. Reads after sealing need no locking.
func (r *ProviderRegistry) Seal() {
	r.sealed = true
}

// Sealed reports whether the registry has been sealed.
func (r *ProviderRegistry) Sealed() bool {
	return r.sealed
}
