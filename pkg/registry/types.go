// Package registry implements the standard-model and provider registries.
// Standard models describe the parameter and result schema of a logical data
// kind independent of any provider; provider bindings attach a concrete fetch
// implementation to a model. Both registries follow a build-then-seal
// discipline: registration happens during single-threaded extension loading,
// reads after sealing are lock-free.
package registry

import "context"

// Error codes returned by the registries, router, and dispatcher.
const (
	CodeDuplicateModel        = "DUPLICATE_MODEL"
	CodeInvalidSchema         = "INVALID_SCHEMA"
	CodeUnknownModel          = "UNKNOWN_MODEL"
	CodeParameterCollision    = "PARAMETER_COLLISION"
	CodeDuplicateBinding      = "DUPLICATE_BINDING"
	CodeNoSuchProviderBinding = "NO_SUCH_PROVIDER_BINDING"
	CodeNoProviderAvailable   = "NO_PROVIDER_AVAILABLE"
	CodeRegistrySealed        = "REGISTRY_SEALED"
	CodeRouteConflict         = "ROUTE_CONFLICT"
	CodeRouteNotFound         = "ROUTE_NOT_FOUND"
	CodeParameterValidation   = "PARAMETER_VALIDATION"
	CodeUnknownParameter      = "UNKNOWN_PARAMETER"
	CodeUpstreamFailure       = "UPSTREAM_FAILURE"
	CodeTimeout               = "TIMEOUT"
	CodeNotFound              = "NOT_FOUND"
	CodeInternal              = "INTERNAL_ERROR"
)

// Error is a structured error carried through registration and dispatch.
// Registration-time errors are returned to the extension loader; everything
// from dispatch onward is converted to envelope data, never raised.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// FieldKind is the semantic type of a parameter or result field.
type FieldKind string

// Supported field kinds.
const (
	KindString FieldKind = "string"
	KindInt    FieldKind = "int"
	KindFloat  FieldKind = "float"
	KindBool   FieldKind = "bool"
	KindDate   FieldKind = "date" // ISO date string, "2006-01-02"
)

// Field describes one named, typed parameter or result field.
type Field struct {
	Name        string      `json:"name"`
	Kind        FieldKind   `json:"kind"`
	Required    bool        `json:"required,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Description string      `json:"description,omitempty"`
}

// StandardModel is the shared parameter/result schema for a logical data
// kind (e.g. "stock end-of-day series"), independent of provider.
// Immutable once registered.
type StandardModel struct {
	Name         string  `json:"name"`
	Params       []Field `json:"params"`
	ResultFields []Field `json:"resultFields"`
}

// Param returns the standard parameter field with the given name.
func (m *StandardModel) Param(name string) (Field, bool) {
	for _, f := range m.Params {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ResultField returns the standard result field with the given name.
func (m *StandardModel) ResultField(name string) (Field, bool) {
	for _, f := range m.ResultFields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Record is one row of fetched data, keyed by field name.
type Record map[string]interface{}

// Warning is a non-fatal issue attached alongside a possibly-successful
// result. It is informational, never an error.
type Warning struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// FetchResult is the discriminated success value of one upstream fetch:
// provider-native records plus any non-fatal warnings collected on the way.
type FetchResult struct {
	Records  []Record  `json:"records"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// FetchFunc performs one upstream fetch given the merged standard+extra
// parameter map. The context carries the caller's dispatch deadline; fetchers
// doing network I/O must honor it. A returned error becomes the envelope's
// error, it never propagates past the dispatch boundary.
type FetchFunc func(ctx context.Context, params map[string]interface{}) (*FetchResult, error)

// Binding is a provider's concrete implementation of a standard model:
// its extra-parameter schema, its native-to-standard result-field mapping,
// and the fetch callable.
type Binding struct {
	Provider string
	Model    string
	// ExtraParams are provider-specific parameters; names must not collide
	// with the model's standard parameter names.
	ExtraParams []Field
	// ResultFieldMap maps provider-native field names to standard result
	// field names. An empty target drops the native field.
	ResultFieldMap map[string]string
	Fetch          FetchFunc
}

// ExtraParam returns the extra-parameter field with the given name.
func (b *Binding) ExtraParam(name string) (Field, bool) {
	for _, f := range b.ExtraParams {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
