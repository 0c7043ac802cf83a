package registry

import (
	"fmt"
	"log/slog"
)

const modelsLogPrefix = "registry:models"

// ModelRegistry holds standard models keyed by name. Entries are immutable
// once inserted; no update operation is exposed.
type ModelRegistry struct {
	models map[string]*StandardModel
	order  []string
	sealed bool
}

// NewModelRegistry creates an empty ModelRegistry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{models: make(map[string]*StandardModel)}
}

// Register adds a standard model. Fails with DUPLICATE_MODEL if the name is
// taken, INVALID_SCHEMA if any field name is empty or duplicated within the
// same field set, REGISTRY_SEALED after Seal.
func (r *ModelRegistry) Register(name string, params, resultFields []Field) *Error {
	if r.sealed {
		return NewError(CodeRegistrySealed, "model registry is sealed, registration rejected")
	}
	if name == "" {
		return NewError(CodeInvalidSchema, "model name must not be empty")
	}
	if _, ok := r.models[name]; ok {
		return NewError(CodeDuplicateModel, fmt.Sprintf("model already registered: %s", name))
	}
	if err := validateFieldSet(name, "standard parameter", params); err != nil {
		return err
	}
	if err := validateFieldSet(name, "result field", resultFields); err != nil {
		return err
	}

	r.models[name] = &StandardModel{
		Name:         name,
		Params:       append([]Field(nil), params...),
		ResultFields: append([]Field(nil), resultFields...),
	}
	r.order = append(r.order, name)

	slog.Debug(fmt.Sprintf("%s - registered model %s (%d params, %d result fields)",
		modelsLogPrefix, name, len(params), len(resultFields)))
	return nil
}

// Lookup returns the model or fails with UNKNOWN_MODEL.
func (r *ModelRegistry) Lookup(name string) (*StandardModel, *Error) {
	m, ok := r.models[name]
	if !ok {
		return nil, NewError(CodeUnknownModel, fmt.Sprintf("unknown model: %s", name))
	}
	return m, nil
}

// Names returns all registered model names in registration order.
func (r *ModelRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Seal marks the registry read-only. Subsequent Register calls fail with
// REGISTRY_SEALED. Reads after sealing need no locking.
func (r *ModelRegistry) Seal() {
	r.sealed = true
}

// Sealed reports whether the registry has been sealed.
func (r *ModelRegistry) Sealed() bool {
	return r.sealed
}

func validateFieldSet(model, kind string, fields []Field) *Error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return NewError(CodeInvalidSchema,
				fmt.Sprintf("model %s: empty %s name", model, kind))
		}
		if seen[f.Name] {
			return NewError(CodeInvalidSchema,
				fmt.Sprintf("model %s: duplicate %s name: %s", model, kind, f.Name))
		}
		seen[f.Name] = true
	}
	return nil
}
