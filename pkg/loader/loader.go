// Package loader runs extension registration against the registries during
// the single-threaded load phase, then seals everything. A misbehaving
// extension is isolated: its registration is skipped and logged, it never
// crashes the process or poisons other extensions.
package loader

import (
	"fmt"
	"log/slog"

	"github.com/Masterminds/semver/v3"

	"github.com/quantdesk/command-registry/pkg/registry"
	"github.com/quantdesk/command-registry/pkg/router"
)

const logPrefix = "loader:loader"

// Registries bundles the three registration surfaces an extension writes to.
type Registries struct {
	Models    *registry.ModelRegistry
	Providers *registry.ProviderRegistry
	Router    *router.Router
}

// NewRegistries creates an empty, unsealed registry set.
func NewRegistries() *Registries {
	models := registry.NewModelRegistry()
	return &Registries{
		Models:    models,
		Providers: registry.NewProviderRegistry(models),
		Router:    router.New(),
	}
}

// Seal freezes all three registries. Registration afterwards fails with
// REGISTRY_SEALED; reads become lock-free.
func (r *Registries) Seal() {
	r.Models.Seal()
	r.Providers.Seal()
	r.Router.Seal()
}

// Extension is one independently developed unit of registration: standard
// models, provider bindings, and routes.
type Extension struct {
	Name    string
	Version string
	// Register performs the extension's declarative registration calls.
	// A returned error aborts this extension only.
	Register func(regs *Registries) error
}

// Report summarizes one load run.
type Report struct {
	Loaded  []string
	Skipped map[string]string // extension name -> reason
}

// Load registers each extension in order against regs, then seals regs.
// Extensions with an empty name, an invalid semver version, a panicking or
// failing Register are skipped and reported, never raised.
func Load(regs *Registries, exts []Extension) *Report {
	report := &Report{Skipped: make(map[string]string)}

	for i, ext := range exts {
		name := ext.Name
		if name == "" {
			name = fmt.Sprintf("extension[%d]", i)
			report.Skipped[name] = "extension name must not be empty"
			slog.Warn(fmt.Sprintf("%s - skipping unnamed extension at index %d", logPrefix, i))
			continue
		}
		if _, err := semver.NewVersion(ext.Version); err != nil {
			report.Skipped[name] = fmt.Sprintf("invalid version %q: %v", ext.Version, err)
			slog.Warn(fmt.Sprintf("%s - skipping %s: invalid version %q: %v", logPrefix, name, ext.Version, err))
			continue
		}
		if ext.Register == nil {
			report.Skipped[name] = "extension has no Register function"
			slog.Warn(fmt.Sprintf("%s - skipping %s: no Register function", logPrefix, name))
			continue
		}

		if err := runRegister(ext, regs); err != nil {
			report.Skipped[name] = err.Error()
			slog.Warn(fmt.Sprintf("%s - skipping %s: registration failed: %v", logPrefix, name, err))
			continue
		}
		report.Loaded = append(report.Loaded, name)
		slog.Info(fmt.Sprintf("%s - loaded extension %s@%s", logPrefix, name, ext.Version))
	}

	regs.Seal()
	slog.Info(fmt.Sprintf("%s - load complete: %d loaded, %d skipped, registries sealed",
		logPrefix, len(report.Loaded), len(report.Skipped)))
	return report
}

// runRegister isolates a panicking extension.
func runRegister(ext Extension, regs *Registries) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("registration panicked: %v", p)
		}
	}()
	return ext.Register(regs)
}
