package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantdesk/command-registry/pkg/chart"
	"github.com/quantdesk/command-registry/pkg/events"
	"github.com/quantdesk/command-registry/pkg/journal"
	"github.com/quantdesk/command-registry/pkg/registry"
	"github.com/quantdesk/command-registry/pkg/router"
)

const logPrefix = "dispatcher:dispatch"

// DefaultProviderSource supplies the per-route default-provider preference.
// It is injected so the dispatcher stays testable with fakes instead of
// reading ambient settings.
type DefaultProviderSource interface {
	DefaultProviderFor(path string) (string, bool)
}

// MapDefaults is a DefaultProviderSource backed by a plain map of route
// path to provider name.
type MapDefaults map[string]string

// DefaultProviderFor returns the configured provider for a path.
func (m MapDefaults) DefaultProviderFor(path string) (string, bool) {
	p, ok := m[path]
	return p, ok
}

// Config holds dispatcher configuration.
type Config struct {
	// StrictParams rejects undeclared extra parameters; lenient mode drops
	// them with a warning.
	StrictParams bool
	// DefaultTimeout applies when a request carries no timeout. Zero means
	// no deadline beyond the caller's context.
	DefaultTimeout time.Duration
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{StrictParams: true}
}

// Dispatcher executes one DispatchRequest end to end. It never returns a
// Go error for ordinary failure modes: everything past the dispatch
// boundary is converted to envelope data.
type Dispatcher struct {
	models    *registry.ModelRegistry
	providers *registry.ProviderRegistry
	router    *router.Router
	journal   *journal.Journal
	defaults  DefaultProviderSource
	publisher events.EventPublisher
	config    Config
}

// Params holds parameters for New.
type Params struct {
	Models    *registry.ModelRegistry
	Providers *registry.ProviderRegistry
	Router    *router.Router
	Journal   *journal.Journal
	Defaults  DefaultProviderSource
	Publisher events.EventPublisher
	Config    Config
}

// New creates a Dispatcher. A nil Journal gets a fresh unbounded one; a nil
// Publisher defaults to NoOp; a nil Defaults source means registration-order
// tie-break only.
func New(p Params) *Dispatcher {
	j := p.Journal
	if j == nil {
		j = journal.New()
	}
	pub := p.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	return &Dispatcher{
		models:    p.Models,
		providers: p.Providers,
		router:    p.Router,
		journal:   j,
		defaults:  p.Defaults,
		publisher: pub,
		config:    p.Config,
	}
}

// Journal returns the dispatcher's invocation journal.
func (d *Dispatcher) Journal() *journal.Journal {
	return d.journal
}

// Dispatch executes one request and returns the result envelope plus the
// identifier of the journal entry recording the invocation.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Envelope, string) {
	start := time.Now().UTC()
	env := &Envelope{ID: newID()}

	slog.Debug(fmt.Sprintf("%s - path=%s provider=%s", logPrefix, req.Path, req.Provider))

	cmd, rerr := d.router.Resolve(req.Path)
	switch {
	case rerr != nil:
		env.Error = rerr
	case cmd.Kind == router.FreeForm:
		d.dispatchFreeForm(ctx, req, cmd, env)
	default:
		d.dispatchModelBacked(ctx, req, cmd, env)
	}

	entryID := d.record(ctx, req, cmd, env, start)
	return env, entryID
}

// dispatchFreeForm invokes the route's handler directly with the raw
// arguments. No schema validation or result-field mapping applies.
func (d *Dispatcher) dispatchFreeForm(ctx context.Context, req *Request, cmd *router.Command, env *Envelope) {
	args := mergeParams(req.Params, req.Extra)
	res, ferr := d.invoke(ctx, req.Options.Timeout, func(fctx context.Context) (*registry.FetchResult, error) {
		return cmd.Handler(fctx, args)
	})
	if ferr != nil {
		env.Error = ferr
		return
	}
	env.Results = res.Records
	env.Warnings = append(env.Warnings, res.Warnings...)
	if req.Options.Chart {
		env.Warnings = append(env.Warnings, registry.Warning{
			Category: "chart",
			Message:  fmt.Sprintf("route %s is free-form and not chartable", cmd.Path),
		})
	}
}

// dispatchModelBacked runs the full model-backed algorithm: provider
// selection, validation, merge, fetch, result-field mapping, chart.
func (d *Dispatcher) dispatchModelBacked(ctx context.Context, req *Request, cmd *router.Command, env *Envelope) {
	model, merr := d.models.Lookup(cmd.Model)
	if merr != nil {
		env.Error = merr
		return
	}

	providerName, perr := d.selectProvider(req, cmd)
	if perr != nil {
		env.Error = perr
		return
	}
	binding, berr := d.providers.Resolve(providerName, cmd.Model)
	if berr != nil {
		env.Error = berr
		return
	}
	env.Provider = providerName

	std, overflow, verr := validateStandard(model, req.Params)
	if verr != nil {
		env.Error = verr
		return
	}
	// Standard-map keys the model does not declare are treated as extra
	// parameters: callers routinely put provider-specific values there.
	rawExtra := req.Extra
	if len(overflow) > 0 {
		rawExtra = mergeParams(overflow, req.Extra)
	}
	extra, warns, eerr := validateExtra(binding, rawExtra, d.config.StrictParams)
	if eerr != nil {
		env.Error = eerr
		return
	}
	env.Warnings = append(env.Warnings, warns...)

	merged := mergeParams(std, extra)
	res, ferr := d.invoke(ctx, req.Options.Timeout, func(fctx context.Context) (*registry.FetchResult, error) {
		return binding.Fetch(fctx, merged)
	})
	if ferr != nil {
		env.Error = ferr
		return
	}

	env.Results = mapRecords(binding, model, res.Records)
	env.Warnings = append(env.Warnings, res.Warnings...)

	if req.Options.Chart {
		c, cerr := chart.Build(env.Results, model.ResultFields)
		if cerr != nil {
			env.Warnings = append(env.Warnings, registry.Warning{Category: "chart", Message: cerr.Error()})
		} else {
			env.Chart = c
		}
	}
}

// selectProvider determines the effective provider: the request's explicit
// choice, else the injected per-route preference, else the first provider
// in bind order. Fails with NO_PROVIDER_AVAILABLE when the model has zero
// bound providers and no explicit choice was made.
func (d *Dispatcher) selectProvider(req *Request, cmd *router.Command) (string, *registry.Error) {
	if req.Provider != "" {
		return req.Provider, nil
	}
	if d.defaults != nil {
		if p, ok := d.defaults.DefaultProviderFor(cmd.Path); ok && p != "" {
			return p, nil
		}
	}
	bound := d.providers.ProvidersFor(cmd.Model)
	if len(bound) == 0 {
		return "", registry.NewError(registry.CodeNoProviderAvailable,
			fmt.Sprintf("no provider bound to model %s for route %s", cmd.Model, cmd.Path))
	}
	return bound[0], nil
}

// invoke runs the fetch callable on its own goroutine so a caller timeout
// can abort at the fetch boundary. No registry or journal lock is held
// here. A panicking callable is caught and surfaced as an upstream failure,
// never a crash.
func (d *Dispatcher) invoke(ctx context.Context, timeout time.Duration, fn func(context.Context) (*registry.FetchResult, error)) (*registry.FetchResult, *registry.Error) {
	if timeout <= 0 {
		timeout = d.config.DefaultTimeout
	}
	fctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		res *registry.FetchResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- outcome{err: fmt.Errorf("provider panicked: %v", p)}
			}
		}()
		res, err := fn(fctx)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			var structured *registry.Error
			if errors.As(out.err, &structured) {
				return nil, structured
			}
			return nil, registry.NewError(registry.CodeUpstreamFailure, out.err.Error())
		}
		if out.res == nil {
			return &registry.FetchResult{}, nil
		}
		return out.res, nil
	case <-fctx.Done():
		if errors.Is(fctx.Err(), context.DeadlineExceeded) {
			return nil, registry.NewError(registry.CodeTimeout,
				fmt.Sprintf("provider fetch timed out after %s", timeout))
		}
		return nil, registry.NewError(registry.CodeTimeout, "dispatch canceled before completion")
	}
}

// mapRecords converts provider-native field names to standard result field
// names via the binding's map. Native fields without a mapping pass through
// when they already match a standard result field; everything else is
// dropped.
func mapRecords(binding *registry.Binding, model *registry.StandardModel, records []registry.Record) []registry.Record {
	if len(records) == 0 {
		return records
	}
	mapped := make([]registry.Record, 0, len(records))
	for _, rec := range records {
		out := make(registry.Record, len(rec))
		for native, v := range rec {
			std, hasMapping := binding.ResultFieldMap[native]
			switch {
			case hasMapping && std != "":
				out[std] = v
			case hasMapping:
				// Mapped to empty: dropped on purpose.
			default:
				if _, ok := model.ResultField(native); ok {
					out[native] = v
				}
			}
		}
		mapped = append(mapped, out)
	}
	return mapped
}

// record appends the journal entry and publishes the completion event.
// Entry order reflects completion order; duration covers the whole dispatch
// including a timeout that fired.
func (d *Dispatcher) record(ctx context.Context, req *Request, cmd *router.Command, env *Envelope, start time.Time) string {
	duration := time.Since(start)
	path := req.Path
	if cmd != nil {
		path = cmd.Path
	}

	entry := &journal.Entry{
		ID:        newID(),
		Path:      path,
		Provider:  env.Provider,
		Args:      journalArgs(req),
		StartedAt: start,
		Duration:  duration,
		Output:    env,
	}
	if req.Options.Alias != "" {
		entry.Aliases = []string{req.Options.Alias}
	}
	d.journal.Append(ctx, entry)

	event := &events.DispatchCompletedEvent{
		ID:         entry.ID,
		Path:       path,
		Provider:   env.Provider,
		Success:    env.Success(),
		Warnings:   len(env.Warnings),
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if env.Error != nil {
		event.ErrorCode = env.Error.Code
	}
	if err := d.publisher.PublishCompleted(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish completion event for %s: %v", logPrefix, path, err))
	}
	return entry.ID
}

func journalArgs(req *Request) map[string]interface{} {
	args := make(map[string]interface{}, 4)
	if req.Provider != "" {
		args["provider"] = req.Provider
	}
	if len(req.Params) > 0 {
		args["params"] = req.Params
	}
	if len(req.Extra) > 0 {
		args["extra"] = req.Extra
	}
	if req.Options.Chart {
		args["chart"] = true
	}
	return args
}

// newID returns a time-ordered unique identifier.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
