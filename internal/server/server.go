// Package server orchestrates all components: config, extension loading,
// dispatcher, journal, archive, events, and the COMMS message surface. It
// contains no dispatch logic of its own; every request is delegated to the
// core dispatch, coverage, and journal APIs.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/quantdesk/command-registry/internal/config"
	"github.com/quantdesk/command-registry/pkg/commsutil"
	"github.com/quantdesk/command-registry/pkg/coverage"
	"github.com/quantdesk/command-registry/pkg/db"
	"github.com/quantdesk/command-registry/pkg/dispatcher"
	"github.com/quantdesk/command-registry/pkg/events"
	"github.com/quantdesk/command-registry/pkg/extensions/stocks"
	"github.com/quantdesk/command-registry/pkg/journal"
	"github.com/quantdesk/command-registry/pkg/loader"
	"github.com/quantdesk/command-registry/pkg/providers/fmp"
	"github.com/quantdesk/command-registry/pkg/providers/polygon"
	"github.com/quantdesk/command-registry/pkg/registry"
)

const logPrefix = "server:server"

// HubRequest is the JSON envelope for incoming COMMS hub requests.
type HubRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// HubResponse is the JSON envelope for COMMS hub responses.
type HubResponse struct {
	ID     string          `json:"id"`
	Ok     bool            `json:"ok"`
	Result interface{}     `json:"result,omitempty"`
	Error  *registry.Error `json:"error,omitempty"`
}

// DispatchParams is the wire form of one dispatch request.
type DispatchParams struct {
	Path      string                 `json:"path"`
	Provider  string                 `json:"provider,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Chart     bool                   `json:"chart,omitempty"`
	TimeoutMs int                    `json:"timeoutMs,omitempty"`
	Alias     string                 `json:"alias,omitempty"`
}

// HistoryParams selects journal entries: by id, by alias, or the most
// recent n.
type HistoryParams struct {
	ID    string `json:"id,omitempty"`
	Alias string `json:"alias,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Server is the command-registry hub orchestrator.
type Server struct {
	cfg  *config.Config
	nc   *comms.Conn
	pool *pgxpool.Pool
	disp *dispatcher.Dispatcher
	cov  *coverage.Index
	jrnl *journal.Journal
}

// BuildRegistries loads the builtin extensions against a fresh registry set
// and seals it. Provider clients receive their API keys from config.
func BuildRegistries(cfg *config.Config) (*loader.Registries, *loader.Report) {
	fmpClient := fmp.NewClient()
	fmpClient.APIKey = cfg.FMPAPIKey
	polygonClient := polygon.NewClient()
	polygonClient.APIKey = cfg.PolygonAPIKey

	regs := loader.NewRegistries()
	report := loader.Load(regs, []loader.Extension{
		stocks.Extension(),
		fmp.Extension(fmpClient),
		polygon.Extension(polygonClient),
	})
	return regs, report
}

// NewServer assembles a hub Server over loaded registries. Run wires the
// production collaborators around it; tests inject their own journal and
// publisher. A nil journal gets a fresh one at the configured capacity.
func NewServer(cfg *config.Config, regs *loader.Registries, jrnl *journal.Journal, publisher events.EventPublisher) *Server {
	if jrnl == nil {
		jrnl = journal.New(journal.WithCapacity(cfg.JournalCapacity))
	}
	disp := dispatcher.New(dispatcher.Params{
		Models:    regs.Models,
		Providers: regs.Providers,
		Router:    regs.Router,
		Journal:   jrnl,
		Defaults:  dispatcher.MapDefaults(cfg.DefaultProviders),
		Publisher: publisher,
		Config: dispatcher.Config{
			StrictParams:   cfg.StrictParams,
			DefaultTimeout: cfg.RequestTimeout,
		},
	})
	return &Server{
		cfg:  cfg,
		disp: disp,
		cov:  coverage.NewIndex(regs.Router, regs.Providers),
		jrnl: jrnl,
	}
}

// Run starts the hub, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting command-registry hub", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Journal, with optional postgres archive
	var pool *pgxpool.Pool
	journalOpts := []journal.Option{journal.WithCapacity(cfg.JournalCapacity)}
	if cfg.ArchiveJournal {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		archive := db.NewJournalArchive(pool)
		if err := archive.EnsureSchema(ctx); err != nil {
			pool.Close()
			return err
		}
		journalOpts = append(journalOpts, journal.WithArchiver(archive))
	}
	jrnl := journal.New(journalOpts...)

	// Extension load phase: single-threaded, sealed before serving.
	regs, report := BuildRegistries(cfg)
	for name, reason := range report.Skipped {
		slog.Warn(fmt.Sprintf("%s - extension %s skipped: %s", logPrefix, name, reason))
	}

	// COMMS connection and event publisher
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return err
	}
	publisher := events.NewCommsPublisher(nc, &events.CommsPublisherOpts{
		GlobalCompletedSubject: cfg.CompletedEventSubject,
	})

	s := NewServer(cfg, regs, jrnl, publisher)
	s.nc = nc
	s.pool = pool

	subject := cfg.DispatchSubject
	if subject == "" {
		subject = commsutil.SubjectDispatch
	}
	// Drain on shutdown tears the subscription down after in-flight
	// handlers finish, so no explicit unsubscribe is needed.
	_, err = nc.QueueSubscribe(subject, cfg.COMMSName, func(msg *comms.Msg) {
		resp := s.Handle(ctx, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(resp); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond: %v", logPrefix, err))
		}
	})
	if err != nil {
		s.close()
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
	}

	slog.Info(fmt.Sprintf("%s - Serving on subject %s", logPrefix, subject))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info(fmt.Sprintf("%s - Shutdown signal received", logPrefix))

	s.close()
	return nil
}

func (s *Server) close() {
	commsutil.Drain(s.nc)
	if s.pool != nil {
		s.pool.Close()
	}
}

// Handle decodes one wire request, delegates to the core APIs, and encodes
// the response. It never returns malformed JSON: encode failures degrade to
// a static internal-error payload.
func (s *Server) Handle(ctx context.Context, data []byte) []byte {
	var req HubRequest
	if err := commsutil.DecodePayload(data, &req); err != nil {
		return encodeResponse(&HubResponse{
			Ok:    false,
			Error: registry.NewError(registry.CodeInternal, "failed to parse request envelope"),
		})
	}

	switch req.Method {
	case "dispatch":
		return encodeResponse(s.handleDispatch(ctx, &req))
	case "coverage":
		return encodeResponse(s.handleCoverage(&req))
	case "history":
		return encodeResponse(s.handleHistory(&req))
	default:
		return encodeResponse(&HubResponse{
			ID: req.ID,
			Ok: false,
			Error: registry.NewError(registry.CodeNotFound,
				fmt.Sprintf("unknown method: %s", req.Method)),
		})
	}
}

func (s *Server) handleDispatch(ctx context.Context, req *HubRequest) *HubResponse {
	var params DispatchParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &HubResponse{
			ID:    req.ID,
			Ok:    false,
			Error: registry.NewError(registry.CodeInternal, "failed to parse dispatch params"),
		}
	}

	env, journalID := s.disp.Dispatch(ctx, &dispatcher.Request{
		Path:     params.Path,
		Provider: params.Provider,
		Params:   params.Params,
		Extra:    params.Extra,
		Options: dispatcher.Options{
			Chart:   params.Chart,
			Timeout: time.Duration(params.TimeoutMs) * time.Millisecond,
			Alias:   params.Alias,
		},
	})

	return &HubResponse{
		ID: req.ID,
		Ok: env.Success(),
		Result: map[string]interface{}{
			"envelope":  env,
			"journalId": journalID,
		},
		Error: env.Error,
	}
}

func (s *Server) handleCoverage(req *HubRequest) *HubResponse {
	return &HubResponse{
		ID: req.ID,
		Ok: true,
		Result: map[string]interface{}{
			"commandsByProvider": s.cov.CommandsByProvider(),
			"providersByCommand": s.cov.ProvidersByCommand(),
		},
	}
}

func (s *Server) handleHistory(req *HubRequest) *HubResponse {
	var params HistoryParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return &HubResponse{
				ID:    req.ID,
				Ok:    false,
				Error: registry.NewError(registry.CodeInternal, "failed to parse history params"),
			}
		}
	}

	switch {
	case params.ID != "":
		entry, err := s.jrnl.Find(params.ID)
		if err != nil {
			return &HubResponse{ID: req.ID, Ok: false, Error: err}
		}
		return &HubResponse{ID: req.ID, Ok: true, Result: entry}
	case params.Alias != "":
		entry, err := s.jrnl.FindByAlias(params.Alias)
		if err != nil {
			return &HubResponse{ID: req.ID, Ok: false, Error: err}
		}
		return &HubResponse{ID: req.ID, Ok: true, Result: entry}
	default:
		return &HubResponse{ID: req.ID, Ok: true, Result: s.jrnl.ListRecent(params.Limit)}
	}
}

func encodeResponse(resp *HubResponse) []byte {
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		return []byte(`{"ok":false,"error":{"code":"INTERNAL_ERROR","message":"failed to encode response"}}`)
	}
	return data
}
