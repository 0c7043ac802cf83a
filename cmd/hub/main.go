// Package main is the entrypoint for the command-registry hub (binary name "hub").
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/quantdesk/command-registry/internal/config"
	"github.com/quantdesk/command-registry/internal/server"
	"github.com/quantdesk/command-registry/pkg/coverage"
	"github.com/quantdesk/command-registry/pkg/db"
)

const usage = `Usage: hub [command]
       hub serve               Start the hub (COMMS dispatch, coverage, history API).
       hub coverage            Print the route/provider coverage matrix as JSON.
       hub archive ensure      Create the journal archive schema (requires DATABASE_URL).
       hub archive recent [n]  Print the n most recent archived journal entries (default 20).

Commands:
  serve           (default) Start the command-registry hub.
  coverage        Load the builtin extensions and print coverage without serving.
  archive ensure  Ensure the postgres journal archive schema exists.
  archive recent  List recent archived journal entries.

Environment: COMMS_URL, HUB_DEFAULT_PROVIDERS, HUB_JOURNAL_CAPACITY,
HUB_ARCHIVE_JOURNAL, DATABASE_URL, FMP_API_KEY, POLYGON_API_KEY, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "coverage":
		if err := runCoverage(); err != nil {
			log.Fatalf("hub coverage: %v", err)
		}
		return
	case "archive":
		if len(args) < 2 {
			log.Fatalf("hub archive: require subcommand (ensure, recent)")
		}
		switch args[1] {
		case "ensure":
			if err := runArchiveEnsure(); err != nil {
				log.Fatalf("hub archive ensure: %v", err)
			}
		case "recent":
			n := 20
			if len(args) > 2 {
				parsed, err := strconv.Atoi(args[2])
				if err != nil || parsed <= 0 {
					log.Fatalf("hub archive recent: invalid count %q", args[2])
				}
				n = parsed
			}
			if err := runArchiveRecent(n); err != nil {
				log.Fatalf("hub archive recent: %v", err)
			}
		default:
			log.Fatalf("hub archive: unknown subcommand %q (use ensure, recent)", args[1])
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "", "serve":
		if err := server.Run(); err != nil {
			log.Fatalf("hub serve: %v", err)
		}
		return
	default:
		fmt.Print(usage)
		log.Fatalf("hub: unknown command %q", cmd)
	}
}

func runCoverage() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	regs, report := server.BuildRegistries(cfg)
	ix := coverage.NewIndex(regs.Router, regs.Providers)

	out := map[string]interface{}{
		"commandsByProvider": ix.CommandsByProvider(),
		"providersByCommand": ix.ProvidersByCommand(),
	}
	if len(report.Skipped) > 0 {
		out["skippedExtensions"] = report.Skipped
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func runArchiveEnsure() error {
	archive, pool, err := openArchive()
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return archive.EnsureSchema(ctx)
}

func runArchiveRecent(n int) error {
	archive, pool, err := openArchive()
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	entries, err := archive.RecentEntries(ctx, n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %-24s  provider=%-10s  %dms  %s\n",
			e.StartedAt.Format(time.RFC3339), e.Path, e.Provider, e.DurationMs, e.ID)
	}
	return nil
}

func openArchive() (*db.JournalArchive, interface{ Close() }, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return db.NewJournalArchive(pool), pool, nil
}
