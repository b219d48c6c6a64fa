// Copyright 2025 Hearsay Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hearsaylabs/hearsay/ai"
	"github.com/hearsaylabs/hearsay/ai/openai"
	"github.com/hearsaylabs/hearsay/backfill"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/ingestion"
	"github.com/hearsaylabs/hearsay/reembed"
	"github.com/hearsaylabs/hearsay/retrieval"
	"github.com/hearsaylabs/hearsay/storage"
	badgerstore "github.com/hearsaylabs/hearsay/storage/badger"
	"github.com/hearsaylabs/hearsay/storage/sqlite"
)

var storeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "data-dir",
		Aliases:  []string{"d"},
		Usage:    "Path to the metadata database directory",
		Required: true,
	},
	&cli.StringFlag{
		Name:     "content-dir",
		Aliases:  []string{"c"},
		Usage:    "Path to the content store directory",
		Required: true,
	},
}

var embeddingFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "embedding-host",
		Usage: "Embedding service host URL",
		Value: "http://localhost:11434/v1",
	},
	&cli.StringFlag{
		Name:     "embedding-model",
		Usage:    "Embedding model name",
		Required: true,
	},
	&cli.StringFlag{
		Name:    "api-key",
		Usage:   "Embedding service API key",
		Value:   "none",
		EnvVars: []string{"HEARSAY_API_KEY"},
	},
}

func main() {
	app := &cli.App{
		Name:  "hearsay",
		Usage: "Workspace chat ingestion and retrieval engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "add-tenant",
				Usage:  "Register a workspace tenant",
				Action: addTenantCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Tenant id", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "token", Usage: "Installation credential", Required: true},
				}, storeFlags...),
			},
			{
				Name:   "list-tenants",
				Usage:  "List registered tenants",
				Action: listTenantsCommand,
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "active-only", Usage: "Only active tenants"},
				}, storeFlags...),
			},
			{
				Name:   "disable-tenant",
				Usage:  "Disable a tenant and deactivate its schedule",
				Action: disableTenantCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Tenant id", Required: true},
				}, storeFlags...),
			},
			{
				Name:   "purge-tenant",
				Usage:  "Hard delete a tenant's messages and content collection",
				Action: purgeTenantCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Tenant id", Required: true},
				}, storeFlags...),
			},
			{
				Name:   "set-schedule",
				Usage:  "Create or replace a tenant's recurring sync",
				Action: setScheduleCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Tenant id", Required: true},
					&cli.StringFlag{Name: "cron", Usage: "Cron expression (5 fields)", Required: true},
					&cli.IntFlag{Name: "lookback-days", Usage: "History window in days", Value: 7},
				}, storeFlags...),
			},
			{
				Name:   "jobs",
				Usage:  "Show a tenant's sync job history",
				Action: jobsCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Tenant id", Required: true},
					&cli.StringFlag{Name: "status", Usage: "Filter by status"},
					&cli.IntFlag{Name: "limit", Usage: "Rows to show", Value: 20},
				}, storeFlags...),
			},
			{
				Name:   "query",
				Usage:  "Run a similarity query against a tenant's data",
				Action: queryCommand,
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Tenant id", Required: true},
					&cli.StringFlag{Name: "channel", Usage: "Restrict to one channel"},
					&cli.IntFlag{Name: "limit", Usage: "Max results", Value: 0},
				}, storeFlags...), embeddingFlags...),
			},
			{
				Name:   "repair",
				Usage:  "Relink content-pending rows whose content write landed",
				Action: repairCommand,
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Tenant id", Required: true},
					&cli.IntFlag{Name: "limit", Usage: "Rows to inspect", Value: 500},
				}, storeFlags...), embeddingFlags...),
			},
			{
				Name:   "reembed",
				Usage:  "Rebuild a tenant's content vectors with a new embedding model",
				Action: reembedCommand,
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Tenant id", Required: true},
					&cli.IntFlag{Name: "batch-size", Usage: "Entries per embedding call", Value: 100},
				}, storeFlags...), embeddingFlags...),
			},
			{
				Name:   "activity",
				Usage:  "Show channel activity and top authors",
				Action: activityCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Tenant id", Required: true},
					&cli.IntFlag{Name: "days", Usage: "Window in days", Value: 30},
					&cli.IntFlag{Name: "top", Usage: "Top authors to show", Value: 10},
				}, storeFlags...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openStores opens the metadata database and the content store from the
// shared store flags.
func openStores(c *cli.Context) (*sqlite.Store, storage.ContentStore, error) {
	store, err := sqlite.Open(c.String("data-dir"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metadata database: %w", err)
	}

	content, err := badgerstore.Open(c.String("content-dir"))
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to open content store: %w", err)
	}
	return store, content, nil
}

func newEmbedder(c *cli.Context) (ai.Embedder, error) {
	cfg := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithAPIKey(c.String("api-key")),
	)
	return openai.NewEmbedder(cfg)
}

func addTenantCommand(c *cli.Context) error {
	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	tenant := &core.Tenant{
		ID:   c.String("tenant"),
		Name: c.String("name"),
		Credential: core.Credential{
			Format: core.CredentialPlain,
			Blob:   []byte(c.String("token")),
		},
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateTenant(c.Context, tenant); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Tenant %s registered\n", tenant.ID)
	return nil
}

func listTenantsCommand(c *cli.Context) error {
	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	tenants, err := store.ListTenants(c.Context, c.Bool("active-only"))
	if err != nil {
		return err
	}

	for _, t := range tenants {
		size, err := content.CollectionSize(c.Context, t.ID)
		if err != nil {
			return err
		}
		state := "active"
		if !t.Active {
			state = "disabled"
		}
		fmt.Printf("%-24s %-32s %-8s entries=%d\n", t.ID, t.Name, state, size)
	}
	return nil
}

func disableTenantCommand(c *cli.Context) error {
	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	tenantID := c.String("tenant")
	if err := store.DisableTenant(c.Context, tenantID); err != nil {
		return fmt.Errorf("failed to disable tenant: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Tenant %s disabled; data retained until purged\n", tenantID)
	return nil
}

func purgeTenantCommand(c *cli.Context) error {
	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	tenantID := c.String("tenant")
	deleted, err := store.DeleteTenantMessages(c.Context, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete metadata rows: %w", err)
	}
	if err := content.DropCollection(c.Context, tenantID); err != nil {
		return fmt.Errorf("failed to drop content collection: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Purged %d metadata rows and the content collection for %s\n", deleted, tenantID)
	return nil
}

func setScheduleCommand(c *cli.Context) error {
	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	// Persist only; arming happens in whatever process runs an
	// orchestrator with this store.
	cronExpr := c.String("cron")
	if err := backfill.ValidateCron(cronExpr); err != nil {
		return err
	}
	lookback := c.Int("lookback-days")
	if lookback <= 0 {
		return backfill.ErrInvalidLookback
	}
	err = store.UpsertSchedule(c.Context, c.String("tenant"), &core.Schedule{
		TenantID:     c.String("tenant"),
		CronExpr:     cronExpr,
		LookbackDays: lookback,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to set schedule: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Schedule %q saved for %s\n", c.String("cron"), c.String("tenant"))
	return nil
}

func jobsCommand(c *cli.Context) error {
	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	jobs, err := store.ListJobs(c.Context, c.String("tenant"), storage.JobFilter{
		Status: core.JobStatus(c.String("status")),
		Limit:  c.Int("limit"),
	})
	if err != nil {
		return err
	}

	for _, j := range jobs {
		fmt.Printf("%-36s %-10s %-9s messages=%-6d channels=%d/%d errors=%d\n",
			j.ID, j.Trigger, j.Status,
			j.MessagesCollected, j.ChannelsProcessed, j.ChannelsTotal,
			len(j.ErrorDetail))
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: hearsay query [flags] <text>")
	}
	text := strings.Join(c.Args().Slice(), " ")

	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	embedder, err := newEmbedder(c)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	service, err := retrieval.NewService(store, store, content, embedder)
	if err != nil {
		return err
	}

	resp, err := service.Query(c.Context, c.String("tenant"), text, retrieval.Filters{
		ChannelID: c.String("channel"),
		Limit:     c.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Printf("%s\n\n", resp.Explanation)
	for i, r := range resp.Results {
		fmt.Printf("%2d. [%.2f] #%s %s (%s)\n    %s\n",
			i+1, r.Score, r.Record.ChannelName, r.Record.AuthorName,
			r.Record.CreatedAt.Format(time.RFC3339), r.Text)
	}
	return nil
}

func repairCommand(c *cli.Context) error {
	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	embedder, err := newEmbedder(c)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	pipeline, err := ingestion.NewPipeline(store, content, embedder)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	repaired, err := pipeline.RepairPending(c.Context, c.String("tenant"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Relinked %d rows\n", repaired)
	return nil
}

func reembedCommand(c *cli.Context) error {
	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	embedder, err := newEmbedder(c)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	config := reembed.DefaultConfig()
	config.BatchSize = c.Int("batch-size")

	r, err := reembed.NewReembedder(content, embedder, config, os.Stderr)
	if err != nil {
		return err
	}
	if err := r.Run(c.Context, c.String("tenant")); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func activityCommand(c *cli.Context) error {
	store, content, err := openStores(c)
	if err != nil {
		return err
	}
	defer store.Close()
	defer content.Close()

	tenantID := c.String("tenant")
	since := time.Now().UTC().AddDate(0, 0, -c.Int("days"))

	channels, err := store.ChannelActivity(c.Context, tenantID, since)
	if err != nil {
		return err
	}
	fmt.Println("Channels:")
	for _, ch := range channels {
		fmt.Printf("  #%-24s messages=%-6d authors=%-4d last=%s\n",
			ch.ChannelName, ch.MessageCount, ch.ActiveAuthors,
			ch.LastActivity.Format(time.RFC3339))
	}

	authors, err := store.TopAuthors(c.Context, tenantID, since, c.Int("top"))
	if err != nil {
		return err
	}
	fmt.Println("Top authors:")
	for _, a := range authors {
		fmt.Printf("  %-24s messages=%-6d channels=%d\n",
			a.AuthorName, a.MessageCount, a.ChannelsActive)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
