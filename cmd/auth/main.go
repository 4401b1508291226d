// Command auth manages the API keys crawlers use against the ingestion
// service.
//
// Usage:
//
//	auth [-config configs/development.yaml] create -name campus-crawler [-rate-limit 60] [-expires-in 720h]
//	auth revoke -id <key-id>
//	auth list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Usage = printUsage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("auth", cfg.Logging.Level, cfg.Logging.Format)

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("failed to prepare schema", "error", err)
		os.Exit(1)
	}
	store := apikey.NewStore(db)

	switch args[0] {
	case "create":
		err = cmdCreate(ctx, store, args[1:])
	case "revoke":
		err = cmdRevoke(ctx, store, args[1:])
	case "list":
		err = cmdList(ctx, store)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", args[0], err)
		os.Exit(1)
	}
}

func cmdCreate(ctx context.Context, store *apikey.Store, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "name of the crawler the key is for")
	rateLimit := fs.Int("rate-limit", 60, "ingestion requests per rate-limit window, 0 for unlimited")
	expiresIn := fs.Duration("expires-in", 0, "key lifetime, e.g. 720h; 0 never expires")
	fs.Parse(args)

	if *name == "" {
		return errors.New("-name is required")
	}
	raw, key, err := store.Create(ctx, *name, *rateLimit, *expiresIn)
	if err != nil {
		return err
	}

	fmt.Println("Crawler key created. It is shown only once; store it securely.")
	fmt.Println()
	fmt.Printf("  Key:        %s\n", raw)
	fmt.Printf("  ID:         %s\n", key.ID)
	fmt.Printf("  Name:       %s\n", key.Name)
	fmt.Printf("  Rate limit: %s\n", describeLimit(key.RateLimit))
	fmt.Printf("  Expires:    %s\n", describeExpiry(key.ExpiresAt))
	return nil
}

func cmdRevoke(ctx context.Context, store *apikey.Store, args []string) error {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	id := fs.String("id", "", "id of the key to revoke")
	fs.Parse(args)

	if *id == "" {
		return errors.New("-id is required")
	}
	if err := store.Revoke(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("Crawler key %s revoked.\n", *id)
	return nil
}

func cmdList(ctx context.Context, store *apikey.Store) error {
	keys, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No active crawler keys.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRATE LIMIT\tCREATED\tEXPIRES")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			k.ID, k.Name, describeLimit(k.RateLimit), k.CreatedAt.Format(time.RFC3339), describeExpiry(k.ExpiresAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d active key(s)\n", len(keys))
	return nil
}

func describeLimit(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d per window", n)
}

func describeExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: auth [-config path] <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  create   Create a crawler key")
	fmt.Fprintln(os.Stderr, "  revoke   Revoke a crawler key by id")
	fmt.Fprintln(os.Stderr, "  list     List active crawler keys")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Examples:")
	fmt.Fprintln(os.Stderr, `  auth create -name campus-crawler -rate-limit 60 -expires-in 720h`)
	fmt.Fprintln(os.Stderr, `  auth revoke -id 6f1c...`)
	fmt.Fprintln(os.Stderr, `  auth list`)
}
