package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/betledger/config"
	"github.com/alejandrodnm/betledger/internal/adapters/storage"
	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/ports"
	"github.com/alejandrodnm/betledger/internal/registry"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	list := flag.Bool("list", false, "print the market table")
	market := flag.String("market", "", "print one market by slug")
	stake := flag.String("stake", "", "print a position, format slug:participant")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx := context.Background()
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "driver", cfg.Storage.Driver, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	reg := registry.New(store)

	switch {
	case *list:
		if err := printMarkets(ctx, reg, store); err != nil {
			slog.Error("list failed", "err", err)
			os.Exit(1)
		}
	case *market != "":
		if err := printMarket(ctx, reg, *market); err != nil {
			slog.Error("market lookup failed", "err", err, "slug", *market)
			os.Exit(1)
		}
	case *stake != "":
		if err := printStake(ctx, reg, store, *stake); err != nil {
			slog.Error("stake lookup failed", "err", err, "arg", *stake)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// openStore abre el StateStore configurado. El driver memory no tiene
// sentido para inspección (no hay nada que leer) y se rechaza.
func openStore(ctx context.Context, cfg config.StorageConfig) (ports.StateStore, error) {
	switch cfg.Driver {
	case "sqlite":
		return storage.NewSQLite(cfg.DSN)
	case "postgres":
		return storage.NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver for inspection: %q", cfg.Driver)
	}
}

func printMarkets(ctx context.Context, reg *registry.Registry, store ports.StateStore) error {
	n, err := reg.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("no markets")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Market", "Yes pool", "No pool", "Status", "Deadline")
	for i := 0; i < n; i++ {
		_, slug, err := reg.ByIndex(ctx, i)
		if err != nil {
			return err
		}
		mkt, err := reg.Lookup(ctx, slug)
		if err != nil {
			return err
		}
		deadline := "-"
		if mkt.HasDeadline() {
			deadline = mkt.Deadline.Format("2006-01-02 15:04")
		}
		table.Append(
			fmt.Sprintf("%d", i),
			slug,
			fmt.Sprintf("%d", mkt.TotalYes),
			fmt.Sprintf("%d", mkt.TotalNo),
			mkt.Status(),
			deadline,
		)
	}
	table.Render()

	out, err := store.Outstanding(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("markets: %d  outstanding: %d\n", n, out)
	return nil
}

func printMarket(ctx context.Context, reg *registry.Registry, slug string) error {
	mkt, err := reg.Lookup(ctx, slug)
	if err != nil {
		return err
	}
	fmt.Printf("market:   %s\n", slug)
	fmt.Printf("key:      %s\n", domain.NewMarketKey(slug).Hex())
	fmt.Printf("status:   %s\n", mkt.Status())
	fmt.Printf("yes pool: %d\n", mkt.TotalYes)
	fmt.Printf("no pool:  %d\n", mkt.TotalNo)
	if mkt.HasDeadline() {
		fmt.Printf("deadline: %s\n", mkt.Deadline.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printStake(ctx context.Context, reg *registry.Registry, store ports.StateStore, arg string) error {
	slug, participant, ok := strings.Cut(arg, ":")
	if !ok || slug == "" || participant == "" {
		return fmt.Errorf("want slug:participant, got %q", arg)
	}
	key, err := reg.Key(slug)
	if err != nil {
		return err
	}
	st, found, err := store.Stake(ctx, key, domain.Participant(participant))
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("no position")
		return nil
	}
	fmt.Printf("market:      %s\n", slug)
	fmt.Printf("participant: %s\n", participant)
	fmt.Printf("yes:         %d\n", st.AmountYes)
	fmt.Printf("no:          %d\n", st.AmountNo)
	fmt.Printf("claimed:     %v\n", st.Claimed)
	return nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
