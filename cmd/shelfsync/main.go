package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/kward/boardshelf"
	"github.com/kward/boardshelf/store"
)

var opts struct {
	Username    string        `short:"u" long:"username" description:"BGG username to sync" required:"true"`
	DatabaseURL string        `short:"d" long:"database-url" description:"Postgres connection string" env:"DATABASE_URL" required:"true"`
	BGGBaseURL  string        `long:"bgg-url" description:"Override the BGG XML API base URL" env:"BGG_BASE_URL"`
	Timeout     time.Duration `short:"t" long:"timeout" description:"Overall sync deadline" default:"10m"`
}

func main() {
	log := boardshelf.NewLogger()

	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	st, err := store.Open(opts.DatabaseURL, log.Desugar())
	if err != nil {
		log.Fatalw("could not open store", "err", err)
	}

	client := boardshelf.NewClient()
	if opts.BGGBaseURL != "" {
		client.BaseURL = opts.BGGBaseURL
	}
	engine := &boardshelf.Engine{Client: client, Store: st}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	existing, err := engine.UserExists(ctx, opts.Username)
	if err != nil {
		log.Fatalw("could not check user", "username", opts.Username, "err", err)
	}

	if err := engine.SyncCollection(ctx, opts.Username, existing); err != nil {
		log.Fatalw("sync failed", "username", opts.Username, "err", err)
	}

	entries, err := engine.FilteredGames(ctx, opts.Username, boardshelf.Filters{IncludeExpansions: true})
	if err != nil {
		log.Fatalw("could not load collection", "username", opts.Username, "err", err)
	}

	stats := boardshelf.ComputeStats(entries)
	fmt.Printf("Synced %s: %d games (%d base, %d expansions)\n",
		opts.Username, stats.Games, stats.BaseGames, stats.Expansions)
}
