// Command geocode resolves locations from the command line through the same
// caching geocoder the service uses. By default results are cached on disk
// under ~/.cache/geocode.
//
// Usage:
//
//	geocode [--provider google|mapbox] [--backend file|memory|postgres|redis] LOCATION...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/geocode-cache-service/internal/app"
	"github.com/couchcryptid/geocode-cache-service/internal/config"
	"github.com/couchcryptid/geocode-cache-service/internal/domain"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "geocode",
		Usage:     "resolve locations to coordinates through a local cache",
		ArgsUsage: "LOCATION...",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "geocoding provider (google, mapbox)",
				Value:   config.ProviderGoogle,
				Sources: cli.EnvVars("GEOCODER_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "google-key",
				Usage:   "Google Geocoding API key",
				Sources: cli.EnvVars("GOOGLE_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "mapbox-token",
				Usage:   "Mapbox access token",
				Sources: cli.EnvVars("MAPBOX_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "override the provider endpoint",
				Hidden:  true,
				Sources: cli.EnvVars("GEOCODER_BASE_URL"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "provider request timeout",
				Value:   5 * time.Second,
				Sources: cli.EnvVars("GEOCODER_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "cache backend (file, memory, postgres, redis)",
				Value:   config.CacheFile,
				Sources: cli.EnvVars("CACHE_BACKEND"),
			},
			&cli.StringFlag{
				Name:    "cache-dir",
				Usage:   "directory for the file backend (default ~/.cache/geocode)",
				Sources: cli.EnvVars("CACHE_DIR"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "connection string for the postgres backend",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "address for the redis backend",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print one JSON response per line",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log cache and provider activity to stderr",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return errors.New("at least one LOCATION is required")
	}

	cfg := &config.Config{
		Provider:        cmd.String("provider"),
		GoogleAPIKey:    cmd.String("google-key"),
		MapboxToken:     cmd.String("mapbox-token"),
		GeocoderBaseURL: cmd.String("base-url"),
		GeocoderTimeout: cmd.Duration("timeout"),
		CacheBackend:    cmd.String("backend"),
		CacheMemorySize: 1000,
		CacheDir:        cmd.String("cache-dir"),
		DatabaseURL:     cmd.String("database-url"),
		RedisAddr:       cmd.String("redis-addr"),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrWriter, &slog.HandlerOptions{Level: level}))

	geocoder, closeCache, err := app.NewGeocoder(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	asJSON := cmd.Bool("json")
	enc := json.NewEncoder(cmd.Writer)
	failed := 0
	for _, location := range cmd.Args().Slice() {
		outcome, err := geocoder.Geocode(ctx, location)
		if err != nil {
			return fmt.Errorf("geocode %q: %w", location, err)
		}
		if _, ok := outcome.(domain.ErrorResult); ok {
			failed++
		}
		if asJSON {
			if err := enc.Encode(domain.NewResponse(location, outcome)); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(cmd.Writer, "%s\t%s%s\n", location, outcome, provenance(outcome))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d locations could not be geocoded", failed, cmd.NArg())
	}
	return nil
}

func provenance(o domain.Outcome) string {
	c, ok := o.(domain.Coordinates)
	switch {
	case !ok:
		return ""
	case c.FromCache():
		return "\t(cached)"
	case c.Cached():
		return "\t(fetched)"
	default:
		return "\t(fetched, not cached)"
	}
}
