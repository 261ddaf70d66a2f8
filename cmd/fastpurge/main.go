package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fastpurge/internal/client"
	"fastpurge/internal/config"
)

func main() {
	var (
		edgercPath  = flag.String("edgerc", "", "path to .edgerc credentials file (default ~/.edgerc)")
		objectType  = flag.String("type", "url", "object type: url, tag or cpcode")
		network     = flag.String("network", "", "target network (default from config: production)")
		purgeType   = flag.String("purge-type", "", "delete or invalidate (default from config: delete)")
		objectsFile = flag.String("objects-file", "", "file with one purge object per line (default: objects from args)")
		every       = flag.String("every", "", "cron expression; re-issue the purge on this schedule instead of once")
		timeout     = flag.Duration("timeout", 10*time.Minute, "overall timeout for a one-shot purge")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	if !*debug {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	objects, err := loadObjects(*objectsFile, flag.Args(), *objectType)
	if err != nil {
		log.Fatal().Err(err).Msg("load purge objects")
	}
	if len(objects) == 0 {
		log.Fatal().Msg("no purge objects given; pass them as arguments or via -objects-file")
	}

	c, err := client.NewFromEdgeRc(config.Default(), *edgercPath, log.Logger, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("create purge client")
	}
	defer c.Close()

	var opts []client.PurgeOption
	if *network != "" {
		opts = append(opts, client.WithNetwork(*network))
	}
	if *purgeType != "" {
		opts = append(opts, client.WithPurgeType(*purgeType))
	}

	run := func(ctx context.Context) error {
		agg, err := c.PurgeObjects(ctx, *objectType, objects, opts...)
		if err != nil {
			return err
		}
		results, err := agg.Get(ctx)
		if err != nil {
			return err
		}
		log.Info().
			Int("objects", len(objects)).
			Int("requests", len(results)).
			Msg("purge complete")
		return nil
	}

	if *every == "" {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if err := run(ctx); err != nil {
			log.Fatal().Err(err).Msg("purge failed")
		}
		return
	}

	if _, err := cron.ParseStandard(*every); err != nil {
		log.Fatal().Err(err).Str("cron_expr", *every).Msg("invalid cron expression")
	}

	// Recurring mode: a scheduled purge is a standing intent, so a failed
	// run is logged and the schedule keeps going.
	sched := cron.New()
	_, _ = sched.AddFunc(*every, func() {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if err := run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled purge failed")
		}
	})
	sched.Start()
	log.Info().Str("cron_expr", *every).Int("objects", len(objects)).Msg("recurring purge scheduled")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")
	<-sched.Stop().Done()
}

// loadObjects reads purge objects from a file (one per line, blank lines
// and #-comments skipped) or from args. cpcodes are sent as integers.
func loadObjects(path string, args []string, objectType string) ([]any, error) {
	raw := args
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		raw = nil
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	objects := make([]any, 0, len(raw))
	for _, r := range raw {
		if objectType == "cpcode" {
			code, err := strconv.Atoi(r)
			if err != nil {
				return nil, err
			}
			objects = append(objects, code)
			continue
		}
		objects = append(objects, r)
	}
	return objects, nil
}
