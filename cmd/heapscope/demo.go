package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/heapscope/heapscope"
	"github.com/heapscope/heapscope/profile"
	"github.com/heapscope/heapscope/render"
	"github.com/heapscope/heapscope/typetab"

	"github.com/heapscope/heapscope/internal/profilestore"
)

func newDemoCmd(cfg *serviceConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Profile a synthetic interpreter workload and print the result",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDemo(cfg)
		},
	}
}

func runDemo(cfg *serviceConfig) error {
	format, err := render.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	rt := newToyRuntime(cfg.Seed)
	session, err := heapscope.StartProfile(heapscope.Config{
		SkipEvery:   cfg.SkipEvery,
		SampleRate:  cfg.SampleRate,
		Seed:        cfg.Seed,
		TrackFrees:  cfg.TrackFrees,
		Walker:      rt,
		DebugTable:  rt,
		TypePrinter: rt,
		TypeTags:    typetab.Tags{},
	})
	if err != nil {
		return errors.Wrap(err, "starting profile")
	}

	rt.run(cfg.Iterations)

	result := session.Stop()
	log.Info().
		Str("profile_id", result.ID).
		Uint64("offered", result.AllocsOffered).
		Uint64("recorded", result.AllocsRecorded).
		Uint64("cache_hits", result.CacheStats.Hits).
		Msg("profile complete")

	if cfg.ArchiveDir != "" {
		if err := archiveProfile(cfg.ArchiveDir, result); err != nil {
			return err
		}
	}

	defer heapscope.FreeProfile()
	return render.Write(os.Stdout, result, format)
}

func archiveProfile(dir string, p *profile.Profile) error {
	store, err := profilestore.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	w, err := store.Put(p.ID)
	if err != nil {
		return errors.Wrap(err, "archiving profile")
	}
	if err := render.WriteJSON(w, p); err != nil {
		w.Close()
		return errors.Wrap(err, "serializing profile")
	}
	if err := w.Close(); err != nil {
		return err
	}
	// Reclaim value-log space left behind by overwritten archives.
	store.GC()
	log.Info().Str("profile_id", p.ID).Str("dir", dir).Msg("profile archived")
	return nil
}
