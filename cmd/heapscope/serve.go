package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/heapscope/heapscope"
	"github.com/heapscope/heapscope/render"
	"github.com/heapscope/heapscope/typetab"
)

func newServeCmd(cfg *serviceConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the synthetic workload continuously and serve snapshots over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(cfg)
		},
	}
}

type server struct {
	cfg     *serviceConfig
	session *heapscope.Session
}

func runServe(cfg *serviceConfig) error {
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
		return err
	}
	defer heapscope.FreeProfile()

	workloadDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-workloadDone:
				return
			case <-ticker.C:
				rt.run(cfg.Iterations / 16)
			}
		}
	}()

	srv := &server{cfg: cfg, session: session}
	router, err := srv.newRouter()
	if err != nil {
		return err
	}

	httpServer := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		close(workloadDone)
		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(cctx); err != nil {
			log.Err(err).Msg("error shutting down server")
		}
		close(waitForShutdown)
	}()

	log.Info().Str("port", cfg.Port).Msg("serving profile snapshots")
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("server failed")
		return err
	}
	<-waitForShutdown
	return nil
}

func (s *server) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", s.getHealth},
		{http.MethodGet, "/profile", s.getProfile},
	}

	router := httprouter.New()
	for _, route := range routes {
		router.Handler(route.method, route.path, compress(route.handler))
	}
	return router, nil
}

func (s *server) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) getProfile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = s.cfg.Format
	}
	format, err := render.ParseFormat(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snapshot := s.session.Snapshot()
	w.Header().Set("Content-Type", contentType(format))
	if err := render.Write(w, snapshot, format); err != nil {
		log.Err(err).Msg("error writing profile")
	}
}

func contentType(format render.Format) string {
	switch format {
	case render.FormatJSON:
		return "application/json"
	case render.FormatCSV:
		return "text/csv"
	case render.FormatDOT:
		return "text/vnd.graphviz"
	}
	return "text/plain; charset=utf-8"
}
