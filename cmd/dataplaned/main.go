// Command dataplaned wires the L2-FIB, policer registry, transport
// endpoint registry, and their read-only introspection surface into a
// single process: the L2-FIB ager, a MAC-event batch logger, a periodic
// metrics reporter and an HTTP server exposing read-only health, dump,
// stats and metrics routes, coordinated by errgroup against a shared
// shutdown context.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ocx/dataplane/internal/config"
	"github.com/ocx/dataplane/internal/endpoint"
	"github.com/ocx/dataplane/internal/events"
	"github.com/ocx/dataplane/internal/l2fib"
	"github.com/ocx/dataplane/internal/metrics"
	"github.com/ocx/dataplane/internal/policer"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, continuing with process environment")
	}

	cfg := config.Get()
	reg := metrics.New()

	bds := l2fib.NewInMemoryBridgeDomains()
	ifaces := l2fib.NewInMemoryInterfaceSeqs()
	fib := l2fib.NewTable(cfg.L2FIB, bds, ifaces)

	macEvents := events.NewChannelClient(uint32(os.Getpid()), 64)
	ager := l2fib.NewAger(fib, cfg.L2FIB, macEvents)

	policers := policer.NewRegistry(1, policer.NoopFeatureToggler{})

	endpoints := endpoint.NewRegistry(cfg.Endpoint.Buckets, cfg.Endpoint.FreelistFlushAt, endpoint.GoRPCScheduler{})
	ports := endpoint.NewPortAllocator(
		endpoints,
		endpoint.NoopFIBResolver{},
		endpoint.NoopInterfaceIPLookup{},
		endpoint.NoopSixTupleLookup{},
		cfg.Endpoint.PortAllocatorMinPort,
		cfg.Endpoint.PortAllocatorMaxPort,
	)

	app := &dataplane{
		cfg:       cfg,
		metrics:   reg,
		fib:       fib,
		policers:  policers,
		endpoints: endpoints,
		ports:     ports,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		ager.Run(gctx)
		return nil
	})

	group.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case batch, ok := <-macEvents.Events():
				if !ok {
					return nil
				}
				slog.Info("l2fib: mac event batch", "request_id", uuid.NewString(), "entries", len(batch))
			}
		}
	})

	group.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				app.reportMetrics()
			}
		}
	})

	server := app.newHTTPServer()
	group.Go(func() error {
		slog.Info("dataplaned listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		slog.Error("dataplaned exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("dataplaned stopped")
}

// dataplane bundles the three registries behind the introspection HTTP
// surface.
type dataplane struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	fib       *l2fib.Table
	policers  *policer.Registry
	endpoints *endpoint.Registry
	ports     *endpoint.PortAllocator
}

// reportMetrics mirrors registry state into the process's Prometheus
// gauges. It runs on its own goroutine rather than on the hot paths that
// mutate the registries, so a slow scrape never stalls the data plane.
func (a *dataplane) reportMetrics() {
	a.metrics.L2FIBLearnCount.Set(float64(a.fib.GlobalLearnCount()))
	a.metrics.EndpointPortsInUse.Set(float64(a.endpoints.PortsInUse()))
	a.metrics.EndpointFreelistDepth.Set(float64(a.endpoints.FreelistDepth()))
}

func (a *dataplane) newHTTPServer() *http.Server {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	router.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/l2fib/dump", a.handleL2FIBDump).Methods(http.MethodGet)
	router.HandleFunc("/l2fib/stats", a.handleL2FIBStats).Methods(http.MethodGet)
	router.HandleFunc("/endpoint/stats", a.handleEndpointStats).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.Server.IdleTimeoutSec) * time.Second,
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}

func (a *dataplane) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (a *dataplane) handleL2FIBDump(w http.ResponseWriter, r *http.Request) {
	entries := a.fib.Dump(nil)
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"mac":        e.Key.MAC().String(),
			"bd_index":   e.Key.BDIndex(),
			"sw_if":      e.Value.SwIfIndex(),
			"flags":      e.Value.Flags().String(),
			"seq":        e.Value.SN(),
			"timestamp":  e.Value.Timestamp(),
		})
	}
	writeJSON(w, out)
}

func (a *dataplane) handleL2FIBStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"entries":           a.fib.NumEntries(),
		"global_learn_count": a.fib.GlobalLearnCount(),
	})
}

func (a *dataplane) handleEndpointStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"ports_in_use":    a.endpoints.PortsInUse(),
		"freelist_depth":  a.endpoints.FreelistDepth(),
		"max_tries_seen":  a.ports.MaxTriesSeen(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
