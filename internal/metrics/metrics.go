// Package metrics exposes line and block counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const namespace = "textcatcher"

// Collector counts lines in, lines out and completed blocks per catcher.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	linesRead       prometheus.Counter
	linesEmitted    prometheus.Counter
	linesSuppressed prometheus.Counter
	blocks          *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		linesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Lines read from the input stream",
		}),
		linesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_emitted_total",
			Help:      "Lines written to the output stream",
		}),
		linesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_suppressed_total",
			Help:      "Input lines consumed by a catcher",
		}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Completed blocks by catcher name",
		}, []string{"catcher"}),
	}

	c.registry.MustRegister(c.linesRead, c.linesEmitted, c.linesSuppressed, c.blocks)
	return c
}

// ObserveLine records one input line and whether it reached the output
func (c *Collector) ObserveLine(emitted bool) {
	if c == nil {
		return
	}
	c.linesRead.Inc()
	if emitted {
		c.linesEmitted.Inc()
	} else {
		c.linesSuppressed.Inc()
	}
}

// ObserveBlock records a completed block
func (c *Collector) ObserveBlock(name string) {
	if c == nil {
		return
	}
	c.blocks.WithLabelValues(name).Inc()
}

// Registry returns the underlying Prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in Prometheus text or OpenMetrics format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes /metrics and /health on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, c *Collector) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("metrics server shutdown")
		}
	}()

	log.WithFields(log.Fields{"addr": addr}).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
