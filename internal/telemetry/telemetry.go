// Package telemetry exports batch progress as Prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/odesweep/internal/engine"
	"github.com/san-kum/odesweep/internal/solver"
)

const namespace = "odesweep"

// Recorder is an engine.Observer that counts finished samples, retries and
// solver work on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	model    string

	samples  *prometheus.CounterVec
	retries  prometheus.Counter
	steps    prometheus.Counter
	rhsEvals prometheus.Counter
	duration prometheus.Observer
	failures *prometheus.CounterVec
	failedAt prometheus.Observer
}

func NewRecorder(model string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"model": model}

	return &Recorder{
		registry: reg,
		model:    model,
		samples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "batch",
			Name:        "samples_total",
			Help:        "Finished samples by final solver status.",
			ConstLabels: labels,
		}, []string{"status"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "batch",
			Name:        "retries_total",
			Help:        "Integration attempts beyond the first.",
			ConstLabels: labels,
		}),
		steps: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "solver",
			Name:        "steps_total",
			Help:        "Accepted integrator steps of the final attempt.",
			ConstLabels: labels,
		}),
		rhsEvals: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "solver",
			Name:        "rhs_evaluations_total",
			Help:        "Right-hand side evaluations of the final attempt.",
			ConstLabels: labels,
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "batch",
			Name:        "sample_duration_seconds",
			Help:        "Wall time spent integrating one sample.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-5, 4, 12),
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "solver",
			Name:        "integration_failures_total",
			Help:        "Samples abandoned after their last attempt, by solver flag.",
			ConstLabels: labels,
		}, []string{"flag"}),
		failedAt: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "solver",
			Name:        "failure_time",
			Help:        "Model time reached by abandoned samples.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-3, 10, 10),
		}),
	}
}

func (r *Recorder) OnSampleDone(rep engine.SampleReport) {
	r.samples.WithLabelValues(rep.Status.String()).Inc()
	if rep.Attempts > 1 {
		r.retries.Add(float64(rep.Attempts - 1))
	}
	r.steps.Add(float64(rep.Stats.Steps))
	r.rhsEvals.Add(float64(rep.Stats.RHSEvals))
	r.duration.Observe(rep.Elapsed.Seconds())

	var ierr *solver.IntegrationError
	if errors.As(rep.Err, &ierr) {
		r.failures.WithLabelValues(ierr.Flag.String()).Inc()
		r.failedAt.Observe(ierr.Time)
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Infof("serving metrics on %s/metrics", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
