package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	utilwait "k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

const (
	MetricNamespace            = "ovsdb_frontend"
	MetricSubsystemTransaction = "transaction"
	MetricSubsystemMonitor     = "monitor"

	resultSuccess = "success"
	resultFailure = "failure"
)

// MetricTransactionsTotal counts committed transactions per backend and outcome
var MetricTransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: MetricNamespace,
	Subsystem: MetricSubsystemTransaction,
	Name:      "commits_total",
	Help:      "The total number of committed transactions",
}, []string{"backend", "result"})

// MetricTransactionCommands counts commands carried by committed transactions
var MetricTransactionCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: MetricNamespace,
	Subsystem: MetricSubsystemTransaction,
	Name:      "commands_total",
	Help:      "The total number of commands carried by committed transactions",
}, []string{"backend"})

// MetricTransactionDuration is the time taken to commit a transaction
var MetricTransactionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: MetricNamespace,
	Subsystem: MetricSubsystemTransaction,
	Name:      "commit_duration_seconds",
	Help:      "The duration of transaction commits",
	Buckets:   prometheus.ExponentialBuckets(.001, 2, 15),
}, []string{"backend"})

// MetricMonitorEventsTotal counts row events dispatched by the monitor
var MetricMonitorEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: MetricNamespace,
	Subsystem: MetricSubsystemMonitor,
	Name:      "events_total",
	Help:      "The total number of row events matched and run by the monitor",
}, []string{"table", "event"})

var (
	registry     = prometheus.NewRegistry()
	registerOnce sync.Once
)

// RegisterFrontendMetrics registers the metrics of this process. It is safe to
// call more than once.
func RegisterFrontendMetrics() {
	registerOnce.Do(func() {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registry.MustRegister(MetricTransactionsTotal)
		registry.MustRegister(MetricTransactionCommands)
		registry.MustRegister(MetricTransactionDuration)
		registry.MustRegister(MetricMonitorEventsTotal)
	})
}

// RecordTransaction records the outcome of one commit
func RecordTransaction(backend string, commands int, start time.Time, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	MetricTransactionsTotal.WithLabelValues(backend, result).Inc()
	MetricTransactionCommands.WithLabelValues(backend).Add(float64(commands))
	MetricTransactionDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
}

// RecordMonitorEvent records a row event run by the monitor
func RecordMonitorEvent(table, event string) {
	MetricMonitorEventsTotal.WithLabelValues(table, event).Inc()
}

// NewMetricsRouter returns the router serving /metrics and, optionally, pprof
func NewMetricsRouter(enablePprof bool) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.InstrumentMetricHandler(registry,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))).Methods(http.MethodGet)
	if enablePprof {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}
	return router
}

// StartMetricsServer runs the prometheus listener until ctx is done, restarting
// it if it fails
func StartMetricsServer(ctx context.Context, bindAddress string, enablePprof bool) {
	handler := NewMetricsRouter(enablePprof)
	utilwait.UntilWithContext(ctx, func(ctx context.Context) {
		klog.Infof("Starting metrics server at address %q", bindAddress)
		server := &http.Server{Addr: bindAddress, Handler: handler}
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()
		select {
		case err := <-errCh:
			utilruntime.HandleError(fmt.Errorf("failed while running metrics server at address %q: %w", bindAddress, err))
		case <-ctx.Done():
			klog.Infof("Stopping metrics server at address %q", bindAddress)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				klog.Errorf("Error stopping metrics server at address %q: %v", bindAddress, err)
			}
		}
	}, 5*time.Second)
}
