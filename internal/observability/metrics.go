package observability

import (
	"errors"
	"net/http"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector wraps Prometheus metrics for the gRPC server and the
// gallery workflow.
type MetricsCollector struct {
	serverMetrics *grpcprom.ServerMetrics
	gallery       *GalleryMetrics
	handler       http.Handler
}

// InitMetrics registers gRPC server and gallery metrics with reg.
func InitMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*MetricsCollector, error) {
	// Create server metrics with default buckets
	serverMetrics := grpcprom.NewServerMetrics(
		grpcprom.WithServerHandlingTimeHistogram(
			grpcprom.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}),
		),
	)
	serverMetrics, err := register(reg, serverMetrics)
	if err != nil {
		return nil, err
	}

	gallery, err := NewGalleryMetrics(reg)
	if err != nil {
		return nil, err
	}

	return &MetricsCollector{
		serverMetrics: serverMetrics,
		gallery:       gallery,
		handler:       promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}, nil
}

// GetServerMetrics returns the gRPC server metrics
func (mc *MetricsCollector) GetServerMetrics() *grpcprom.ServerMetrics {
	return mc.serverMetrics
}

func (mc *MetricsCollector) Gallery() *GalleryMetrics {
	return mc.gallery
}

// GetHandler returns the HTTP handler for /metrics endpoint
func (mc *MetricsCollector) GetHandler() http.Handler {
	return mc.handler
}

// GalleryMetrics counts upload/commit outcomes. A nil *GalleryMetrics is
// valid and records nothing.
type GalleryMetrics struct {
	uploads   *prometheus.CounterVec
	rollbacks *prometheus.CounterVec
	orphaned  prometheus.Counter
}

func NewGalleryMetrics(reg prometheus.Registerer) (*GalleryMetrics, error) {
	m := &GalleryMetrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carlot",
			Subsystem: "gallery",
			Name:      "uploads_total",
			Help:      "Image batch commits by result (ok, upload_error, commit_error).",
		}, []string{"result"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carlot",
			Subsystem: "gallery",
			Name:      "rollbacks_total",
			Help:      "Compensating object deletions after a failed metadata insert.",
		}, []string{"result"}),
		orphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carlot",
			Subsystem: "gallery",
			Name:      "orphaned_objects_total",
			Help:      "Objects left in the store after a failed best-effort removal.",
		}),
	}
	var err error
	if m.uploads, err = register(reg, m.uploads); err != nil {
		return nil, err
	}
	if m.rollbacks, err = register(reg, m.rollbacks); err != nil {
		return nil, err
	}
	if m.orphaned, err = register(reg, m.orphaned); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *GalleryMetrics) Upload(result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
}

func (m *GalleryMetrics) Rollback(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.rollbacks.WithLabelValues(result).Inc()
}

func (m *GalleryMetrics) Orphaned(n int) {
	if m == nil {
		return
	}
	m.orphaned.Add(float64(n))
}

// register adds c to reg. If an identical collector is already registered,
// that's okay (useful for testing) and the existing one is returned.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
