package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/config"
)

// Recorder receives the service's counters. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordRequest(path, method string, status int, duration time.Duration)
	RecordError(path, method, code string)
	// RecordTransition counts lifecycle operations by outcome: ok or the
	// error code that rejected them.
	RecordTransition(transition, outcome string)
	// RecordSideEffectFailure counts swallowed post-commit failures such as
	// notification writes or event publication.
	RecordSideEffectFailure(kind string)
	Shutdown(ctx context.Context) error
}

// NewRecorder builds the recorder selected by cfg.Backend.
func NewRecorder(cfg config.MetricsConfig, serviceName string, logger *zap.Logger) (Recorder, error) {
	switch cfg.Backend {
	case "prometheus":
		logger.Info("metrics backend: prometheus")
		return NewPrometheusRecorder(), nil
	case "otel":
		logger.Info("metrics backend: otel", zap.String("endpoint", cfg.OTLPEndpoint), zap.Bool("insecure", cfg.OTLPInsecure))
		return NewOTelRecorder(context.Background(), cfg.OTLPEndpoint, cfg.OTLPInsecure, serviceName)
	case "none", "":
		return NewMetrics(), nil
	}
	return nil, fmt.Errorf("unknown metrics backend %q", cfg.Backend)
}

// Metrics provides basic in-memory counters. It backs the "none" backend
// and is read directly by tests.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	transitionCount map[string]int64
	sideEffectCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		transitionCount: make(map[string]int64),
		sideEffectCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

func (m *Metrics) RecordTransition(transition, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[transition+"|"+outcome]++
}

func (m *Metrics) RecordSideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sideEffectCount[kind]++
}

// TransitionCount returns how often transition ended with outcome.
func (m *Metrics) TransitionCount(transition, outcome string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionCount[transition+"|"+outcome]
}

// SideEffectFailures returns the failure count of kind.
func (m *Metrics) SideEffectFailures(kind string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sideEffectCount[kind]
}

func (m *Metrics) Shutdown(context.Context) error { return nil }

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
