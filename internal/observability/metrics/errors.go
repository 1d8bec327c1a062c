package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skyglow/skyglow-go/internal/errors"
)

// ErrorMetrics counts built errors by component and category. It is
// registered with the errors package as a Reporter.
type ErrorMetrics struct {
	errorsTotal *prometheus.CounterVec
}

// NewErrorMetrics creates and registers the error counter
func NewErrorMetrics(registry *prometheus.Registry) (*ErrorMetrics, error) {
	m := &ErrorMetrics{
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyglow_errors_total",
				Help: "Errors built by the application, by component and category",
			},
			[]string{"component", "category"},
		),
	}
	if err := registry.Register(m.errorsTotal); err != nil {
		return nil, fmt.Errorf("failed to register error metrics: %w", err)
	}
	return m, nil
}

// ReportError implements errors.Reporter
func (m *ErrorMetrics) ReportError(ee *errors.EnhancedError) {
	m.errorsTotal.WithLabelValues(ee.GetComponent(), ee.GetCategory()).Inc()
}

// IsEnabled implements errors.Reporter
func (m *ErrorMetrics) IsEnabled() bool { return true }
