package prometheus

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/taskcore/engine"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// Namespace overrides the default "taskcore" metric namespace.
	Namespace string
}

// MetricsExporter adapts an engine.TaskProcessor's counter snapshot to
// Prometheus collectors. It is a thin collaborator, not part of the core
// (§1 of the design calls metrics reporting external): RecordSnapshot just
// copies a ProcessorStats read onto gauges labeled by processor name.
type MetricsExporter struct {
	created            *prom.GaugeVec
	destroyed          *prom.GaugeVec
	alive              *prom.GaugeVec
	switchSlow         *prom.GaugeVec
	overloaded         *prom.GaugeVec
	cancelledOverload  *prom.GaugeVec
	queueDepth         *prom.GaugeVec
	waitTimeOverloaded *prom.GaugeVec
}

// NewMetricsExporter creates and registers Prometheus collectors for
// engine.ProcessorStats.
func NewMetricsExporter(reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "taskcore"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	labels := []string{"processor"}
	created := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Task contexts created, cumulative.",
	}, labels)
	destroyed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_destroyed_total",
		Help:      "Task contexts destroyed, cumulative.",
	}, labels)
	alive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_alive",
		Help:      "Task contexts created and not yet destroyed.",
	}, labels)
	switchSlow := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_poll_timeouts_total",
		Help:      "Worker dequeue polls that timed out without an item, cumulative.",
	}, labels)
	overloaded := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "overload_detections_total",
		Help:      "Overload detections (length or latency), cumulative.",
	}, labels)
	cancelledOverload := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_cancelled_overload_total",
		Help:      "Tasks cancelled due to overload, cumulative.",
	}, labels)
	queueDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Approximate task queue depth.",
	}, labels)
	waitTimeOverloaded := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_wait_time_overloaded",
		Help:      "Whether the latency-overload flag is currently set (1) or not (0).",
	}, labels)

	var err error
	if created, err = registerCollector(reg, created); err != nil {
		return nil, err
	}
	if destroyed, err = registerCollector(reg, destroyed); err != nil {
		return nil, err
	}
	if alive, err = registerCollector(reg, alive); err != nil {
		return nil, err
	}
	if switchSlow, err = registerCollector(reg, switchSlow); err != nil {
		return nil, err
	}
	if overloaded, err = registerCollector(reg, overloaded); err != nil {
		return nil, err
	}
	if cancelledOverload, err = registerCollector(reg, cancelledOverload); err != nil {
		return nil, err
	}
	if queueDepth, err = registerCollector(reg, queueDepth); err != nil {
		return nil, err
	}
	if waitTimeOverloaded, err = registerCollector(reg, waitTimeOverloaded); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		created:            created,
		destroyed:          destroyed,
		alive:              alive,
		switchSlow:         switchSlow,
		overloaded:         overloaded,
		cancelledOverload:  cancelledOverload,
		queueDepth:         queueDepth,
		waitTimeOverloaded: waitTimeOverloaded,
	}, nil
}

// RecordSnapshot copies one ProcessorStats read onto the exporter's
// collectors under the given processor name.
func (m *MetricsExporter) RecordSnapshot(processorName string, stats engine.ProcessorStats) {
	if m == nil {
		return
	}
	name := normalizeLabel(processorName, "unknown")

	m.created.WithLabelValues(name).Set(float64(stats.Counter.Created))
	m.destroyed.WithLabelValues(name).Set(float64(stats.Counter.Destroyed))
	m.alive.WithLabelValues(name).Set(float64(stats.Counter.Alive))
	m.switchSlow.WithLabelValues(name).Set(float64(stats.Counter.SwitchSlow))
	m.overloaded.WithLabelValues(name).Set(float64(stats.Counter.Overloaded))
	m.cancelledOverload.WithLabelValues(name).Set(float64(stats.Counter.CancelledDueOverload))
	m.queueDepth.WithLabelValues(name).Set(float64(stats.QueueSize))
	if stats.WaitTimeOverloaded {
		m.waitTimeOverloaded.WithLabelValues(name).Set(1)
	} else {
		m.waitTimeOverloaded.WithLabelValues(name).Set(0)
	}
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
