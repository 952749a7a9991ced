package regionstore

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opLabel      = "op"
	errTypeLabel = "error_type"
)

var (
	storeOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "region_store_op_latency",
		Help: "The time to perform a region store operation.",
	}, []string{
		opLabel,
	})

	storeOpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_store_op_errors",
		Help: "The errors that occured while performing a region store operation.",
	}, []string{
		opLabel,
		errTypeLabel,
	})

	storeEventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_store_events_delivered",
		Help: "The number of region change events delivered to subscribers.",
	}, []string{
		opLabel,
	})

	storeEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_store_events_dropped",
		Help: "The number of region change events dropped on slow subscribers.",
	}, []string{
		opLabel,
	})
)

func instrumentStoreOp(op string, start time.Time, err error) {
	storeOpLatency.
		With(prometheus.Labels{opLabel: op}).
		Observe(time.Since(start).Seconds())

	if err != nil {
		storeOpErrors.
			With(prometheus.Labels{
				opLabel:      op,
				errTypeLabel: errors.Type(err),
			}).
			Inc()
	}
}

func instrumentEventDelivered(op Op) {
	storeEventsDelivered.
		With(prometheus.Labels{opLabel: string(op)}).
		Inc()
}

func instrumentEventDropped(op Op) {
	storeEventsDropped.
		With(prometheus.Labels{opLabel: string(op)}).
		Inc()
}
