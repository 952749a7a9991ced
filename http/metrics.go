package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opLabel = "op"
)

var (
	queryOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_query_ops",
		Help: "The number of region algebra queries served, by operation.",
	}, []string{
		opLabel,
	})
)

func instrumentQueryOp(op string) {
	queryOps.
		With(prometheus.Labels{opLabel: op}).
		Inc()
}
