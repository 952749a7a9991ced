package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"

	"github.com/prophet-town/s2geometry/regionstore"
)

const (
	opLabel      = "op"
	errTypeLabel = "error_type"
)

var (
	wsConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connected_watch_clients",
		Help: "The number of connected watch clients.",
	})

	wsSentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_events",
		Help: "The number of region events sent to watch clients.",
	}, []string{
		opLabel,
	})

	wsSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_send_errors",
		Help: "The errors that occured while sending a region event.",
	}, []string{
		errTypeLabel,
	})
)

// HandlerWithMetrics decorates a handler with connection and event metrics.
func HandlerWithMetrics(h Handler) Handler {
	return &handlerWithMetrics{Handler: h}
}

type handlerWithMetrics struct {
	Handler
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)
	wsConnectedClients.Inc()
}

func (h *handlerWithMetrics) HandleEvent(e regionstore.Event) error {
	err := h.Handler.HandleEvent(e)
	if err != nil {
		wsSendErrors.
			With(prometheus.Labels{errTypeLabel: errors.Type(err)}).
			Inc()
		return err
	}

	wsSentEvents.
		With(prometheus.Labels{opLabel: string(e.Op)}).
		Inc()
	return nil
}

func (h *handlerWithMetrics) Close() {
	h.Handler.Close()
	wsConnectedClients.Dec()
}
