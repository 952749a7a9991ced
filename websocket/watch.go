// Package websocket streams region change events to websocket clients.
package websocket

import (
	"context"
	"io"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"

	"github.com/prophet-town/s2geometry/regionstore"
)

// Handler receives the lifecycle of a single watch connection. Decorators
// wrap it to add logging and metrics.
type Handler interface {
	// HandleConnect subscribes the handler to its event source.
	HandleConnect(conn *websocket.Conn)

	// Events returns the channel the connection streams from. The channel
	// closes when the subscription ends.
	Events() <-chan regionstore.Event

	// HandleEvent forwards one event to the client.
	HandleEvent(e regionstore.Event) error

	// Close releases the subscription.
	Close()
}

// WatchHandler streams store events for the regions named in the request
// query, or for all regions when no names are given.
type WatchHandler struct {
	Store *regionstore.Store

	conn   *websocket.Conn
	subID  uint32
	events <-chan regionstore.Event
}

func (h *WatchHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn
	names := conn.Request().URL.Query()["name"]
	h.subID, h.events = h.Store.Subscribe(names...)
}

func (h *WatchHandler) Events() <-chan regionstore.Event {
	return h.events
}

func (h *WatchHandler) HandleEvent(e regionstore.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.New("encoding region event").Wrap(err)
	}
	if err := websocket.Message.Send(h.conn, string(b)); err != nil {
		return errors.New("sending region event").Wrap(err)
	}
	return nil
}

func (h *WatchHandler) Close() {
	h.Store.Unsubscribe(h.subID)
}

// Handle runs a watch connection until the client disconnects, the context
// ends or a send fails.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	h.HandleConnect(conn)
	defer h.Close()

	// The feed is write-only. Draining the connection notices the client
	// going away.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		io.Copy(io.Discard, conn)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-disconnected:
			return

		case e, ok := <-h.Events():
			if !ok {
				return
			}
			if err := h.HandleEvent(e); err != nil {
				return
			}
		}
	}
}
