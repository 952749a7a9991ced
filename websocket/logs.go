package websocket

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"

	"github.com/prophet-town/s2geometry/regionstore"
)

// HandlerWithLogs decorates a handler with connect/disconnect logs and a
// per-connection event count.
func HandlerWithLogs(h Handler) Handler {
	return &handlerWithLogs{Handler: h}
}

type handlerWithLogs struct {
	Handler

	remoteAddr string
	filters    string
	sent       int
	sendErrors int
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	req := conn.Request()
	h.remoteAddr = req.RemoteAddr
	h.filters = strings.Join(req.URL.Query()["name"], ",")

	logs.WithTag("remote_addr", h.remoteAddr).
		WithTag("filters", h.filters).
		Info("watch client connected")
}

func (h *handlerWithLogs) HandleEvent(e regionstore.Event) error {
	err := h.Handler.HandleEvent(e)
	if err != nil {
		h.sendErrors++
		logs.WithTag("remote_addr", h.remoteAddr).
			WithTag("region", e.Name).
			Warn(err)
		return err
	}

	h.sent++
	return nil
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()

	logs.WithTag("remote_addr", h.remoteAddr).
		WithTag("filters", h.filters).
		WithTag("events_sent", h.sent).
		WithTag("send_errors", h.sendErrors).
		Info("watch client disconnected")
}
