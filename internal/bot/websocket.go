package bot

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message is an inbound websocket chat message.
type Message struct {
	Text string `json:"text"`
}

// MaxMessageBytes caps one inbound websocket frame. Larger messages close the connection.
const MaxMessageBytes int64 = 1 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// NewHandler serves the websocket chat at /chat, metrics from g at /metrics and a health check at /healthz.
func NewHandler(b *Bot, g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", b.ServeWebSocket)
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// ServeWebSocket answers JSON messages on one websocket connection until the client disconnects.
// Messages that are not commands get no reply.
func (b *Bot) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("Failed to upgrade websocket", slog.Any("error", err))
		return
	}
	defer ws.Close()
	ws.SetReadLimit(MaxMessageBytes)
	b.logger.Info("Websocket client connected", slog.String("remote", r.RemoteAddr))

	ctx := r.Context()
	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			b.logger.Info("Websocket client disconnected", slog.String("reason", err.Error()))
			return
		}
		resp, ok := b.Handle(ctx, msg.Text)
		if !ok {
			continue
		}
		if err := ws.WriteJSON(resp); err != nil {
			b.logger.Warn("Failed to write websocket reply", slog.Any("error", err))
			return
		}
	}
}
