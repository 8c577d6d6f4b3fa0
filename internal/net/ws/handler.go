package ws

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tstirrat/newthreat/internal/telemetry"
)

type clientMessage struct {
	Ver    int    `json:"ver,omitempty"`
	Type   string `json:"type"`
	SentAt int64  `json:"sentAt"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades HTTP requests into stream subscriptions.
type Handler struct {
	hub      *Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle serves one subscriber until its connection drops. Clients may
// send heartbeat messages; anything else is ignored.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	clientID := r.URL.Query().Get("id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", clientID, err)
		return
	}

	if err := h.hub.Subscribe(clientID, conn); err != nil {
		h.logger.Printf("subscribe failed for %s: %v", clientID, err)
		conn.Close()
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Unsubscribe(clientID, conn)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", clientID, err)
			continue
		}

		switch msg.Type {
		case "heartbeat":
			data, err := json.Marshal(heartbeatMessage{
				Ver:        ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: time.Now().UnixMilli(),
				ClientTime: msg.SentAt,
			})
			if err != nil {
				h.logger.Printf("failed to marshal heartbeat ack for %s: %v", clientID, err)
				continue
			}
			if err := h.hub.write(clientID, data); err != nil {
				h.hub.Unsubscribe(clientID, conn)
				return
			}
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, clientID)
		}
	}
}
