package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quillboard/backend/internal/room"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Canvas snapshots can embed image files.
	maxMessageSize = 32 << 20
	sendQueueSize  = 256
)

var errSendQueueFull = errors.New("send queue full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The canvas client connects cross-origin; access control is the
	// hosting platform's concern, not the room protocol's.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (h *httpHandler) handleRoomSocket(c *gin.Context) {
	roomName := c.Param("room")
	coordinator, err := h.rooms.Room(roomName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_room"})
		return
	}

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("room", roomName), zap.Error(err))
		return
	}

	client := &socketClient{
		id:          uuid.NewString(),
		socket:      socket,
		coordinator: coordinator,
		logger:      h.logger,
		send:        make(chan []byte, sendQueueSize),
	}
	coordinator.Join(client)
	go client.writePump()
	go client.readPump()
}

// socketClient adapts one WebSocket connection to the room.Client
// contract: reads feed the coordinator, coordinator sends queue onto
// the write pump.
type socketClient struct {
	id          string
	socket      *websocket.Conn
	coordinator *room.Coordinator
	logger      *zap.Logger
	send        chan []byte
}

func (c *socketClient) ID() string {
	return c.id
}

// Send queues a payload without blocking the coordinator. A client that
// cannot drain its queue loses frames rather than stalling the room.
func (c *socketClient) Send(payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *socketClient) readPump() {
	defer func() {
		c.coordinator.Leave(c.id)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Text frames carry the same encoded payload as binary ones;
		// both feed the coordinator as raw bytes.
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read ended", zap.String("connection", c.id), zap.Error(err))
			}
			return
		}
		c.coordinator.HandleFrame(c.id, payload)
	}
}

func (c *socketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
