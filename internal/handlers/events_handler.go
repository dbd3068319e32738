package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// EventsHandler notification log queries and the live websocket stream
type EventsHandler struct {
	notifications *services.NotificationService
	upgrader      websocket.Upgrader
	logger        *logrus.Logger
}

// NewEventsHandler creates an EventsHandler
func NewEventsHandler(notifications *services.NotificationService, logger *logrus.Logger) *EventsHandler {
	return &EventsHandler{
		notifications: notifications,
		logger:        logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ListHandler GET /api/v1/events?after=&limit=
func (h *EventsHandler) ListHandler(c *gin.Context) {
	after, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_CURSOR", "Invalid after cursor")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	list, err := h.notifications.List(c.Request.Context(), after, limit)
	if err != nil {
		respondWithServiceError(c, h.logger, "list_events", err)
		return
	}

	next := after
	if len(list) > 0 {
		next = list[len(list)-1].Seq
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list,
		"next":    next,
	})
}

// StreamHandler GET /ws/events?after=
// With a cursor it first replays committed notifications after it, then
// streams live ones. Live entries arriving ahead of the cursor are filled in
// from the log so every sequence number is delivered once and in order.
func (h *EventsHandler) StreamHandler(c *gin.Context) {
	rawAfter, replay := c.GetQuery("after")
	if !replay {
		rawAfter = "0"
	}
	after, err := strconv.ParseUint(rawAfter, 10, 64)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "INVALID_CURSOR", "Invalid after cursor")
		return
	}

	// Subscribe before replaying so nothing committed in between is lost.
	live, cancel := h.notifications.Subscribe(256)
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("❌ WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	log := h.logger.WithField("client_id", clientID)
	log.Info("📡 WebSocket client connected")
	defer log.Info("WebSocket client disconnected")

	write := func(v interface{}) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v)
	}

	if err := write(gin.H{"type": "connected", "client_id": clientID}); err != nil {
		return
	}

	ctx := c.Request.Context()
	cursor := after
	catchUp := func() error {
		for {
			batch, err := h.notifications.List(ctx, cursor, 500)
			if err != nil {
				return err
			}
			for _, n := range batch {
				if err := write(gin.H{"type": "notification", "data": n}); err != nil {
					return err
				}
				cursor = n.Seq
			}
			if len(batch) < 500 {
				return nil
			}
		}
	}
	if replay {
		if err := catchUp(); err != nil {
			log.WithError(err).Warn("Replay failed")
			return
		}
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case n, ok := <-live:
			if !ok {
				return
			}
			if !replay {
				// Without a cursor the stream starts at the first live entry.
				cursor, replay = n.Seq-1, true
			}
			if n.Seq <= cursor {
				continue
			}
			if n.Seq > cursor+1 {
				// An earlier entry committed but was not dispatched yet.
				if err := catchUp(); err != nil {
					log.WithError(err).Warn("Catch-up failed")
					return
				}
				continue
			}
			if err := write(gin.H{"type": "notification", "data": n}); err != nil {
				return
			}
			cursor = n.Seq
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
