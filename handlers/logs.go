// logs.go - Activity log listing, clearing and the live terminal stream

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"go-home-dashboard/middleware"
	"go-home-dashboard/models"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
	streamBacklog   = 50
	pingInterval    = 30 * time.Second
	writeTimeout    = 10 * time.Second
)

// ListLogs returns the newest log lines, ?limit= (default 100, max 1000).
func (h *Handler) ListLogs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + raw})
			return
		}
		limit = n
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	var logs []models.Log
	if err := h.DB.Order("timestamp DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		dbError(c, err)
		return
	}
	listResponse(c, logs)
}

// ClearLogs deletes the whole activity log.
func (h *Handler) ClearLogs(c *gin.Context) {
	res := h.DB.Where("1 = 1").Delete(&models.Log{})
	if res.Error != nil {
		dbError(c, res.Error)
		return
	}
	caller, _ := middleware.CurrentUser(c)
	// Plain log line: an audited one would land in the table just cleared.
	logrus.WithFields(logrus.Fields{"uid": caller.ID, "rows": res.RowsAffected}).Info("activity log cleared")
	c.Status(http.StatusNoContent)
}

// StreamLogs upgrades to a websocket and pushes the recent backlog followed
// by every new log line.
func (h *Handler) StreamLogs(c *gin.Context) {
	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	lines, unsubscribe := h.Hub.Subscribe()
	defer unsubscribe()

	var backlog []models.Log
	if err := h.DB.Order("timestamp DESC, id DESC").Limit(streamBacklog).Find(&backlog).Error; err != nil {
		logrus.WithError(err).Warn("load log backlog")
	}
	for i := len(backlog) - 1; i >= 0; i-- { // Oldest first, like a terminal
		if err := writeJSON(conn, backlog[i]); err != nil {
			return
		}
	}

	// Reader: only needed to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := writeJSON(conn, line); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// checkOrigin accepts same-origin requests and the configured SPA origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.Config == nil {
		return true
	}
	for _, allowed := range h.Config.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
