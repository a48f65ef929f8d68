// handler.go - Shared handler state and response helpers

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-home-dashboard/auth"
	"go-home-dashboard/config"
	"go-home-dashboard/logging"
	"go-home-dashboard/mqtt"
)

const queueCapacity = 100 // Max timed activations waiting for the worker

// Handler carries everything the HTTP handlers need.
type Handler struct {
	DB       *gorm.DB
	MQTT     mqtt.Publisher
	Config   *config.Config
	Denylist auth.Denylist
	Hub      *logging.Hub

	mu      sync.Mutex  // Guards lock and running
	lock    LockState   // Admin lock ("force shutdown")
	running *runningJob // Activation currently executing, if any
	queue   chan *queuedActivation

	after func(time.Duration) <-chan time.Time // time.After, replaced in tests
}

// New builds a Handler. Call RunActivations to start the queue worker.
func New(db *gorm.DB, pub mqtt.Publisher, cfg *config.Config, deny auth.Denylist, hub *logging.Hub) *Handler {
	if hub == nil {
		hub = logging.NewHub()
	}
	return &Handler{
		DB:       db,
		MQTT:     pub,
		Config:   cfg,
		Denylist: deny,
		Hub:      hub,
		queue:    make(chan *queuedActivation, queueCapacity),
		after:    time.After,
	}
}

// badRequest is an error whose message is safe to return to the client.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func newBadRequest(msg string) error { return &badRequest{msg: msg} }

// parseID reads a numeric path parameter and answers 400 when it is malformed.
func parseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id: " + raw})
		return 0, false
	}
	return uint(id), true
}

// notFound answers 400 for a missing entity and logs it.
func notFound(c *gin.Context, what string, id interface{}) {
	logrus.WithFields(logrus.Fields{"entity": what, "id": id}).Warn("entity not found")
	c.JSON(http.StatusBadRequest, gin.H{"error": what + " not found"})
}

// dbError answers 400 with the inner error message.
func dbError(c *gin.Context, err error) {
	logrus.WithError(err).Warn("database error")
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// fail maps an error from a lookup or a write to the status contract.
func fail(c *gin.Context, what string, id interface{}, err error) {
	var br *badRequest
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		notFound(c, what, id)
	case errors.As(err, &br):
		c.JSON(http.StatusBadRequest, gin.H{"error": br.msg})
	default:
		dbError(c, err)
	}
}

// bindJSON binds the body and answers 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// listResponse answers 204 for an empty list and 200 otherwise.
func listResponse[T any](c *gin.Context, rows []T) {
	if len(rows) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Health is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
