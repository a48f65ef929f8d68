package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go-home-dashboard/auth"
	"go-home-dashboard/config"
	"go-home-dashboard/database"
	"go-home-dashboard/logging"
	"go-home-dashboard/middleware"
	"go-home-dashboard/models"
	"go-home-dashboard/mqtt"
	"go-home-dashboard/testutil"
)

// testEnv is a handler wired to an in-memory database and a recording broker.
type testEnv struct {
	t          *testing.T
	db         *gorm.DB
	cfg        *config.Config
	h          *Handler
	pub        *mqtt.Recorder
	router     *gin.Engine
	admin      *models.User
	user       *models.User
	adminToken string
	userToken  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	cfg := testutil.Config(t)
	cfg.MQTT.TopicPrefix = "home"
	cfg.DeviceDailyQuota = time.Hour
	db := testutil.OpenDBWith(t, cfg)
	pub := &mqtt.Recorder{}
	h := New(db, pub, cfg, auth.NewMemoryDenylist(), logging.NewHub())

	logging.Install(database.LogStore{DB: db}, h.Hub)
	t.Cleanup(func() { logging.Install(nil, nil) })

	env := &testEnv{t: t, db: db, cfg: cfg, h: h, pub: pub, router: setupRouter(h)}
	env.admin = testutil.CreateUser(t, db, "admin", models.RoleAdmin)
	env.user = testutil.CreateUser(t, db, "bob", models.RoleUser)
	env.adminToken = testutil.Token(t, env.admin)
	env.userToken = testutil.Token(t, env.user)
	return env
}

// setupRouter mounts every handler behind the real auth middleware.
func setupRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/health", h.Health)
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)

	api := r.Group("/api", middleware.AuthMiddleware(testutil.Secret, h.Denylist, h.DB))
	admin := middleware.AdminMiddleware()
	api.GET("/me", h.Me)
	api.POST("/logout", h.Logout)
	api.GET("/users", admin, h.ListUsers)
	api.POST("/users", admin, h.CreateUser)
	api.GET("/users/:id", h.GetUser)
	api.PUT("/users/:id", h.UpdateUser)
	api.DELETE("/users/:id", admin, h.DeleteUser)
	api.GET("/roles", h.ListRoles)
	api.GET("/roles/:id", h.GetRole)
	api.PUT("/roles/:id/users", admin, h.AssignRole)
	api.GET("/devices", h.ListDevices)
	api.POST("/devices", admin, h.CreateDevice)
	api.GET("/devices/:id", h.GetDevice)
	api.PUT("/devices/:id", admin, h.UpdateDevice)
	api.DELETE("/devices/:id", admin, h.DeleteDevice)
	api.POST("/devices/:id/state", h.SetState)
	api.PUT("/devices/:id/level", h.SetLevel)
	api.POST("/devices/:id/activate", h.Activate)
	api.GET("/devices/:id/activations", h.ListActivations)
	api.GET("/system/status", h.Status)
	api.POST("/admin/shutdown", admin, h.Shutdown)
	api.POST("/admin/restart", admin, h.Restart)
	api.POST("/admin/send", admin, h.SendCommand)
	api.GET("/logs", admin, h.ListLogs)
	api.DELETE("/logs", admin, h.ClearLogs)
	api.GET("/logs/stream", admin, h.StreamLogs)
	return r
}

// do sends a JSON request; body may be nil.
func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewBuffer(b)
	}
	req, _ := http.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into v.
func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// instant makes timed activations finish immediately.
func instant(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// never makes timed activations run until cancelled.
func never(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}
