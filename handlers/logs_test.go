package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-home-dashboard/logging"
	"go-home-dashboard/models"
)

func TestLogs_ListAndClear(t *testing.T) {
	env := newTestEnv(t)

	// --- Empty log is 204 ---
	assert.Equal(t, http.StatusNoContent, env.do("GET", "/api/logs", env.adminToken, nil).Code)

	for i := 0; i < 3; i++ {
		logging.Audit(env.admin.ID).Infof("line %d", i)
	}

	w := env.do("GET", "/api/logs?limit=2", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []models.Log
	decode(t, w, &logs)
	require.Len(t, logs, 2)
	assert.Equal(t, "line 2", logs[0].Message) // Newest first
	assert.Equal(t, "line 1", logs[1].Message)

	assert.Equal(t, http.StatusBadRequest, env.do("GET", "/api/logs?limit=zero", env.adminToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do("GET", "/api/logs", env.userToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do("DELETE", "/api/logs", env.userToken, nil).Code)

	// --- Clear ---
	assert.Equal(t, http.StatusNoContent, env.do("DELETE", "/api/logs", env.adminToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do("GET", "/api/logs", env.adminToken, nil).Code)
}

func TestLogs_Stream(t *testing.T) {
	env := newTestEnv(t)
	logging.Audit(env.admin.ID).Info("before connect")

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/logs/stream?token=" + env.adminToken

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// Backlog first.
	var line models.Log
	require.NoError(t, conn.ReadJSON(&line))
	assert.Equal(t, "before connect", line.Message)

	// Then live lines.
	logging.Audit(env.user.ID).Warn("live line")
	require.NoError(t, conn.ReadJSON(&line))
	assert.Equal(t, "live line", line.Message)
	assert.Equal(t, "warning", line.Level)
	require.NotNil(t, line.UserID)
	assert.Equal(t, env.user.ID, *line.UserID)
}

func TestLogs_StreamRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/logs/stream"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token="+env.userToken, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
