// admin_test.go - Tests for the admin lock and the timed activation queue

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-home-dashboard/models"
	"go-home-dashboard/testutil"
)

// TestAdminShutdownAndRestart verifies that the lock blocks device control
// and that restart lifts it.
func TestAdminShutdownAndRestart(t *testing.T) {
	env := newTestEnv(t)
	pump := testutil.CreateDevice(t, env.db, "pump", "garden", models.DeviceMotor)
	testutil.CreateDevice(t, env.db, "temp", "garden", models.DeviceSensor)
	base := fmt.Sprintf("/api/devices/%d", pump.ID)

	// --- Only admins may lock ---
	reason := map[string]string{"reason": "Emergency maintenance"}
	assert.Equal(t, http.StatusForbidden, env.do("POST", "/api/admin/shutdown", env.userToken, reason).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/api/admin/shutdown", env.adminToken, map[string]string{}).Code)

	w := env.do("POST", "/api/admin/shutdown", env.adminToken, reason)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Every controllable device was told to switch off.
	msgs := env.pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "home/garden/pump/set", msgs[0].Topic)
	assert.Equal(t, "off", msgs[0].Payload)

	// --- Device control is rejected while locked ---
	on := true
	assert.Equal(t, http.StatusServiceUnavailable, env.do("POST", base+"/state", env.userToken, StateInput{On: &on}).Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do("POST", base+"/activate", env.userToken, ActivateInput{Duration: 60}).Code)

	// --- Status shows the lock ---
	w = env.do("GET", "/api/system/status", env.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Lock LockState `json:"lock"`
	}
	decode(t, w, &status)
	assert.True(t, status.Lock.Locked)
	assert.Equal(t, "Emergency maintenance", status.Lock.Reason)
	assert.Equal(t, "admin", status.Lock.LockedBy)

	// --- Restart ---
	assert.Equal(t, http.StatusOK, env.do("POST", "/api/admin/restart", env.adminToken, nil).Code)
	assert.False(t, env.h.Locked())
	assert.Equal(t, http.StatusOK, env.do("POST", base+"/state", env.userToken, StateInput{On: &on}).Code)
}

func TestActivation_RunsThroughQueue(t *testing.T) {
	env := newTestEnv(t)
	env.h.after = instant
	pump := testutil.CreateDevice(t, env.db, "pump", "garden", models.DeviceMotor)
	base := fmt.Sprintf("/api/devices/%d", pump.ID)

	assert.Equal(t, http.StatusNoContent, env.do("GET", base+"/activations", env.userToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", base+"/activate", env.userToken, ActivateInput{}).Code)

	w := env.do("POST", base+"/activate", env.userToken, ActivateInput{Duration: 30})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var queued models.DeviceActivation
	decode(t, w, &queued)
	assert.Equal(t, models.ActivationQueued, queued.Status)
	assert.Equal(t, 30*time.Second, queued.Duration)
	require.Len(t, env.h.queue, 1)

	env.h.process(context.Background(), <-env.h.queue)

	msgs := env.pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "on", msgs[0].Payload)
	assert.Equal(t, "off", msgs[1].Payload)
	assert.Equal(t, "home/garden/pump/set", msgs[1].Topic)

	var done models.DeviceActivation
	require.NoError(t, env.db.First(&done, queued.ID).Error)
	assert.Equal(t, models.ActivationDone, done.Status)
	require.NotNil(t, done.UserID)
	assert.Equal(t, env.user.ID, *done.UserID)

	var rows []models.DeviceActivation
	w = env.do("GET", base+"/activations", env.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &rows)
	assert.Len(t, rows, 1)
}

func TestActivation_Quota(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.DeviceDailyQuota = 90 * time.Second
	pump := testutil.CreateDevice(t, env.db, "pump", "garden", models.DeviceMotor)
	fan := testutil.CreateDevice(t, env.db, "fan", "attic", models.DeviceSwitch)

	path := fmt.Sprintf("/api/devices/%d/activate", pump.ID)
	assert.Equal(t, http.StatusAccepted, env.do("POST", path, env.userToken, ActivateInput{Duration: 60}).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do("POST", path, env.userToken, ActivateInput{Duration: 60}).Code)
	assert.Equal(t, http.StatusAccepted, env.do("POST", path, env.userToken, ActivateInput{Duration: 30}).Code)

	// The quota is per device.
	other := fmt.Sprintf("/api/devices/%d/activate", fan.ID)
	assert.Equal(t, http.StatusAccepted, env.do("POST", other, env.userToken, ActivateInput{Duration: 60}).Code)

	// Zero means unlimited.
	env.cfg.DeviceDailyQuota = 0
	assert.Equal(t, http.StatusAccepted, env.do("POST", path, env.userToken, ActivateInput{Duration: 3600}).Code)
}

func TestActivation_DroppedWhileLocked(t *testing.T) {
	env := newTestEnv(t)
	env.h.after = instant
	pump := testutil.CreateDevice(t, env.db, "pump", "garden", models.DeviceMotor)

	w := env.do("POST", fmt.Sprintf("/api/devices/%d/activate", pump.ID), env.userToken, ActivateInput{Duration: 10})
	require.Equal(t, http.StatusAccepted, w.Code)
	var queued models.DeviceActivation
	decode(t, w, &queued)

	require.Equal(t, http.StatusOK, env.do("POST", "/api/admin/shutdown", env.adminToken, map[string]string{"reason": "storm"}).Code)
	sent := len(env.pub.Messages())

	env.h.process(context.Background(), <-env.h.queue)

	var row models.DeviceActivation
	require.NoError(t, env.db.First(&row, queued.ID).Error)
	assert.Equal(t, models.ActivationDropped, row.Status)
	assert.Len(t, env.pub.Messages(), sent, "a dropped activation publishes nothing")
}

func TestActivation_InterruptedByShutdown(t *testing.T) {
	env := newTestEnv(t)
	env.h.after = never
	pump := testutil.CreateDevice(t, env.db, "pump", "garden", models.DeviceMotor)

	w := env.do("POST", fmt.Sprintf("/api/devices/%d/activate", pump.ID), env.userToken, ActivateInput{Duration: 600})
	require.Equal(t, http.StatusAccepted, w.Code)
	var queued models.DeviceActivation
	decode(t, w, &queued)

	done := make(chan struct{})
	req := <-env.h.queue
	go func() {
		defer close(done)
		env.h.process(context.Background(), req)
	}()
	require.Eventually(t, func() bool {
		env.h.mu.Lock()
		defer env.h.mu.Unlock()
		return env.h.running != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, env.do("POST", "/api/admin/shutdown", env.adminToken, map[string]string{"reason": "leak"}).Code)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("activation was not interrupted")
	}

	var row models.DeviceActivation
	require.NoError(t, env.db.First(&row, queued.ID).Error)
	assert.Equal(t, models.ActivationDone, row.Status)
	assert.Less(t, row.Duration, 600*time.Second, "only the time actually used is recorded")

	last, _ := env.pub.Last()
	assert.Equal(t, "off", last.Payload)
}

func TestRunActivations_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		env.h.RunActivations(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestActivation_QueueFull(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.DeviceDailyQuota = 0
	pump := testutil.CreateDevice(t, env.db, "pump", "garden", models.DeviceMotor)
	for i := 0; i < queueCapacity; i++ {
		env.h.queue <- &queuedActivation{}
	}
	w := env.do("POST", fmt.Sprintf("/api/devices/%d/activate", pump.ID), env.userToken, ActivateInput{Duration: 5})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var row models.DeviceActivation
	require.NoError(t, env.db.Last(&row).Error)
	assert.Equal(t, models.ActivationDropped, row.Status)
}

func TestRunActivations_DropsQueuedOnStop(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.DeviceDailyQuota = 90 * time.Second
	pump := testutil.CreateDevice(t, env.db, "pump", "garden", models.DeviceMotor)
	path := fmt.Sprintf("/api/devices/%d/activate", pump.ID)

	w := env.do("POST", path, env.userToken, ActivateInput{Duration: 60})
	require.Equal(t, http.StatusAccepted, w.Code)
	var queued models.DeviceActivation
	decode(t, w, &queued)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.h.RunActivations(ctx)

	assert.Empty(t, env.h.queue)
	var row models.DeviceActivation
	require.NoError(t, env.db.First(&row, queued.ID).Error)
	assert.Equal(t, models.ActivationDropped, row.Status)
	assert.Empty(t, env.pub.Messages(), "nothing was switched on")

	// The dropped request no longer counts against the quota.
	assert.Equal(t, http.StatusAccepted, env.do("POST", path, env.userToken, ActivateInput{Duration: 60}).Code)
}

func TestRecoverActivations(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.DeviceDailyQuota = 90 * time.Second
	pump := testutil.CreateDevice(t, env.db, "pump", "garden", models.DeviceMotor)
	fan := testutil.CreateDevice(t, env.db, "fan", "attic", models.DeviceSwitch)
	require.NoError(t, env.db.Model(pump).Update("on", true).Error)

	// Rows left behind by a process that died mid-run.
	running := models.DeviceActivation{DeviceID: pump.ID, RequestAt: time.Now(), Duration: time.Minute, Status: models.ActivationRunning}
	waiting := models.DeviceActivation{DeviceID: fan.ID, RequestAt: time.Now(), Duration: time.Minute, Status: models.ActivationQueued}
	require.NoError(t, env.db.Create(&running).Error)
	require.NoError(t, env.db.Create(&waiting).Error)

	require.NoError(t, env.h.RecoverActivations())

	for _, id := range []uint{running.ID, waiting.ID} {
		var row models.DeviceActivation
		require.NoError(t, env.db.First(&row, id).Error)
		assert.Equal(t, models.ActivationDropped, row.Status)
	}

	msgs := env.pub.Messages()
	require.Len(t, msgs, 1, "only the interrupted device is switched off")
	assert.Equal(t, "home/garden/pump/set", msgs[0].Topic)
	assert.Equal(t, "off", msgs[0].Payload)
	var reloaded models.Device
	require.NoError(t, env.db.First(&reloaded, pump.ID).Error)
	assert.False(t, reloaded.On)

	path := fmt.Sprintf("/api/devices/%d/activate", pump.ID)
	assert.Equal(t, http.StatusAccepted, env.do("POST", path, env.userToken, ActivateInput{Duration: 60}).Code)
}

func TestAdminShutdown_LocksWhenDevicesUnreadable(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Migrator().DropTable(&models.DeviceActivation{}, &models.Device{}))

	w := env.do("POST", "/api/admin/shutdown", env.adminToken, map[string]string{"reason": "flood"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "off_error")
	assert.True(t, env.h.Locked())
}

func TestDeviceControl_BadIDWhileLocked(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do("POST", "/api/admin/shutdown", env.adminToken, map[string]string{"reason": "storm"}).Code)

	on := true
	level := 50
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/api/devices/abc/state", env.userToken, StateInput{On: &on}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/api/devices/999/activate", env.userToken, ActivateInput{Duration: 60}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("PUT", "/api/devices/abc/level", env.userToken, LevelInput{Level: &level}).Code)
}

func TestActivation_DurationInSeconds(t *testing.T) {
	env := newTestEnv(t)
	pump := testutil.CreateDevice(t, env.db, "pump", "garden", models.DeviceMotor)

	w := env.do("POST", fmt.Sprintf("/api/devices/%d/activate", pump.ID), env.userToken, ActivateInput{Duration: 30})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"duration":30`)
	assert.NotContains(t, w.Body.String(), "30000000000")
}
