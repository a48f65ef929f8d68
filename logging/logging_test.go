package logging

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-home-dashboard/models"
)

type memStore struct {
	mu    sync.Mutex
	lines []models.Log
	err   error
}

func (s *memStore) SaveLog(l *models.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	l.ID = uint(len(s.lines) + 1)
	s.lines = append(s.lines, *l)
	return nil
}

func TestAuditHook_PersistsOnlyAuditedEntries(t *testing.T) {
	store := &memStore{}
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(NewAuditHook(store, hub))

	logger.Info("plain request log")
	logger.WithFields(logrus.Fields{FieldAudit: true, FieldUserID: uint(7)}).Info("device 3 switched on")

	require.Len(t, store.lines, 1)
	assert.Equal(t, "device 3 switched on", store.lines[0].Message)
	assert.Equal(t, "info", store.lines[0].Level)
	require.NotNil(t, store.lines[0].UserID)
	assert.Equal(t, uint(7), *store.lines[0].UserID)

	select {
	case line := <-ch:
		assert.Equal(t, "device 3 switched on", line.Message)
	case <-time.After(time.Second):
		t.Fatal("hub did not receive the line")
	}
}

func TestAudit_IgnoresConsoleLevel(t *testing.T) {
	store := &memStore{}
	Install(store, nil)
	defer Install(nil, nil)
	logrus.SetLevel(logrus.WarnLevel)
	defer logrus.SetLevel(logrus.InfoLevel)

	Audit(3).Info("user eve logged in")
	Audit(3).Debug("user eve opened the terminal")

	require.Len(t, store.lines, 2)
	assert.Equal(t, "info", store.lines[0].Level)
	assert.Equal(t, "debug", store.lines[1].Level)
}

func TestAuditHook_StoreError(t *testing.T) {
	hook := NewAuditHook(&memStore{err: errors.New("db down")}, nil)
	e := logrus.NewEntry(logrus.New()).WithField(FieldAudit, true)
	e.Message = "x"
	assert.Error(t, hook.Fire(e))
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	for i := 0; i < subscriberBuffer*2; i++ {
		hub.Publish(models.Log{Message: "line"})
	}
	assert.Equal(t, 1, hub.Subscribers())
	cancel()
	cancel() // idempotent
	assert.Equal(t, 0, hub.Subscribers())
}

func TestSetup(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	Setup("debug", "json")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	_, isJSON := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	Setup("nonsense", "text")
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
