package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multiversa/cortex/internal/models"
)

func TestTaskTrackerLifecycle(t *testing.T) {
	tracker := NewTaskTracker()

	created := tracker.Create("t1", "hola")
	assert.Equal(t, models.StatusActive, created.Status)
	require.Len(t, created.Steps, 3)
	assert.Equal(t, models.StatusActive, created.Steps[0].Status)
	assert.Equal(t, models.StatusPending, created.Steps[1].Status)

	tracker.UpdateStep("t1", 1, models.StatusComplete, "Mensaje parseado")
	tracker.UpdateStep("t1", 2, models.StatusActive, "")

	task := tracker.Get("t1")
	require.NotNil(t, task)
	assert.Equal(t, models.StatusComplete, task.Steps[0].Status)
	assert.Equal(t, "Mensaje parseado", task.Steps[0].Result)
	assert.Equal(t, 2, task.CurrentStep)

	tracker.Complete("t1", "respuesta final", nil)
	task = tracker.Get("t1")
	require.NotNil(t, task)
	assert.Equal(t, models.StatusComplete, task.Status)
	assert.Equal(t, "respuesta final", task.Response)
	for _, step := range task.Steps {
		assert.Equal(t, models.StatusComplete, step.Status)
	}
}

func TestTaskTrackerFail(t *testing.T) {
	tracker := NewTaskTracker()
	tracker.Create("t1", "hola")
	tracker.Fail("t1", "provider down")

	task := tracker.Get("t1")
	require.NotNil(t, task)
	assert.Equal(t, models.StatusFailed, task.Status)
	assert.Equal(t, "provider down", task.Response)
}

func TestTaskTrackerUnknownID(t *testing.T) {
	tracker := NewTaskTracker()
	assert.Nil(t, tracker.Get("missing"))
	tracker.UpdateStep("missing", 1, models.StatusComplete, "x")
	tracker.Complete("missing", "x", nil)
}

func TestTaskTrackerGetReturnsSnapshot(t *testing.T) {
	tracker := NewTaskTracker()
	tracker.Create("t1", "hola")

	snapshot := tracker.Get("t1")
	snapshot.Steps[0].Status = models.StatusFailed

	fresh := tracker.Get("t1")
	assert.Equal(t, models.StatusActive, fresh.Steps[0].Status)
}

func TestNanoFleetDefaults(t *testing.T) {
	fleet := NewNanoFleet(newFakePool("hecho"))

	nanos := fleet.List()
	require.Len(t, nanos, 4)
	types := make(map[string]bool)
	for _, n := range nanos {
		assert.Equal(t, NanoIdle, n.Status)
		types[n.Type] = true
	}
	assert.True(t, types[TaskResearcher])
	assert.True(t, types[TaskCoder])
	assert.True(t, types[TaskAnalyst])
	assert.True(t, types[TaskWriter])
}

func TestNanoFleetDelegate(t *testing.T) {
	pool := newFakePool("análisis terminado")
	fleet := NewNanoFleet(pool)

	result, err := fleet.Delegate(context.Background(), TaskAnalyst, "analiza las ventas")
	require.NoError(t, err)
	assert.Equal(t, "análisis terminado", result)

	req := pool.lastRequest()
	assert.Equal(t, "analiza las ventas", req.Prompt)
	assert.Equal(t, 2048, req.MaxTokens)
	assert.InDelta(t, 0.5, req.Temperature, 0.001)

	for _, n := range fleet.List() {
		assert.Equal(t, NanoIdle, n.Status)
	}
}

func TestNanoFleetDelegateUnknownType(t *testing.T) {
	fleet := NewNanoFleet(newFakePool("x"))

	_, err := fleet.Delegate(context.Background(), "plumber", "arregla la tubería")
	assert.ErrorIs(t, err, ErrUnknownNanoType)
}

func TestNanoFleetDelegateErrorMarksNano(t *testing.T) {
	pool := newFakePool("")
	pool.err = errors.New("provider down")
	fleet := NewNanoFleet(pool)

	_, err := fleet.Delegate(context.Background(), TaskCoder, "escribe un parser")
	require.Error(t, err)

	errored := 0
	for _, n := range fleet.List() {
		if n.Type == TaskCoder && n.Status == NanoError {
			errored++
		}
	}
	assert.Equal(t, 1, errored)
}

func TestTaskTrackerCleanupAfterGrace(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the cleanup grace period")
	}
	tracker := NewTaskTracker()
	tracker.Create("t1", "hola")
	tracker.Complete("t1", "listo", nil)

	require.NotNil(t, tracker.Get("t1"))

	deadline := time.Now().Add(cleanupGrace + 2*time.Second)
	for tracker.Get("t1") != nil {
		if time.Now().After(deadline) {
			t.Fatal("task was not cleaned up after the grace period")
		}
		time.Sleep(100 * time.Millisecond)
	}
}
