package services

import (
	"sync"
	"time"

	"github.com/multiversa/cortex/internal/models"
)

// cleanupGrace keeps finished tasks queryable briefly after the stream ends.
const cleanupGrace = 5 * time.Second

// Task is the observable progress of one in-flight streamed chat turn.
type Task struct {
	ID          string                 `json:"id"`
	Message     string                 `json:"message"`
	Status      models.CardStatus      `json:"status"`
	Steps       []models.ReasoningStep `json:"steps"`
	CurrentStep int                    `json:"current_step"`
	CreatedAt   time.Time              `json:"created_at"`
	Response    string                 `json:"response,omitempty"`
	Card        *models.ResponseCard   `json:"card,omitempty"`
}

// TaskTracker is the in-process registry of streaming tasks. Entries are
// removed a grace period after completion so late status polls still hit.
type TaskTracker struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewTaskTracker() *TaskTracker {
	return &TaskTracker{tasks: make(map[string]*Task)}
}

// Create registers a task with the three fixed pipeline steps.
func (t *TaskTracker) Create(taskID, message string) *Task {
	task := &Task{
		ID:      taskID,
		Message: message,
		Status:  models.StatusActive,
		Steps: []models.ReasoningStep{
			{Number: 1, Description: "Analizando mensaje", Status: models.StatusActive},
			{Number: 2, Description: "Procesando contexto", Status: models.StatusPending},
			{Number: 3, Description: "Generando respuesta", Status: models.StatusPending},
		},
		CreatedAt: time.Now().UTC(),
	}
	t.mu.Lock()
	t.tasks[taskID] = task
	t.mu.Unlock()
	return task
}

// UpdateStep advances one step's status. Unknown ids are ignored.
func (t *TaskTracker) UpdateStep(taskID string, stepNumber int, status models.CardStatus, result string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[taskID]
	if !ok {
		return
	}
	for i := range task.Steps {
		if task.Steps[i].Number == stepNumber {
			task.Steps[i].Status = status
			if result != "" {
				task.Steps[i].Result = result
			}
			break
		}
	}
	task.CurrentStep = stepNumber
}

// Complete marks the task finished, storing the response, forcing every step
// to complete, and scheduling removal after the grace period.
func (t *TaskTracker) Complete(taskID, response string, card *models.ResponseCard) {
	t.mu.Lock()
	task, ok := t.tasks[taskID]
	if ok {
		task.Status = models.StatusComplete
		task.Response = response
		task.Card = card
		for i := range task.Steps {
			if task.Steps[i].Status != models.StatusComplete {
				task.Steps[i].Status = models.StatusComplete
			}
		}
	}
	t.mu.Unlock()
	if ok {
		t.scheduleCleanup(taskID)
	}
}

// Fail marks the task failed and schedules removal.
func (t *TaskTracker) Fail(taskID, message string) {
	t.mu.Lock()
	task, ok := t.tasks[taskID]
	if ok {
		task.Status = models.StatusFailed
		task.Response = message
	}
	t.mu.Unlock()
	if ok {
		t.scheduleCleanup(taskID)
	}
}

// Get returns a snapshot of the task, or nil when unknown or cleaned up.
func (t *TaskTracker) Get(taskID string) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[taskID]
	if !ok {
		return nil
	}
	snapshot := *task
	snapshot.Steps = append([]models.ReasoningStep(nil), task.Steps...)
	return &snapshot
}

func (t *TaskTracker) scheduleCleanup(taskID string) {
	time.AfterFunc(cleanupGrace, func() {
		t.mu.Lock()
		delete(t.tasks, taskID)
		t.mu.Unlock()
	})
}
