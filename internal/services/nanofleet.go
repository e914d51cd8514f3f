package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/multiversa/cortex/internal/core"
)

// ErrUnknownNanoType is returned when delegating to a type the fleet does
// not know.
var ErrUnknownNanoType = errors.New("unknown nanoaureon type")

// NanoAureon statuses.
const (
	NanoIdle    = "idle"
	NanoWorking = "working"
	NanoError   = "error"
)

// nanoSystemPrompts holds the specialization prompt per nano type. Types map
// one-to-one to task categories, minus general which the personas handle.
var nanoSystemPrompts = map[string]string{
	TaskResearcher: `Eres un NanoAureon especializado en investigación.
Tu rol es buscar, analizar y sintetizar información de forma precisa.
- Proporciona fuentes cuando sea posible
- Sé objetivo y basado en datos
- Resume los hallazgos de forma clara`,

	TaskCoder: `Eres un NanoAureon especializado en programación.
Tu rol es escribir código limpio, eficiente y bien documentado.
- Usa tipado estricto
- Sigue las mejores prácticas del lenguaje
- Incluye comentarios explicativos`,

	TaskAnalyst: `Eres un NanoAureon especializado en análisis de datos.
Tu rol es interpretar métricas, identificar patrones y generar insights.
- Usa visualizaciones mentales al explicar
- Proporciona conclusiones accionables
- Sé preciso con los números`,

	TaskWriter: `Eres un NanoAureon especializado en redacción.
Tu rol es crear contenido claro, persuasivo y bien estructurado.
- Adapta el tono al contexto
- Usa estructura jerárquica (headers, bullets)
- Sé conciso pero completo`,
}

// NanoAureon is one specialized sub-agent. Status transitions are managed by
// the fleet; a nano never touches its own fields concurrently.
type NanoAureon struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	CurrentTask string    `json:"current_task,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	systemPrompt string
}

// NanoFleet is the in-process registry of sub-agents. One nano per known type
// is created up front; delegation spawns temporary nanos when the resident
// one is busy.
type NanoFleet struct {
	mu    sync.Mutex
	fleet map[string]*NanoAureon
	pool  core.CompletionService
}

func NewNanoFleet(pool core.CompletionService) *NanoFleet {
	f := &NanoFleet{
		fleet: make(map[string]*NanoAureon),
		pool:  pool,
	}
	for _, nanoType := range []string{TaskResearcher, TaskCoder, TaskAnalyst, TaskWriter} {
		f.create(nanoType, "")
	}
	return f
}

// create registers a new nano. Caller must not hold f.mu.
func (f *NanoFleet) create(nanoType, name string) *NanoAureon {
	if name == "" {
		name = "NanoAureon." + capitalize(nanoType)
	}
	nano := &NanoAureon{
		ID:           uuid.NewString(),
		Name:         name,
		Type:         nanoType,
		Status:       NanoIdle,
		CreatedAt:    time.Now().UTC(),
		systemPrompt: nanoSystemPrompts[nanoType],
	}
	f.mu.Lock()
	f.fleet[nano.ID] = nano
	f.mu.Unlock()
	return nano
}

// List returns snapshots of every nano, ordered by name for stable output.
func (f *NanoFleet) List() []NanoAureon {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]NanoAureon, 0, len(f.fleet))
	for _, nano := range f.fleet {
		out = append(out, *nano)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delegate runs a task on an idle nano of the given type, spawning a
// temporary one when none is free. Unknown types are rejected.
func (f *NanoFleet) Delegate(ctx context.Context, nanoType, task string) (string, error) {
	if _, ok := nanoSystemPrompts[nanoType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNanoType, nanoType)
	}

	nano := f.acquire(nanoType)
	if nano == nil {
		nano = f.create(nanoType, "TempNano."+nanoType)
		f.markWorking(nano.ID, task)
	}

	result, _, err := f.pool.Complete(ctx, core.CompletionRequest{
		Prompt:       task,
		SystemPrompt: nano.systemPrompt,
		MaxTokens:    2048,
		Temperature:  0.5,
	})
	f.release(nano.ID, err == nil)
	if err != nil {
		return "", fmt.Errorf("nanoaureon %s: %w", nanoType, err)
	}
	return result, nil
}

// acquire claims the first idle nano of the type, marking it working.
func (f *NanoFleet) acquire(nanoType string) *NanoAureon {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, nano := range f.fleet {
		if nano.Type == nanoType && nano.Status == NanoIdle {
			nano.Status = NanoWorking
			return nano
		}
	}
	return nil
}

func (f *NanoFleet) markWorking(id, task string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if nano, ok := f.fleet[id]; ok {
		nano.Status = NanoWorking
		nano.CurrentTask = task
	}
}

func (f *NanoFleet) release(id string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nano, found := f.fleet[id]
	if !found {
		return
	}
	nano.CurrentTask = ""
	if ok {
		nano.Status = NanoIdle
	} else {
		nano.Status = NanoError
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
