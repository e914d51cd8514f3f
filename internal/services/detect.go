package services

import "strings"

// Task types detected from message content.
const (
	TaskResearcher = "researcher"
	TaskCoder      = "coder"
	TaskWriter     = "writer"
	TaskAnalyst    = "analyst"
	TaskGeneral    = "general"
)

// Agent personas.
const (
	AgentAureon = "aureon"
	AgentRuna   = "runa"
)

// Keyword lists are data, not logic, so deployments can tune them. Matching
// is case-insensitive substring; first matching task type wins.
var taskKeywords = []struct {
	Type     string
	Keywords []string
}{
	{TaskResearcher, []string{"investiga", "busca", "research", "analiza", "fuentes", "citas"}},
	{TaskCoder, []string{"código", "programa", "crea", "code", "build"}},
	{TaskWriter, []string{"escribe", "redacta", "write", "draft"}},
	{TaskAnalyst, []string{"datos", "metrics", "analyze", "analytics"}},
}

var runaTriggers = []string{
	"runa", "alma", "tono", "voz", "narrativa", "paleta", "ritual",
	"copy", "copywriting", "brand", "marca", "visual", "diseño",
	"poesía", "filosofía", "inspira", "emocional", "cómo suena",
}

// DetectTaskType classifies message content into a task category.
func DetectTaskType(content string) string {
	lower := strings.ToLower(content)
	for _, task := range taskKeywords {
		for _, kw := range task.Keywords {
			if strings.Contains(lower, kw) {
				return task.Type
			}
		}
	}
	return TaskGeneral
}

// DetectAgent selects the persona for a message. Aureon is the technical
// default; Runa answers when the content touches narrative or brand.
func DetectAgent(content string) string {
	lower := strings.ToLower(content)
	for _, kw := range runaTriggers {
		if strings.Contains(lower, kw) {
			return AgentRuna
		}
	}
	return AgentAureon
}
