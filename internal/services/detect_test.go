package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectTaskType(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"Investiga el mercado de IA en México", TaskResearcher},
		{"busca fuentes sobre pgvector", TaskResearcher},
		{"Escribe el código de un worker pool", TaskCoder},
		{"crea un endpoint nuevo", TaskCoder},
		{"redacta un correo para el cliente", TaskWriter},
		{"draft a launch announcement", TaskWriter},
		{"analiza los datos del último trimestre", TaskResearcher},
		{"muéstrame las metrics de la semana", TaskAnalyst},
		{"hola, ¿cómo estás?", TaskGeneral},
		{"", TaskGeneral},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectTaskType(tc.content), "content: %q", tc.content)
	}
}

func TestDetectTaskTypeCaseInsensitive(t *testing.T) {
	assert.Equal(t, TaskResearcher, DetectTaskType("INVESTIGA esto"))
	assert.Equal(t, TaskWriter, DetectTaskType("WRITE this down"))
}

func TestDetectAgent(t *testing.T) {
	assert.Equal(t, AgentRuna, DetectAgent("¿Cómo suena la voz de la marca?"))
	assert.Equal(t, AgentRuna, DetectAgent("diseña el ritual de onboarding"))
	assert.Equal(t, AgentRuna, DetectAgent("pregúntale a Runa"))
	assert.Equal(t, AgentAureon, DetectAgent("configura la integración con Notion"))
	assert.Equal(t, AgentAureon, DetectAgent("hola"))
}
