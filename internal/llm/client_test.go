package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProvider(t *testing.T) {
	tests := []struct {
		input   string
		want    Provider
		wantErr bool
	}{
		{"openai", ProviderOpenAI, false},
		{"ollama", ProviderOllama, false},
		{"anthropic", ProviderAnthropic, false},
		{"gemini", ProviderGemini, false},
		{"", "", true},
		{"gpt4", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ValidateProvider(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClientUnavailable(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, Config{})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewClient(ctx, Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewClient(ctx, Config{Provider: "unknown"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, DefaultOpenAIModel, DefaultModel(ProviderOpenAI))
	assert.Equal(t, DefaultOllamaModel, DefaultModel(ProviderOllama))
	assert.Equal(t, DefaultAnthropicModel, DefaultModel(ProviderAnthropic))
	assert.Equal(t, DefaultGeminiModel, DefaultModel(ProviderGemini))
	assert.Empty(t, DefaultModel("other"))
}
