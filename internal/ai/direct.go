package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/Omashka/circles-sub001/internal/config"
	"github.com/Omashka/circles-sub001/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// directBackend calls the model provider straight from the client, using
// a locally held credential. The model is built lazily so a missing API
// key surfaces as a typed dispatch failure instead of a startup error.
type directBackend struct {
	cfg config.Config

	once    sync.Once
	llm     llms.Model
	initErr error
}

var _ backend = (*directBackend)(nil)

func newDirectBackend(cfg config.Config) *directBackend {
	return &directBackend{cfg: cfg}
}

func (d *directBackend) name() string { return "direct" }

func (d *directBackend) model() (llms.Model, error) {
	d.once.Do(func() {
		d.llm, d.initErr = buildModel(d.cfg)
	})
	return d.llm, d.initErr
}

func buildModel(cfg config.Config) (llms.Model, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err := ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, &Error{Code: CodeServerFailure, Msg: "create ollama model", Err: err}
		}
		return model, nil

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, &Error{Code: CodeAPIKeyMissing, Msg: "OpenAI API key required"}
		}
		model, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, &Error{Code: CodeServerFailure, Msg: "create openai model", Err: err}
		}
		return model, nil

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, &Error{Code: CodeAPIKeyMissing, Msg: "Anthropic API key required"}
		}
		model, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, &Error{Code: CodeServerFailure, Msg: "create anthropic model", Err: err}
		}
		return model, nil
	}

	return nil, &Error{Code: CodeServerFailure,
		Msg: fmt.Sprintf("unsupported LLM provider: %s", cfg.LLMProvider)}
}

// generate runs one system+user prompt round trip.
func (d *directBackend) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	model, err := d.model()
	if err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := model.GenerateContent(ctx, messages)
	if err != nil {
		return "", classifyTransport(err)
	}
	if len(response.Choices) == 0 {
		return "", &Error{Code: CodeServerFailure, Msg: "no response choices"}
	}
	return response.Choices[0].Content, nil
}

func (d *directBackend) summarizeVoiceNote(ctx context.Context, payload models.OperationPayload) (Outcome, error) {
	text, err := d.generate(ctx, voiceNoteSystemPrompt, voiceNotePrompt(payload.Text, payload.ContactName))
	if err != nil {
		return Outcome{}, err
	}

	result := models.ParseSummary(text)
	summary := result.Summary()
	return Outcome{Summary: &summary, Degraded: result.Degraded}, nil
}

func (d *directBackend) processScreenshot(ctx context.Context, payload models.OperationPayload) (Outcome, error) {
	text, err := d.generate(ctx, screenshotSystemPrompt, screenshotPrompt(payload.Text, payload.Candidates))
	if err != nil {
		return Outcome{}, err
	}

	shot, degraded := models.ParseScreenshotSummary(text)
	return Outcome{Screenshot: &shot, Degraded: degraded}, nil
}

func (d *directBackend) generateGiftIdeas(ctx context.Context, payload models.OperationPayload) (Outcome, error) {
	text, err := d.generate(ctx, giftIdeasSystemPrompt,
		giftIdeasPrompt(payload.ContactName, payload.Interests, payload.Budget))
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Ideas: models.ParseGiftIdeas(text)}, nil
}
