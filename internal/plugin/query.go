package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/openrouter"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/protocol"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/settings"
)

const answerPreviewLen = 100

// Query handles the host's live query dispatch. The settings snapshot is
// resolved once and passed down; nothing else reads configuration.
func (p *Plugin) Query(ctx context.Context, raw string, host map[string]any) []protocol.Result {
	snap := p.store.Resolve(host)

	query := strings.TrimSpace(raw)
	if query == "" {
		return []protocol.Result{p.welcomeResult(snap)}
	}

	if results, ok := p.runCommand(ctx, query, snap); ok {
		return results
	}

	if !strings.Contains(query, snap.Delimiter) {
		return []protocol.Result{p.previewResult(query, snap)}
	}

	text := strings.TrimSpace(strings.SplitN(query, snap.Delimiter, 2)[0])
	if text == "" {
		return []protocol.Result{p.welcomeResult(snap)}
	}

	return p.submit(ctx, text, snap)
}

// ContextMenu is invoked with the selected result's context payload. For
// answers it offers the full-text actions, and the website entry is always
// appended.
func (p *Plugin) ContextMenu(data any) []protocol.Result {
	results := []protocol.Result{}

	if answer, ok := data.(string); ok && strings.TrimSpace(answer) != "" {
		results = append(results,
			protocol.Result{
				Title:    "Copy full answer",
				SubTitle: truncate(answer, answerPreviewLen),
				IcoPath:  Icon,
				JSONRPC:  &protocol.Action{Method: ActionCopy, Parameters: []any{answer}},
			},
			protocol.Result{
				Title:    "Open full answer in editor",
				SubTitle: "Write the answer to a file and open it",
				IcoPath:  Icon,
				JSONRPC:  &protocol.Action{Method: ActionOpenEditor, Parameters: []any{answer}},
			},
		)
	}

	results = append(results, protocol.Result{
		Title:    "Visit OpenRouter website",
		SubTitle: "Open OpenRouter in your browser",
		IcoPath:  Icon,
		JSONRPC:  &protocol.Action{Method: ActionOpenURL, Parameters: []any{websiteURL}},
	})

	return results
}

func (p *Plugin) runCommand(ctx context.Context, query string, snap settings.Settings) ([]protocol.Result, bool) {
	if key, ok := strings.CutPrefix(query, cmdSetKey+" "); ok {
		return p.saveKey(strings.TrimSpace(key)), true
	}
	if model, ok := strings.CutPrefix(query, cmdSetModel+" "); ok {
		return p.saveModel(strings.TrimSpace(model)), true
	}
	if query == cmdModels {
		return p.listModels(ctx), true
	}
	if query == cmdPrompts {
		return p.listPrompts(snap), true
	}

	return nil, false
}

func (p *Plugin) submit(ctx context.Context, text string, snap settings.Settings) []protocol.Result {
	if snap.APIKey == "" {
		p.logger.WithError(precondition("api key not configured")).Warn("query submitted without api key")
		return []protocol.Result{newResult(
			"API Key not set",
			"Use 'ortr setkey YOUR_API_KEY' or set OPENROUTER_API_KEY",
		)}
	}

	messages := []openrouter.Message{}
	if prompt := p.prompts.Load(snap.SystemPromptFile); prompt != "" {
		messages = append(messages, openrouter.Message{Role: "system", Content: prompt})
	}
	messages = append(messages, openrouter.Message{Role: "user", Content: text})

	answer, err := p.newClient(snap.APIKey).Complete(ctx, snap.DefaultModel, messages)
	if err != nil {
		return []protocol.Result{p.completionError(err)}
	}

	return p.answerResults(answer)
}

func (p *Plugin) completionError(err error) protocol.Result {
	var apiErr *openrouter.APIError
	if errors.As(err, &apiErr) {
		p.logger.WithField("status", apiErr.StatusCode).Warn("completion rejected upstream")
		return newResult(fmt.Sprintf("Error: %d", apiErr.StatusCode), apiErr.Message)
	}

	p.logger.WithError(err).Error("completion failed")
	return newResult("Error", err.Error())
}

func (p *Plugin) answerResults(answer string) []protocol.Result {
	return []protocol.Result{
		{
			Title:       "Answer",
			SubTitle:    truncate(answer, answerPreviewLen),
			IcoPath:     Icon,
			JSONRPC:     &protocol.Action{Method: ActionCopy, Parameters: []any{answer}},
			ContextData: answer,
		},
		{
			Title:       "Open in editor",
			SubTitle:    "Write the full answer to a file and open it",
			IcoPath:     Icon,
			JSONRPC:     &protocol.Action{Method: ActionOpenEditor, Parameters: []any{answer}},
			ContextData: answer,
		},
	}
}

func (p *Plugin) welcomeResult(snap settings.Settings) protocol.Result {
	return newResult(
		fmt.Sprintf("%s AI", NamePretty),
		fmt.Sprintf("Type a question and end it with %q to submit. Model: %s", snap.Delimiter, snap.DefaultModel),
	)
}

func (p *Plugin) previewResult(query string, snap settings.Settings) protocol.Result {
	return newResult(
		fmt.Sprintf("Ask: %s", query),
		fmt.Sprintf("End with %q to ask using %s", snap.Delimiter, snap.DefaultModel),
	)
}

func (p *Plugin) saveKey(key string) []protocol.Result {
	if key == "" {
		return []protocol.Result{newResult("No key given", "Usage: ortr setkey YOUR_API_KEY")}
	}

	if err := p.store.SetKey("api_key", key); err != nil {
		p.logger.WithError(err).Error("saving api key failed")
		return []protocol.Result{newResult("Failed to save API key", "There was an error saving your API key")}
	}

	return []protocol.Result{newResult("API Key saved successfully", "Your OpenRouter API key has been saved")}
}

func (p *Plugin) saveModel(model string) []protocol.Result {
	if model == "" {
		return []protocol.Result{newResult("No model given", "Usage: ortr setmodel MODEL_ID")}
	}

	if err := p.store.SetKey("default_model", model); err != nil {
		p.logger.WithError(err).Error("saving default model failed")
		return []protocol.Result{newResult("Failed to set model", "There was an error saving your default model")}
	}

	return []protocol.Result{newResult(
		fmt.Sprintf("Model set to %s", model),
		"This model will be used for your queries",
	)}
}

func (p *Plugin) savePrompt(file string) []protocol.Result {
	if err := p.store.SetKey("system_prompt_file", file); err != nil {
		p.logger.WithError(err).Error("saving system prompt failed")
		return []protocol.Result{newResult("Failed to set prompt", "There was an error saving your prompt choice")}
	}

	return []protocol.Result{newResult(
		fmt.Sprintf("Prompt set to %s", file),
		"This prompt will be prepended to your queries",
	)}
}

func (p *Plugin) listModels(ctx context.Context) []protocol.Result {
	models, err := p.newClient("").ListModels(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("model catalog fetch failed")
	}
	if len(models) == 0 {
		return []protocol.Result{newResult("No models found", "Failed to retrieve models from OpenRouter")}
	}

	results := make([]protocol.Result, 0, len(models))
	for _, m := range models {
		results = append(results, protocol.Result{
			Title:    m.ID,
			SubTitle: fmt.Sprintf("Set as default model by typing 'ortr setmodel %s'", m.ID),
			IcoPath:  Icon,
			JSONRPC:  &protocol.Action{Method: ActionSetModel, Parameters: []any{m.ID}},
		})
	}

	return results
}

func (p *Plugin) listPrompts(snap settings.Settings) []protocol.Result {
	files := p.prompts.List()

	results := make([]protocol.Result, 0, len(files))
	for _, f := range files {
		subtitle := "Use as system prompt"
		if f == snap.SystemPromptFile {
			subtitle = "Current system prompt"
		}

		results = append(results, protocol.Result{
			Title:    f,
			SubTitle: subtitle,
			IcoPath:  Icon,
			JSONRPC:  &protocol.Action{Method: ActionSetPrompt, Parameters: []any{f}},
		})
	}

	return results
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max]) + "..."
}
