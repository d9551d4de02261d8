package plugin

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/openrouter"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/prompts"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/settings"
)

type fakeClient struct {
	answer  string
	err     error
	models  []openrouter.ModelInfo
	listErr error

	completeCalls int
	listCalls     int
	gotAPIKey     string
	gotModel      string
	gotMessages   []openrouter.Message
}

func (f *fakeClient) Complete(_ context.Context, model string, messages []openrouter.Message) (string, error) {
	f.completeCalls++
	f.gotModel = model
	f.gotMessages = messages

	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeClient) ListModels(_ context.Context) ([]openrouter.ModelInfo, error) {
	f.listCalls++
	return f.models, f.listErr
}

type memClipboard struct {
	available bool
	writeErr  error
	text      string
	writes    int
}

func (m *memClipboard) Available() bool {
	return m.available
}

func (m *memClipboard) Write(text string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.text = text
	return nil
}

type cmdRecorder struct {
	calls [][]string
	err   error
}

func (r *cmdRecorder) start(name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.err
}

type testPlugin struct {
	*Plugin
	dir    string
	client *fakeClient
	clip   *memClipboard
	cmds   *cmdRecorder
}

func newTestPlugin(t *testing.T) *testPlugin {
	t.Helper()
	t.Setenv(settings.EnvAPIKey, "")
	t.Setenv("FLOW_OPENROUTER_API_KEY", "")

	dir := t.TempDir()
	client := &fakeClient{answer: "a fine answer"}
	clip := &memClipboard{available: true}
	cmds := &cmdRecorder{}

	p := New(dir)
	p.logger.SetOutput(io.Discard)
	p.clip = clip
	p.newClient = func(apiKey string) completionClient {
		client.gotAPIKey = apiKey
		return client
	}
	p.startCmd = cmds.start
	p.tmpDir = t.TempDir()

	return &testPlugin{Plugin: p, dir: dir, client: client, clip: clip, cmds: cmds}
}

func (tp *testPlugin) saveSettings(t *testing.T, mutate func(*settings.Settings)) {
	t.Helper()
	cfg := settings.Defaults()
	mutate(cfg)
	require.NoError(t, tp.store.Save(cfg))
}

func TestQueryEmptyInputShowsWelcome(t *testing.T) {
	tp := newTestPlugin(t)

	results := tp.Query(context.Background(), "   ", nil)

	require.Len(t, results, 1)
	require.Equal(t, "OpenRouter AI", results[0].Title)
	require.Contains(t, results[0].SubTitle, settings.DefaultDelimiter)
	require.Contains(t, results[0].SubTitle, settings.DefaultModel)
	require.Zero(t, tp.client.completeCalls)
}

func TestQueryWithoutDelimiterIsPreviewOnly(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })

	for _, input := range []string{"what is go", "hello world", "modelsfoo", "setkeys"} {
		results := tp.Query(context.Background(), input, nil)
		require.Len(t, results, 1, "input %q", input)
		require.Equal(t, "Ask: "+input, results[0].Title)
		require.Nil(t, results[0].JSONRPC)
	}

	require.Zero(t, tp.client.completeCalls)
	require.Zero(t, tp.client.listCalls)
}

func TestQuerySubmitSendsTrimmedPrefix(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })

	tp.Query(context.Background(), "  what is go  || ignored tail", nil)

	require.Equal(t, 1, tp.client.completeCalls)
	require.Equal(t, "sk-or-test", tp.client.gotAPIKey)
	require.Equal(t, settings.DefaultModel, tp.client.gotModel)
	require.Len(t, tp.client.gotMessages, 1)
	require.Equal(t, "user", tp.client.gotMessages[0].Role)
	require.Equal(t, "what is go", tp.client.gotMessages[0].Content)
}

func TestQuerySubmitWithoutKey(t *testing.T) {
	tp := newTestPlugin(t)

	results := tp.Query(context.Background(), "what is go ||", nil)

	require.Len(t, results, 1)
	require.Equal(t, "API Key not set", results[0].Title)
	require.Contains(t, results[0].SubTitle, "setkey")
	require.Zero(t, tp.client.completeCalls)
}

func TestQuerySubmitSuccess(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })
	tp.client.answer = "Go is a statically typed language."

	results := tp.Query(context.Background(), "what is go ||", nil)

	require.Len(t, results, 2)

	require.Equal(t, "Answer", results[0].Title)
	require.Equal(t, tp.client.answer, results[0].SubTitle)
	require.Equal(t, ActionCopy, results[0].JSONRPC.Method)
	require.Equal(t, []any{tp.client.answer}, results[0].JSONRPC.Parameters)
	require.Equal(t, tp.client.answer, results[0].ContextData)

	require.Equal(t, "Open in editor", results[1].Title)
	require.Equal(t, ActionOpenEditor, results[1].JSONRPC.Method)
	require.Equal(t, []any{tp.client.answer}, results[1].JSONRPC.Parameters)
}

func TestQueryAnswerTruncatedAfter100Chars(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })
	tp.client.answer = strings.Repeat("a", 150)

	results := tp.Query(context.Background(), "long ||", nil)

	require.Equal(t, strings.Repeat("a", 100)+"...", results[0].SubTitle)
	require.Equal(t, tp.client.answer, results[0].ContextData, "context keeps the full answer")
}

func TestQueryAnswerAtBoundaryKeptWhole(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })
	tp.client.answer = strings.Repeat("b", 100)

	results := tp.Query(context.Background(), "exact ||", nil)

	require.Equal(t, tp.client.answer, results[0].SubTitle)
}

func TestQueryUpstreamErrorResult(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })
	tp.client.err = &openrouter.APIError{StatusCode: 400, Message: "bad request"}

	results := tp.Query(context.Background(), "oops ||", nil)

	require.Len(t, results, 1)
	require.Contains(t, results[0].Title, "400")
	require.Equal(t, "bad request", results[0].SubTitle)
}

func TestQueryTransportErrorResult(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })
	tp.client.err = errors.New("dial tcp: connection refused")

	results := tp.Query(context.Background(), "oops ||", nil)

	require.Len(t, results, 1)
	require.Equal(t, "Error", results[0].Title)
	require.Contains(t, results[0].SubTitle, "connection refused")
}

func TestQuerySystemPromptPrecedesUserMessage(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })

	promptPath := filepath.Join(tp.dir, "prompts", settings.DefaultPromptFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(promptPath), 0o755))
	require.NoError(t, os.WriteFile(promptPath, []byte("Answer briefly."), 0o600))

	tp.Query(context.Background(), "what is go ||", nil)

	require.Len(t, tp.client.gotMessages, 2)
	require.Equal(t, "system", tp.client.gotMessages[0].Role)
	require.Equal(t, "Answer briefly.", tp.client.gotMessages[0].Content)
	require.Equal(t, "user", tp.client.gotMessages[1].Role)
}

func TestQueryNoSystemMessageWhenPromptMissing(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })

	tp.Query(context.Background(), "what is go ||", nil)

	require.Len(t, tp.client.gotMessages, 1)
	require.Equal(t, "user", tp.client.gotMessages[0].Role)
}

func TestQueryEmptySubmissionShowsWelcome(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })

	results := tp.Query(context.Background(), " || trailing", nil)

	require.Len(t, results, 1)
	require.Equal(t, "OpenRouter AI", results[0].Title)
	require.Zero(t, tp.client.completeCalls)
}

func TestQueryDelimiterFromHostStore(t *testing.T) {
	tp := newTestPlugin(t)
	tp.saveSettings(t, func(s *settings.Settings) { s.APIKey = "sk-or-test" })

	tp.Query(context.Background(), "hola ;; rest", map[string]any{"delimiter": ";;"})

	require.Equal(t, 1, tp.client.completeCalls)
	last := tp.client.gotMessages[len(tp.client.gotMessages)-1]
	require.Equal(t, "hola", last.Content)
}

func TestSetKeyCommand(t *testing.T) {
	tp := newTestPlugin(t)

	results := tp.Query(context.Background(), "setkey sk-or-fresh", nil)

	require.Len(t, results, 1)
	require.Equal(t, "API Key saved successfully", results[0].Title)
	require.Equal(t, "sk-or-fresh", tp.store.Resolve(nil).APIKey)
}

func TestSetKeyCommandWithoutValue(t *testing.T) {
	tp := newTestPlugin(t)

	// A bare "setkey" is not a command, it falls through to the preview.
	results := tp.Query(context.Background(), "setkey ", nil)
	require.Len(t, results, 1)
	require.Equal(t, "Ask: setkey", results[0].Title)
	require.Empty(t, tp.store.Resolve(nil).APIKey)

	results = tp.saveKey("")
	require.Equal(t, "No key given", results[0].Title)
}

func TestSetModelCommand(t *testing.T) {
	tp := newTestPlugin(t)

	results := tp.Query(context.Background(), "setmodel openai/gpt-4o", nil)

	require.Equal(t, "Model set to openai/gpt-4o", results[0].Title)
	require.Equal(t, "openai/gpt-4o", tp.store.Resolve(nil).DefaultModel)
}

func TestModelsCommand(t *testing.T) {
	tp := newTestPlugin(t)
	tp.client.models = []openrouter.ModelInfo{{ID: "openai/gpt-4o"}, {ID: "meta-llama/llama-3-70b"}}

	results := tp.Query(context.Background(), "models", nil)

	require.Len(t, results, 2)
	require.Equal(t, "openai/gpt-4o", results[0].Title)
	require.Equal(t, ActionSetModel, results[0].JSONRPC.Method)
	require.Equal(t, []any{"openai/gpt-4o"}, results[0].JSONRPC.Parameters)
	require.Equal(t, 1, tp.client.listCalls)
	require.Zero(t, tp.client.completeCalls)
}

func TestModelsCommandFetchFailure(t *testing.T) {
	tp := newTestPlugin(t)
	tp.client.listErr = errors.New("catalog down")

	results := tp.Query(context.Background(), "models", nil)

	require.Len(t, results, 1)
	require.Equal(t, "No models found", results[0].Title)
	require.Equal(t, "Failed to retrieve models from OpenRouter", results[0].SubTitle)
}

func TestPromptsCommand(t *testing.T) {
	tp := newTestPlugin(t)

	results := tp.Query(context.Background(), "prompts", nil)

	require.Len(t, results, 1)
	require.Equal(t, prompts.DefaultFile, results[0].Title)
	require.Equal(t, "Current system prompt", results[0].SubTitle)
	require.Equal(t, ActionSetPrompt, results[0].JSONRPC.Method)
}

func TestContextMenuWithAnswer(t *testing.T) {
	tp := newTestPlugin(t)

	results := tp.ContextMenu("the full answer")

	require.Len(t, results, 3)
	require.Equal(t, "Copy full answer", results[0].Title)
	require.Equal(t, ActionCopy, results[0].JSONRPC.Method)
	require.Equal(t, "Open full answer in editor", results[1].Title)
	require.Equal(t, "Visit OpenRouter website", results[2].Title)
	require.Equal(t, []any{"https://openrouter.ai"}, results[2].JSONRPC.Parameters)
}

func TestContextMenuWithoutAnswer(t *testing.T) {
	tp := newTestPlugin(t)

	results := tp.ContextMenu(nil)

	require.Len(t, results, 1)
	require.Equal(t, "Visit OpenRouter website", results[0].Title)
}
