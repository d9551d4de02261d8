// Package plugin implements the Flow Launcher provider for OpenRouter:
// query dispatch, the follow-up result actions and the context menu.
package plugin

import (
	"context"
	"os"
	"path/filepath"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"

	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/openrouter"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/prompts"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/protocol"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/settings"
)

var (
	Name       = "openrouter"
	NamePretty = "OpenRouter"
)

// Icon is relative to the plugin directory, resolved by the host.
const Icon = "Images/app.png"

// Host-invoked methods.
const (
	MethodQuery       = "query"
	MethodContextMenu = "context_menu"
)

// Follow-up actions referenced from results. The set is closed; Handle
// refuses anything outside it.
const (
	ActionCopy       = "copy"
	ActionOpenEditor = "open_editor"
	ActionOpenURL    = "open_url"
	ActionSetModel   = "set_model"
	ActionSetPrompt  = "set_prompt"
)

// Command words recognized ahead of delimiter handling.
const (
	cmdSetKey   = "setkey"
	cmdSetModel = "setmodel"
	cmdModels   = "models"
	cmdPrompts  = "prompts"
)

const websiteURL = "https://openrouter.ai"

// completionClient is the outbound surface the dispatcher needs.
type completionClient interface {
	Complete(ctx context.Context, model string, messages []openrouter.Message) (string, error)
	ListModels(ctx context.Context) ([]openrouter.ModelInfo, error)
}

// clipboardWriter keeps clipboard availability an explicit check instead
// of a failure path.
type clipboardWriter interface {
	Available() bool
	Write(text string) error
}

type systemClipboard struct{}

func (systemClipboard) Available() bool {
	return !clipboard.Unsupported
}

func (systemClipboard) Write(text string) error {
	return clipboard.WriteAll(text)
}

// Plugin serves one host dispatch per process. Construction wires the real
// integrations; tests swap the narrow seams.
type Plugin struct {
	store   *settings.Store
	prompts *prompts.Library
	logger  *logrus.Logger

	clip      clipboardWriter
	newClient func(apiKey string) completionClient
	startCmd  func(name string, args ...string) error
	tmpDir    string
}

func New(configDir string) *Plugin {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	ctx := context.TODO()
	assert.Assert(ctx, configDir != "", "config dir should not be empty")

	defaults := settings.Defaults()
	assert.Assert(ctx, defaults.Delimiter != "", "default delimiter should not be empty")
	assert.Assert(ctx, defaults.DefaultModel != "", "default model should not be empty")

	settings.LoadDotEnv(configDir)

	return &Plugin{
		store:   settings.NewStore(configDir),
		prompts: prompts.NewLibrary(filepath.Join(configDir, "prompts")),
		logger:  logger,
		clip:    systemClipboard{},
		newClient: func(apiKey string) completionClient {
			return openrouter.NewClient(apiKey)
		},
		startCmd: startDetached,
		tmpDir:   os.TempDir(),
	}
}

// Handle routes one host dispatch. Unknown methods log and return an empty
// envelope so the host always reads valid JSON.
func (p *Plugin) Handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	switch req.Method {
	case MethodQuery:
		raw, _ := req.StringParam(0)
		return protocol.NewResponse(p.Query(ctx, raw, req.Settings))
	case MethodContextMenu:
		var data any
		if len(req.Parameters) > 0 {
			data = req.Parameters[0]
		}
		return protocol.NewResponse(p.ContextMenu(data))
	case ActionCopy, ActionOpenEditor, ActionOpenURL, ActionSetModel, ActionSetPrompt:
		return protocol.NewResponse(p.Activate(req))
	default:
		p.logger.WithField("provider", Name).WithField("method", req.Method).Warn("unknown method")
		return protocol.NewResponse(nil)
	}
}

func newResult(title, subtitle string) protocol.Result {
	return protocol.Result{Title: title, SubTitle: subtitle, IcoPath: Icon}
}
