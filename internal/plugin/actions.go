package plugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"al.essio.dev/pkg/shellescape"
	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/protocol"
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/settings"
)

func (p *Plugin) copyText(text string) []protocol.Result {
	if !p.clip.Available() {
		return []protocol.Result{newResult(
			"Clipboard unavailable",
			"No clipboard integration is available on this system",
		)}
	}

	if err := p.clip.Write(text); err != nil {
		p.logger.WithError(errorFrom(err, "clipboard write failed")).Error("copy failed")
		return []protocol.Result{newResult("Copy failed", err.Error())}
	}

	return []protocol.Result{newResult("Copied to clipboard", truncate(text, answerPreviewLen))}
}

func (p *Plugin) openEditor(snap settings.Settings, text string) []protocol.Result {
	editor := strings.TrimSpace(snap.EditorPath)
	if editor == "" || editor == settings.EditorPlaceholder {
		p.logger.WithError(precondition("editor path not configured")).Warn("open editor refused")
		return []protocol.Result{newResult(
			"Editor not configured",
			"Set editor_path in settings.json to an editor executable",
		)}
	}

	path := filepath.Join(p.tmpDir, fmt.Sprintf("openrouter-answer-%s.txt", uuid.NewString()))
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		p.logger.WithError(err).Error("could not write answer file")
		return []protocol.Result{newResult("Could not write answer file", err.Error())}
	}

	if err := p.launchEditor(editor, path); err != nil {
		p.logger.WithError(errorFrom(err, "editor launch failed")).Error("open editor failed")
		return []protocol.Result{newResult("Editor launch failed", fmt.Sprintf("%s: %v", editor, err))}
	}

	return []protocol.Result{newResult("Opened in editor", path)}
}

// The editor setting may carry arguments, so outside Windows it runs
// through the shell with only the file path quoted.
func (p *Plugin) launchEditor(editor, path string) error {
	if runtime.GOOS == "windows" {
		return p.startCmd(editor, path)
	}

	return p.startCmd("sh", "-c", fmt.Sprintf("%s %s", editor, shellescape.Quote(path)))
}

// openURL is fire and forget. Candidates are tried in order until one
// starts.
func (p *Plugin) openURL(url string) {
	var candidates [][]string

	switch runtime.GOOS {
	case "darwin":
		candidates = [][]string{{"open", url}}
	case "windows":
		candidates = [][]string{{"cmd", "/c", "start", "", url}}
	default:
		candidates = [][]string{{"xdg-open", url}, {"gio", "open", url}}
	}

	for _, c := range candidates {
		if err := p.startCmd(c[0], c[1:]...); err == nil {
			return
		}
	}

	p.logger.WithField("url", url).Warn("no command available to open url")
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	return cmd.Start()
}

func errorFrom(err error, msg string) error {
	if err == nil {
		return nil
	}

	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg).
		WithCause(err)
}

func precondition(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(msg)
}
