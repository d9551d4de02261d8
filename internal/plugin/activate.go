package plugin

import (
	"github.com/ZanzyTHEbar/flow-openrouter-plugin/internal/protocol"
)

// Activate executes a follow-up action from a previously returned result.
// Every action is terminal; the host re-queries afterwards.
func (p *Plugin) Activate(req *protocol.Request) []protocol.Result {
	snap := p.store.Resolve(req.Settings)

	switch req.Method {
	case ActionCopy:
		text, ok := req.StringParam(0)
		if !ok {
			return nil
		}
		return p.copyText(text)
	case ActionOpenEditor:
		text, ok := req.StringParam(0)
		if !ok {
			return nil
		}
		return p.openEditor(snap, text)
	case ActionOpenURL:
		url, ok := req.StringParam(0)
		if !ok {
			return nil
		}
		p.openURL(url)
		return nil
	case ActionSetModel:
		model, ok := req.StringParam(0)
		if !ok {
			return nil
		}
		return p.saveModel(model)
	case ActionSetPrompt:
		file, ok := req.StringParam(0)
		if !ok {
			return nil
		}
		return p.savePrompt(file)
	}

	return nil
}
