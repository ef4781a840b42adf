// Package plugin discovers and runs external notifier plugins. A plugin is a
// directory holding a plugin.json manifest and an executable that reads one
// JSON Request on stdin and writes one JSON Response on stdout.
package plugin

import "encoding/json"

// ActionCycleEnded is sent once a monitored cycle reached a final verdict.
const ActionCycleEnded = "cycle-ended"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the plugin declares action.
// A manifest without actions accepts every action.
func (m Manifest) Supports(action string) bool {
	if len(m.Actions) == 0 {
		return true
	}
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action  string          `json:"action"`
	RunID   string          `json:"run_id,omitempty"`
	Verdict string          `json:"verdict,omitempty"`
	Elapsed float64         `json:"elapsed"`
	Ticks   int             `json:"ticks"`
	Config  json.RawMessage `json:"config,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
