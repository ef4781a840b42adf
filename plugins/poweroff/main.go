// Package main provides a notifier plugin that powers the host off once the
// monitored cycle has ended.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	RunID   string          `json:"run_id"`
	Verdict string          `json:"verdict"`
	Elapsed float64         `json:"elapsed"`
	Ticks   int             `json:"ticks"`
	Config  json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config controls the shutdown.
type Config struct {
	// Command is the shutdown command line.
	Command []string `json:"command"`
	// Verdicts restricts the shutdown to these verdicts. Empty means all.
	Verdicts []string `json:"verdicts"`
	// DryRun reports the command instead of running it.
	DryRun bool `json:"dry_run"`
}

var defaultCommand = []string{"sudo", "shutdown", "-h", "now"}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "cycle-ended" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	cfg := Config{Command: defaultCommand}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}
	if len(cfg.Command) == 0 {
		cfg.Command = defaultCommand
	}

	if !wanted(cfg.Verdicts, req.Verdict) {
		writeSuccessResponse(map[string]any{"skipped": true, "verdict": req.Verdict})
		return
	}

	if cfg.DryRun {
		writeSuccessResponse(map[string]any{"dry_run": true, "command": cfg.Command})
		return
	}

	if err := run(cfg.Command); err != nil {
		writeErrorResponse(fmt.Sprintf("shutdown failed: %v", err))
		return
	}

	writeSuccessResponse(map[string]any{"command": cfg.Command})
}

func wanted(verdicts []string, verdict string) bool {
	if len(verdicts) == 0 {
		return true
	}
	for _, v := range verdicts {
		if v == verdict {
			return true
		}
	}
	return false
}

// run executes the command and returns any error.
func run(command []string) error {
	cmd := exec.Command(command[0], command[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(data any) {
	resp := Response{Success: true}
	if raw, err := json.Marshal(data); err == nil {
		resp.Data = raw
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
