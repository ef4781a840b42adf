// Package main provides a notifier plugin that shows a desktop notification
// when the monitored cycle has ended. It uses notify-send on Linux and
// AppleScript on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
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

// Config customises the notification.
type Config struct {
	Title string `json:"title"`
}

// messages maps verdicts to the notification body.
var messages = map[string]string{
	"ending_detected": "Cycle finished",
	"no_led_detected": "Panel is off",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "cycle-ended":
		if err := notify(req); err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	writeSuccessResponse()
}

func notify(req Request) error {
	cfg := Config{Title: "ledwatch"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	body := buildMessage(req)

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, cfg.Title)
		return runCommand("osascript", "-e", script)
	default:
		return runCommand("notify-send", cfg.Title, body)
	}
}

// buildMessage renders the verdict, the elapsed time and the tick count.
func buildMessage(req Request) string {
	msg, ok := messages[req.Verdict]
	if !ok {
		msg = strings.ReplaceAll(req.Verdict, "_", " ")
	}
	elapsed := time.Duration(req.Elapsed * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%s after %s (%d checks)", msg, elapsed, req.Ticks)
}

func runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
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
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
