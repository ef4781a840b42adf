package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ayusman/ledwatch/internal/plugin"
)

// PluginSink runs every discovered plugin that handles the cycle-ended action.
type PluginSink struct {
	Manager  *plugin.Manager
	Executor *plugin.Executor
	// Config holds per-plugin configuration keyed by plugin name.
	Config map[string]json.RawMessage
}

// NewPluginSink discovers the plugins of dir.
func NewPluginSink(dir string, timeoutMs int, config map[string]json.RawMessage) (*PluginSink, error) {
	m := plugin.NewManager(dir)
	if err := m.Discover(); err != nil {
		return nil, fmt.Errorf("failed to discover plugins: %w", err)
	}
	return &PluginSink{
		Manager:  m,
		Executor: plugin.NewExecutor(timeoutMs),
		Config:   config,
	}, nil
}

// Deliver implements Sink. Every plugin runs even if an earlier one failed.
func (s *PluginSink) Deliver(ctx context.Context, ev Event) error {
	if err := validate(ev); err != nil {
		return err
	}

	var sinks Multi
	for _, p := range s.Manager.ForAction(plugin.ActionCycleEnded) {
		p := p
		sinks = append(sinks, SinkFunc(func(ctx context.Context, ev Event) error {
			return s.run(ctx, p, ev)
		}))
	}
	return sinks.Deliver(ctx, ev)
}

func (s *PluginSink) run(ctx context.Context, p *plugin.Plugin, ev Event) error {
	req := &plugin.Request{
		Action:  plugin.ActionCycleEnded,
		RunID:   ev.RunID,
		Verdict: ev.Verdict.String(),
		Elapsed: ev.ElapsedSeconds(),
		Ticks:   ev.Ticks,
		Config:  s.Config[p.Manifest.Name],
	}

	resp, err := s.Executor.Execute(ctx, p, req)
	if err != nil {
		return fmt.Errorf("plugin %s: %w", p.Manifest.Name, err)
	}
	if !resp.Success {
		return fmt.Errorf("plugin %s: %s", p.Manifest.Name, resp.Error)
	}

	log.Printf("Plugin %s notified", p.Manifest.Name)
	return nil
}
