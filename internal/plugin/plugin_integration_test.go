package plugin

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// buildPlugin compiles one of the bundled plugins into a fresh plugin dir.
func buildPlugin(t *testing.T, name string) *Manager {
	t.Helper()

	src := findPluginDir(name)
	if src == "" {
		t.Skipf("%s plugin sources not found", name)
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	root := t.TempDir()
	dst := filepath.Join(root, name)
	if err := os.MkdirAll(dst, 0755); err != nil {
		t.Fatal(err)
	}

	manifest, err := os.ReadFile(filepath.Join(src, "plugin.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dst, "plugin.json"), manifest, 0644); err != nil {
		t.Fatal(err)
	}

	build := exec.Command("go", "build", "-o", filepath.Join(dst, name), ".")
	build.Dir = src
	if out, err := build.CombinedOutput(); err != nil {
		t.Skipf("failed to build %s plugin: %v: %s", name, err, out)
	}

	mgr := NewManager(root)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return mgr
}

func TestPlugin_Poweroff_DryRun_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if runtime.GOOS != "linux" {
		t.Skip("poweroff plugin only works on Linux")
	}

	mgr := buildPlugin(t, "poweroff")
	plug, err := mgr.Get("poweroff")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	req := cycleEnded()
	req.Config = []byte(`{"dry_run": true}`)

	resp, err := NewExecutor(10000).Execute(context.Background(), plug, req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success for dry run, got error %q", resp.Error)
	}
}

func TestPlugin_DesktopNotify_UnknownAction_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	mgr := buildPlugin(t, "desktop-notify")
	plug, err := mgr.Get("desktop-notify")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	resp, err := NewExecutor(10000).Execute(context.Background(), plug, &Request{Action: "unknown"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for unknown action")
	}
}

func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	for _, dir := range candidates {
		manifest := filepath.Join(dir, "plugin.json")
		if _, err := os.Stat(manifest); err == nil {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return ""
			}
			return abs
		}
	}
	return ""
}
