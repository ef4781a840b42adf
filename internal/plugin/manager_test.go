package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root, dir string, m Manifest) {
	t.Helper()

	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "poweroff", Manifest{
		Name:        "poweroff",
		Version:     "1.0.0",
		Description: "Powers the host off",
		Executable:  "poweroff",
		Actions:     []string{ActionCycleEnded},
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "poweroff" {
		t.Errorf("expected plugin name 'poweroff', got %q", plugin.Manifest.Name)
	}
	if plugin.Path != filepath.Join(tmpDir, "poweroff") {
		t.Errorf("unexpected path %q", plugin.Path)
	}
	if plugin.Executable != filepath.Join(tmpDir, "poweroff", "poweroff") {
		t.Errorf("unexpected executable %q", plugin.Executable)
	}
}

func TestManager_Discover_Skips(t *testing.T) {
	tmpDir := t.TempDir()

	writeManifest(t, tmpDir, "good", Manifest{Name: "good", Executable: "good"})
	writeManifest(t, tmpDir, "nameless", Manifest{Executable: "x"})
	writeManifest(t, tmpDir, "no-exec", Manifest{Name: "no-exec"})

	bad := filepath.Join(tmpDir, "bad")
	if err := os.MkdirAll(bad, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bad, "plugin.json"), []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "no-manifest"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "good" {
		t.Fatalf("expected only 'good' to be discovered, got %v", plugins)
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist")

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "desktop-notify", Manifest{Name: "desktop-notify", Version: "2.0.0", Executable: "desktop-notify"})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugin, err := manager.Get("desktop-notify")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if plugin.Manifest.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %q", plugin.Manifest.Version)
	}

	if _, err := manager.Get("nonexistent-plugin"); err != ErrPluginNotFound {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_ForAction(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, "b", Manifest{Name: "b", Executable: "b", Actions: []string{ActionCycleEnded}})
	writeManifest(t, tmpDir, "a", Manifest{Name: "a", Executable: "a"})
	writeManifest(t, tmpDir, "c", Manifest{Name: "c", Executable: "c", Actions: []string{"other"}})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	got := manager.ForAction(ActionCycleEnded)
	if len(got) != 2 || got[0].Manifest.Name != "a" || got[1].Manifest.Name != "b" {
		names := make([]string, len(got))
		for i, p := range got {
			names[i] = p.Manifest.Name
		}
		t.Errorf("ForAction() = %v, want [a b]", names)
	}
}

func TestManager_PluginDir(t *testing.T) {
	pluginDir := "/path/to/plugins"
	manager := NewManager(pluginDir)

	if manager.PluginDir() != pluginDir {
		t.Errorf("expected plugin dir %q, got %q", pluginDir, manager.PluginDir())
	}
}
