package daemon

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderUnit(t *testing.T) {
	got := renderUnit("/usr/local/bin/powerd", []string{"--config", "/etc/powerd.yaml"})
	want := "ExecStart=/usr/local/bin/powerd daemon --config /etc/powerd.yaml\n"
	if !strings.Contains(got, want) {
		t.Errorf("renderUnit() = %q, want it to contain %q", got, want)
	}
	if !strings.Contains(renderUnit("/bin/powerd", nil), "ExecStart=/bin/powerd daemon\n") {
		t.Errorf("renderUnit() without args has a wrong ExecStart")
	}
}

func TestUnitPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	got, err := UnitPath()
	if err != nil {
		t.Fatalf("UnitPath() error = %v", err)
	}
	if want := filepath.Join(dir, "systemd", "user", "powerd.service"); got != want {
		t.Errorf("UnitPath() = %q, want %q", got, want)
	}
}
