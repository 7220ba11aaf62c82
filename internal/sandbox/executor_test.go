package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestExecutor(t *testing.T) (*OSExecutor, string) {
	t.Helper()
	root := t.TempDir()
	return NewOSExecutor(root, 200*time.Millisecond), root
}

func TestCreateSandboxMakesDistinctDirectories(t *testing.T) {
	e, root := newTestExecutor(t)
	now := time.Now()

	d1, err := e.CreateSandbox(1, now)
	if err != nil {
		t.Fatalf("CreateSandbox: %v", err)
	}
	d2, err := e.CreateSandbox(1, now)
	if err != nil {
		t.Fatalf("CreateSandbox: %v", err)
	}
	if d1 == d2 {
		t.Errorf("expected distinct sandbox directories, got %q twice", d1)
	}
	if !strings.HasPrefix(d1, root) || !strings.HasPrefix(d2, root) {
		t.Errorf("sandbox dirs must live under root %q: %q %q", root, d1, d2)
	}
}

func TestPlaceSourceRejectsInvalidFilename(t *testing.T) {
	e, _ := newTestExecutor(t)
	dir, err := e.CreateSandbox(1, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.PlaceSource(dir, "../escape.c", []byte("x")); err == nil {
		t.Fatal("expected error for path-escaping filename")
	}
	if err := e.PlaceSource(dir, "main.c", []byte("int main(){return 0;}")); err != nil {
		t.Fatalf("PlaceSource: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "main.c"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "int main(){return 0;}" {
		t.Errorf("written contents = %q", data)
	}
}

func TestRunStepCapturesOutputAndExitCode(t *testing.T) {
	e, _ := newTestExecutor(t)
	dir, err := e.CreateSandbox(1, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	var gotPid int
	result, err := e.RunStep(context.Background(), dir, "echo hello; echo oops 1>&2; exit 3", 2*time.Second, 4096, func(pid int) {
		gotPid = pid
	})
	if err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if gotPid == 0 {
		t.Error("onStart was not called with a pid")
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if strings.TrimSpace(string(result.Stdout)) != "hello" {
		t.Errorf("Stdout = %q", result.Stdout)
	}
	if strings.TrimSpace(string(result.Stderr)) != "oops" {
		t.Errorf("Stderr = %q", result.Stderr)
	}
	if result.TimedOut {
		t.Error("TimedOut = true, want false")
	}
}

func TestRunStepTruncatesOverLimitOutput(t *testing.T) {
	e, _ := newTestExecutor(t)
	dir, err := e.CreateSandbox(1, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.RunStep(context.Background(), dir, "yes | head -c 10000", 2*time.Second, 64, nil)
	if err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if !strings.Contains(string(result.Stdout), "truncated") {
		t.Errorf("expected truncation marker, got %q", result.Stdout)
	}
	if len(result.Stdout) > 64+64 {
		t.Errorf("Stdout length %d far exceeds limit", len(result.Stdout))
	}
}

func TestRunStepEscalatesToSigkillOnTimeout(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.KillGrace = 100 * time.Millisecond
	dir, err := e.CreateSandbox(1, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	result, err := e.RunStep(context.Background(), dir, "trap '' TERM; sleep 5", 200*time.Millisecond, 4096, nil)
	if err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if !result.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("took %v, expected SIGKILL escalation well under 2s", elapsed)
	}
}

func TestRetireRemovesDirectory(t *testing.T) {
	e, _ := newTestExecutor(t)
	dir, err := e.CreateSandbox(1, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.PlaceSource(dir, "a.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := e.Retire(dir); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("directory still exists after Retire: %v", err)
	}
}
