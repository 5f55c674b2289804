package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/csheth/pdfchat/internal/pdftext/pdftest"
	"github.com/csheth/pdfchat/internal/tuitest"
)

func TestUploadReachesReadyScreen(t *testing.T) {
	t.Parallel()

	cmdDir := moduleDir(t)
	binary := buildBinary(t, cmdDir)
	work := t.TempDir()
	pdfPath := filepath.Join(work, "report.pdf")
	if err := os.WriteFile(pdfPath, pdftest.Build("Tunnels are described on this page.", "Conclusions."), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rec, err := tuitest.Run(context.Background(), tuitest.Config{
		Command: []string{binary, "-no-alt-screen"},
		Dir:     work,
		Env:     tuitest.IsolatedEnv(work),
		Width:   120,
		Height:  36,
		Steps: []tuitest.Step{
			tuitest.WaitFor("Upload a PDF"),
			tuitest.Type(pdfPath),
			tuitest.Press(tuitest.KeyEnter),
			tuitest.WaitFor("report.pdf (2 pages) is ready"),
			tuitest.Type("1"),
			tuitest.WaitFor("Conversation"),
			tuitest.Press(tuitest.KeyCtrlC),
		},
		Timeout:        20 * time.Second,
		AllowInterrupt: true,
	})
	if err != nil {
		t.Fatalf("run CLI: %v", err)
	}

	if !rec.Contains("Upload a PDF") {
		t.Fatal("upload screen never rendered")
	}
	if !rec.Contains("report.pdf (2 pages) is ready") {
		t.Fatalf("ready screen never rendered\n%s", lastFrame(rec))
	}
	if !rec.Contains("What is the main topic of this document?") {
		t.Fatalf("starter question missing\n%s", lastFrame(rec))
	}
	if !rec.Contains("Conversation") {
		t.Fatalf("chat panels never rendered\n%s", lastFrame(rec))
	}
}

func TestUnknownDocumentStaysOnUpload(t *testing.T) {
	t.Parallel()

	cmdDir := moduleDir(t)
	binary := buildBinary(t, cmdDir)
	work := t.TempDir()

	rec, err := tuitest.Run(context.Background(), tuitest.Config{
		Command: []string{binary, "-no-alt-screen", "-document", "missing"},
		Dir:     work,
		Env:     tuitest.IsolatedEnv(work),
		Steps: []tuitest.Step{
			tuitest.WaitFor("That document no longer exists."),
			tuitest.Press(tuitest.KeyCtrlC),
		},
		Timeout:        10 * time.Second,
		AllowInterrupt: true,
	})
	if err != nil {
		t.Fatalf("run CLI: %v", err)
	}
	if !rec.Contains("That document no longer exists.") {
		t.Fatalf("missing not-found notice\n%s", lastFrame(rec))
	}
}

func lastFrame(rec *tuitest.Recording) string {
	frame, ok := rec.FinalFrame()
	if !ok {
		return "(no frames)"
	}
	return frame.Plain
}

func moduleDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	return filepath.Dir(file)
}

func buildBinary(t *testing.T, cmdDir string) string {
	t.Helper()
	tmp := t.TempDir()
	name := "pdfchat-integration"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	binPath := filepath.Join(tmp, name)
	cmd := exec.Command("go", "build", "-o", binPath, ".")
	cmd.Dir = cmdDir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build CLI: %v\n%s", err, output)
	}
	return binPath
}
