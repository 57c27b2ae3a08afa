package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cryguy/fnbridge"
	"github.com/cryguy/fnbridge/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, phrase := range []string{"fnbridge", "serve", "invoke", "deploy", "functions"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLIInvoke(t *testing.T) {
	src := writeFile(t, "echo.js", `function handler(context, event) {
  return [201, event.method + " " + event.body + " " + event.headers["x-id"]];
}`)
	output, err := executeCommand(rootCmd, "invoke", "--source", src, "--body", "ping", "--header", "x-id=7")
	if err != nil {
		t.Fatalf("invoke: %v\n%s", err, output)
	}
	var out invokeOutput
	if err := json.Unmarshal([]byte(output), &out); err != nil {
		t.Fatalf("output %q: %v", output, err)
	}
	if out.StatusCode != 201 || out.Body != "POST ping 7" || out.ContentType != "text/plain" {
		t.Errorf("got %+v", out)
	}
}

func TestCLIInvokeFailure(t *testing.T) {
	src := writeFile(t, "bad.js", `function handler() { return 42; }`)
	output, err := executeCommand(rootCmd, "invoke", "--source", src, "--body", "")
	if err == nil {
		t.Fatal("expected error for failed invocation")
	}
	if !strings.Contains(output, "Unknown result type number") {
		t.Errorf("output = %q", output)
	}
}

func TestCLIDeployAndList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "functions.db")
	src := writeFile(t, "greet.js", `function greet() { return "hi"; }`)

	output, err := executeCommand(rootCmd, "deploy", "--db", db, "--name", "greeter", "--source", src, "--handler", "greet")
	if err != nil {
		t.Fatalf("deploy: %v\n%s", err, output)
	}
	if !strings.Contains(output, "deployed greeter") {
		t.Errorf("deploy output = %q", output)
	}

	output, err = executeCommand(rootCmd, "functions", "--db", db)
	if err != nil {
		t.Fatalf("functions: %v", err)
	}
	if !strings.Contains(output, "greeter") || !strings.Contains(output, "greet") {
		t.Errorf("functions output = %q", output)
	}
}

func TestCLIDeployRejectsBrokenCode(t *testing.T) {
	db := filepath.Join(t.TempDir(), "functions.db")
	src := writeFile(t, "broken.js", `function other() {}`)
	_, err := executeCommand(rootCmd, "deploy", "--db", db, "--name", "broken", "--source", src, "--handler", "handler")
	if err == nil || !strings.Contains(err.Error(), "can't find handler") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"a=1", "b = x=y"})
	if err != nil {
		t.Fatal(err)
	}
	if h["a"] != "1" || h["b"] != " x=y" {
		t.Errorf("headers = %v", h)
	}
	if _, err := parseHeaders([]string{"novalue"}); err == nil {
		t.Error("expected error")
	}
}

func TestProvideMetrics(t *testing.T) {
	out, err := provideMetrics()
	if err != nil {
		t.Fatal(err)
	}
	out.Collector.Load("fn", nil)

	rec := httptest.NewRecorder()
	out.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fnbridge_") {
		t.Errorf("metrics body missing fnbridge series:\n%s", rec.Body.String())
	}
}

func TestProvidePoolFromStore(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "functions.db")
	src := writeFile(t, "hi.js", `function hi() { return "stored"; }`)
	if _, err := executeCommand(rootCmd, "deploy", "--db", db, "--name", "hi", "--source", src, "--handler", "hi"); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Parse([]byte("[function]\nname = \"hi\"\npool_size = 2\n[store]\npath = \"" + filepath.ToSlash(db) + "\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	lc := fxtest.NewLifecycle(t)
	pool, err := providePool(lc, cfg, zap.NewNop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	lc.RequireStart()
	defer lc.RequireStop()

	if pool.Size() != 2 {
		t.Errorf("size = %d", pool.Size())
	}
	resp, err := pool.Invoke(context.Background(), &fnbridge.Context{}, &fnbridge.MemoryEvent{})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = fnbridge.FreeResponse(resp) }()
	if resp.Failed() || string(resp.Body) != "stored" {
		t.Errorf("resp = %+v", resp)
	}
}
