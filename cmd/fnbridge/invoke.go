package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cryguy/fnbridge"
	"github.com/cryguy/fnbridge/internal/logging"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Load a handler and invoke it once",
	Long: `Load a handler from a file, invoke it with one event and print the
normalized response as JSON. Guest log output goes to stderr.`,
	Args: cobra.NoArgs,
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().String("source", "", "Handler source file (.js or .ts)")
	invokeCmd.Flags().String("handler", "handler", "Handler name (name, a.b or module:name)")
	invokeCmd.Flags().String("body", "", "Event body")
	invokeCmd.Flags().String("content-type", "text/plain", "Event content type")
	invokeCmd.Flags().StringArray("header", nil, "Event header name=value (repeatable)")
	invokeCmd.Flags().String("method", "POST", "Event method")
	invokeCmd.Flags().String("path", "/", "Event path")
	rootCmd.AddCommand(invokeCmd)
}

type invokeOutput struct {
	StatusCode  int               `json:"status_code,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body"`
	Error       string            `json:"error,omitempty"`
	DurationMS  float64           `json:"duration_ms"`
}

func runInvoke(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("source")
	handler, _ := cmd.Flags().GetString("handler")
	body, _ := cmd.Flags().GetString("body")
	contentType, _ := cmd.Flags().GetString("content-type")
	headerSpecs, _ := cmd.Flags().GetStringArray("header")
	method, _ := cmd.Flags().GetString("method")
	evPath, _ := cmd.Flags().GetString("path")

	source, err := readSource(path)
	if err != nil {
		return err
	}
	headers, err := parseHeaders(headerSpecs)
	if err != nil {
		return err
	}

	zl, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	cfg := fnbridge.Config{
		Name:     "invoke",
		Filename: filepath.Base(path),
		Logger:   logging.New(zl),
	}
	if strings.HasSuffix(path, ".ts") {
		cfg.Loader = "ts"
	}
	w, err := fnbridge.Load(cfg, source, handler)
	if err != nil {
		return err
	}
	defer w.Close()

	resp := w.Invoke(&fnbridge.Context{}, &fnbridge.MemoryEvent{
		EventID:      uuid.NewString(),
		EventVersion: 1,
		Trigger:      "sync",
		Kind:         "cli",
		Type:         contentType,
		Data:         []byte(body),
		HeaderMap:    headers,
		Time:         time.Now(),
		EventPath:    evPath,
		EventURL:     evPath,
		EventMethod:  method,
	})
	defer func() { _ = fnbridge.FreeResponse(resp) }()

	out := invokeOutput{
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Headers:     resp.Headers,
		Body:        string(resp.Body),
		Error:       resp.ErrorMessage,
		DurationMS:  float64(resp.Duration.Microseconds()) / 1000,
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if resp.Failed() {
		return fmt.Errorf("invocation failed")
	}
	return nil
}
