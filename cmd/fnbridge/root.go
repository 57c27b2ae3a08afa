package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cryguy/fnbridge"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fnbridge",
	Short: "Run JavaScript function handlers behind HTTP and WebSocket triggers",
	Long: `fnbridge - load a guest JavaScript handler into an embedded engine and
invoke it once per event.

The engine is QuickJS unless the binary was built with -tags v8.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fnbridge.Backend
	rootCmd.SetVersionTemplate("fnbridge ({{.Version}} engine)\n")
}

// parseHeaders turns repeated k=v flags into a header map.
func parseHeaders(specs []string) (map[string]any, error) {
	headers := make(map[string]any, len(specs))
	for _, spec := range specs {
		k, v, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q (expected name=value)", spec)
		}
		headers[strings.TrimSpace(k)] = v
	}
	return headers, nil
}

func readSource(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("--source is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(b), nil
}
