package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/cryguy/fnbridge"
	"github.com/cryguy/fnbridge/internal/store"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Store a function in the function database",
	Long: `Validate a handler by loading it once, then store it under a name so
"serve" can run it with [function] name = "...".`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List stored functions",
	Args:  cobra.NoArgs,
	RunE:  runFunctions,
}

func init() {
	deployCmd.Flags().String("db", "functions.db", "Function database path")
	deployCmd.Flags().String("name", "", "Function name (required)")
	deployCmd.Flags().String("source", "", "Handler source file")
	deployCmd.Flags().String("handler", "handler", "Handler name")
	deployCmd.Flags().String("loader", "", "js or ts (default: from file extension)")
	functionsCmd.Flags().String("db", "functions.db", "Function database path")
	rootCmd.AddCommand(deployCmd, functionsCmd)
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	db, _ := cmd.Flags().GetString("db")
	name, _ := cmd.Flags().GetString("name")
	path, _ := cmd.Flags().GetString("source")
	handler, _ := cmd.Flags().GetString("handler")
	loader, _ := cmd.Flags().GetString("loader")

	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("--name is required")
	}
	source, err := readSource(path)
	if err != nil {
		return err
	}
	if loader == "" {
		loader = "js"
		if filepath.Ext(path) == ".ts" {
			loader = "ts"
		}
	}

	// Refuse code that would not load.
	w, err := fnbridge.Load(fnbridge.Config{Name: name, Loader: loader, Filename: filepath.Base(path)}, source, handler)
	if err != nil {
		return fmt.Errorf("validating %s: %w", name, err)
	}
	w.Close()

	s, err := store.Open(db)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Put(&store.Function{Name: name, Source: source, Handler: handler, Loader: loader}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deployed %s (%s)\n", name, handler)
	return nil
}

func runFunctions(cmd *cobra.Command, _ []string) error {
	db, _ := cmd.Flags().GetString("db")
	s, err := store.Open(db)
	if err != nil {
		return err
	}
	defer s.Close()
	fns, err := s.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tHANDLER\tLOADER\tUPDATED")
	for _, fn := range fns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", fn.Name, fn.Handler, fn.Loader, fn.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
