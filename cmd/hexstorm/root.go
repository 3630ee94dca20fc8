package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/hexstorm/internal/app"
)

// globals holds the persistent flags.
type globals struct {
	configPath string
	logLevel   string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "hexstorm",
		Short: "Edit binary files of any size",
		Long: `hexstorm edits binary files without loading them into memory. Edits are
kept as a list of ranges over the original file and written out on save.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", app.DefaultConfigPath(), "Path to configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newDumpCmd(g),
		newPatchCmd(g),
		newScriptCmd(g),
		newInfoCmd(g),
		newVersionCmd(),
	)
	return root
}

// withDocument opens path in a fresh application, calls f and shuts the
// application down. Unsaved edits are discarded.
func (g *globals) withDocument(cmd *cobra.Command, path string, opts app.Options, f func(*app.Application, *app.Document) error) error {
	opts.ConfigPath = g.configPath
	opts.LogLevel = g.logLevel
	if opts.ScriptOutput == nil {
		opts.ScriptOutput = cmd.OutOrStdout()
	}
	a, err := app.New(opts)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	doc, err := a.Open(path)
	if err != nil {
		return err
	}
	return f(a, doc)
}

// save writes doc to out, or back to its own file when out is empty.
func save(a *app.Application, doc *app.Document, out string) error {
	if out == "" {
		return a.Save(doc)
	}
	return a.SaveAs(doc, out)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hexstorm %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		},
	}
}
