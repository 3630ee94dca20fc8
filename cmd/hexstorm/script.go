package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/hexstorm/internal/app"
)

func newScriptCmd(g *globals) *cobra.Command {
	var (
		output string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "script FILE SCRIPT.lua",
		Short: "Run a Lua script against a file",
		Long: `Run SCRIPT.lua with FILE loaded and save the result if the script changed
it. Scripts reach the content through the global "content" table:

  local at = content.find("\x7fELF")
  if at then content.overwrite_byte(at + 4, 2) end

Execution is limited by script.timeout.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withDocument(cmd, args[0], app.Options{}, func(a *app.Application, doc *app.Document) error {
				r := a.NewRunner(doc)
				defer r.Close()
				if err := r.RunFile(cmd.Context(), args[1]); err != nil {
					return err
				}
				if dryRun || (!doc.IsModified() && output == "") {
					return nil
				}
				return save(a, doc, output)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "Write the result here instead of FILE")
	f.BoolVar(&dryRun, "dry-run", false, "Run without saving")
	return cmd
}
