package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/hexstorm/internal/app"
	"github.com/dshills/hexstorm/internal/patch"
)

func newPatchCmd(g *globals) *cobra.Command {
	var (
		opsPath string
		output  string
		report  bool
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "patch FILE --ops PATCH.json",
		Short: "Apply a JSON edit list to a file",
		Long: `Apply the ops of a JSON patch document to FILE and save the result, in
place or to --output. The document is an array of ops, or an object with an
"ops" array:

  [{"op": "overwrite", "at": "0x10", "hex": "90 90"},
   {"op": "insert", "at": 0, "text": "MAGIC"},
   {"op": "delete", "at": 64, "length": 16}]

Nothing is written if any op fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := patch.ParseFile(opsPath)
			if err != nil {
				return err
			}
			return g.withDocument(cmd, args[0], app.Options{}, func(a *app.Application, doc *app.Document) error {
				res, err := p.Apply(cmd.Context(), doc.Engine)
				if err != nil {
					return err
				}
				a.Logger().Info("applied %d ops to %s", res.Applied, doc.Path)
				// The report describes the edits, so it is taken before
				// saving resets the content to clean.
				var summary []byte
				if report {
					if summary, err = patch.Report(doc.Engine, res); err != nil {
						return err
					}
				}
				if !dryRun && (doc.IsModified() || output != "") {
					if err := save(a, doc, output); err != nil {
						return err
					}
				}
				if report {
					fmt.Fprintln(cmd.OutOrStdout(), string(summary))
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opsPath, "ops", "", "JSON patch document")
	f.StringVarP(&output, "output", "o", "", "Write the result here instead of FILE")
	f.BoolVar(&report, "report", false, "Print a JSON summary after applying")
	f.BoolVar(&dryRun, "dry-run", false, "Apply in memory only")
	cmd.MarkFlagRequired("ops")
	return cmd
}
