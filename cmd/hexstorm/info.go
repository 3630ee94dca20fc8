package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/hexstorm/internal/app"
	"github.com/dshills/hexstorm/internal/patch"
)

func newInfoCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info FILE",
		Short: "Describe a file and the resolved configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withDocument(cmd, args[0], app.Options{ReadOnly: true}, func(a *app.Application, doc *app.Document) error {
				if asJSON {
					out, err := patch.Summary(doc.Engine)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(out))
					return nil
				}

				cfg := a.Config()
				source := cfg.Source
				if source == "" {
					source = "(defaults)"
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "path:\t%s\n", doc.Path)
				fmt.Fprintf(tw, "size:\t%d (%#x)\n", doc.Engine.Length(), doc.Engine.Length())
				fmt.Fprintf(tw, "session:\t%s\n", doc.Engine.ID())
				undo, redo := doc.Engine.HistoryDepth()
				fmt.Fprintf(tw, "history:\t%d undo, %d redo\n", undo, redo)
				fmt.Fprintf(tw, "config:\t%s\n", source)
				fmt.Fprintf(tw, "merge window:\t%v\n", cfg.Engine.MergeWindow)
				fmt.Fprintf(tw, "undo limit:\t%d\n", cfg.Engine.MaxUndo)
				fmt.Fprintf(tw, "spill:\t%d bytes to %s\n", cfg.Engine.SpillThreshold, cfg.Engine.SpillDir)
				fmt.Fprintf(tw, "watch:\t%v\n", a.Watching())
				if a.Watching() {
					fmt.Fprintf(tw, "dropped events:\t%d\n", a.DroppedEvents())
				}
				fmt.Fprintf(tw, "script timeout:\t%v\n", cfg.Script.Timeout)
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the content summary as JSON")
	return cmd
}
