package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/hexstorm/internal/app"
	"github.com/dshills/hexstorm/internal/hexdump"
	"github.com/dshills/hexstorm/internal/patch"
)

func newDumpCmd(g *globals) *cobra.Command {
	var (
		offset    int64
		length    int64
		width     int
		charset   string
		color     string
		highlight string
		patchPath string
	)
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print a hex dump of a file",
		Long: `Print a hex dump of FILE. With --patch the edits are applied in memory
first and the modified bytes are highlighted. The file is never written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := hexdump.ParseColorMode(color)
			if err != nil {
				return err
			}
			style := hexdump.ModifiedStyle()
			if highlight != "" {
				c, err := hexdump.ParseColor(highlight)
				if err != nil {
					return err
				}
				style.Foreground = c
			}
			out := cmd.OutOrStdout()
			d, err := hexdump.New(
				hexdump.WithWidth(width),
				hexdump.WithCharset(charset),
				hexdump.WithColor(mode.Enabled(out)),
				hexdump.WithModifiedStyle(style),
			)
			if err != nil {
				return err
			}

			var p *patch.Patch
			if patchPath != "" {
				if p, err = patch.ParseFile(patchPath); err != nil {
					return err
				}
			}

			opts := app.Options{ReadOnly: p == nil}
			return g.withDocument(cmd, args[0], opts, func(a *app.Application, doc *app.Document) error {
				if p != nil {
					if _, err := p.Apply(cmd.Context(), doc.Engine); err != nil {
						return err
					}
				}
				return d.Dump(cmd.Context(), out, doc.Engine, offset, length)
			})
		},
	}
	f := cmd.Flags()
	f.Int64Var(&offset, "offset", 0, "First byte to dump")
	f.Int64Var(&length, "length", -1, "Number of bytes to dump (-1 for all)")
	f.IntVar(&width, "width", hexdump.DefaultWidth, "Bytes per line")
	f.StringVar(&charset, "charset", "US-ASCII", "Single-byte character set of the text column")
	f.StringVar(&color, "color", "auto", "Highlight modified bytes: auto, always or never")
	f.StringVar(&highlight, "highlight", "", "Color of modified bytes (#RRGGBB or palette index)")
	f.StringVar(&patchPath, "patch", "", "JSON patch to apply before dumping")
	return cmd
}
