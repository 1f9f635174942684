package main

import (
	"bytes"
	"fmt"

	"github.com/kjk/movielib/atomicfile"
	"github.com/kjk/movielib/export"
	"github.com/kjk/movielib/movie"
	"github.com/spf13/cobra"
)

func (c *cli) newExportCmd() *cobra.Command {
	var format string
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all movies as json, yaml or toon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			movies, err := movie.List(c.db)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return export.Write(cmd.OutOrStdout(), movies, f)
			}
			var buf bytes.Buffer
			if err = export.Write(&buf, movies, f); err != nil {
				return err
			}
			if err = atomicfile.WriteFile(output, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d movies to %s\n", len(movies), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json, yaml or toon")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write to, default is stdout")
	return cmd
}
