package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kjk/movielib/journal"
	"github.com/spf13/cobra"
)

func (c *cli) newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show changes recorded in the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.config.Journal
			if path == "" {
				return errors.New("journal is not configured, use --journal or MOVIEDB_JOURNAL")
			}
			entries, errFn := journal.Read(path)
			var all []journal.Entry
			for e := range entries {
				all = append(all, e)
			}
			if err := errFn(); err != nil {
				return err
			}
			if limit > 0 && len(all) > limit {
				all = all[len(all)-limit:]
			}
			out := cmd.OutOrStdout()
			for _, e := range all {
				fmt.Fprintf(out, "%s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Name)
				for _, line := range strings.Split(e.Payload, "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "only show last n changes")
	return cmd
}
