package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kjk/movielib/export"
	"github.com/kjk/movielib/movie"
	"github.com/kjk/movielib/u"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var errNotFound = errors.New("movie not found")

func formatMovie(m *movie.Movie) string {
	s := fmt.Sprintf("%d: %s", m.ID, m.Name)
	if m.ReleaseYear > 0 {
		s += fmt.Sprintf(" (%d)", m.ReleaseYear)
	}
	if m.Rating != "" {
		s += " " + m.Rating
	}
	if m.RunLength > 0 {
		s += fmt.Sprintf(", %d min", m.RunLength)
	}
	if m.IsClassic {
		s += ", classic"
	}
	if m.Description != "" {
		s += "\n    " + m.Description
	}
	return s
}

func printMovie(w io.Writer, m *movie.Movie) {
	fmt.Fprintln(w, formatMovie(m))
}

// movieFlags adds flags for values of a movie
func movieFlags(fs *pflag.FlagSet, m *movie.Movie) {
	fs.StringVar(&m.Name, "name", "", "name of the movie")
	fs.StringVar(&m.Description, "description", "", "description")
	fs.StringVar(&m.Rating, "rating", "", "rating e.g. PG-13")
	fs.IntVar(&m.RunLength, "run-length", 0, "length in minutes")
	fs.IntVar(&m.ReleaseYear, "release-year", 0, "year of release")
	fs.BoolVar(&m.IsClassic, "classic", false, "is it a classic")
}

func (c *cli) newAddCmd() *cobra.Command {
	var m movie.Movie
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := c.db.Add(m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added ")
			printMovie(cmd.OutOrStdout(), &added)
			return nil
		},
	}
	movieFlags(cmd.Flags(), &m)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) newListCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if format != "" && format != "text" {
				f, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				movies, err := movie.List(c.db)
				if err != nil {
					return err
				}
				return export.Write(out, movies, f)
			}
			movies, errFn := c.db.GetAll()
			n := 0
			for m := range movies {
				printMovie(out, &m)
				n++
			}
			if err := errFn(); err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(out, "no movies")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, yaml or toon")
	return cmd
}

// lookup finds a movie by --id or --name flag
func (c *cli) lookup(cmd *cobra.Command, id int, name string) (movie.Movie, error) {
	var m movie.Movie
	var ok bool
	var err error
	switch {
	case cmd.Flags().Changed("id"):
		m, ok, err = c.db.GetByID(id)
	case name != "":
		m, ok, err = c.db.GetByName(name)
	default:
		return m, errors.New("must provide --id or --name")
	}
	if err != nil {
		return m, err
	}
	if !ok {
		return m, errNotFound
	}
	return m, nil
}

func (c *cli) newGetCmd() *cobra.Command {
	var id int
	var name string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show a movie by id or name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.lookup(cmd, id, name)
			if err != nil {
				return err
			}
			printMovie(cmd.OutOrStdout(), &m)
			return nil
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "id of the movie")
	cmd.Flags().StringVar(&name, "name", "", "name of the movie, case-insensitive")
	cmd.MarkFlagsMutuallyExclusive("id", "name")
	return cmd
}

func (c *cli) newUpdateCmd() *cobra.Command {
	var id int
	var values movie.Movie
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change values of a movie",
		Long:  "Change values of a movie. Values not given on command line are kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok, err := c.db.GetByID(id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: id %d", errNotFound, id)
			}
			fs := cmd.Flags()
			if fs.Changed("name") {
				m.Name = values.Name
			}
			if fs.Changed("description") {
				m.Description = values.Description
			}
			if fs.Changed("rating") {
				m.Rating = values.Rating
			}
			if fs.Changed("run-length") {
				m.RunLength = values.RunLength
			}
			if fs.Changed("release-year") {
				m.ReleaseYear = values.ReleaseYear
			}
			if fs.Changed("classic") {
				m.IsClassic = values.IsClassic
			}
			if err = c.db.Update(id, m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated ")
			printMovie(cmd.OutOrStdout(), &m)
			return nil
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "id of the movie")
	_ = cmd.MarkFlagRequired("id")
	movieFlags(cmd.Flags(), &values)
	return cmd
}

// confirm asks a yes / no question, default is no
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (c *cli) newDeleteCmd() *cobra.Command {
	var id int
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				m, ok, err := c.db.GetByID(id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: id %d", errNotFound, id)
				}
				if !confirm(cmd.InOrStdin(), out, fmt.Sprintf("delete '%s'?", formatMovie(&m))) {
					fmt.Fprintln(out, "not deleted")
					return nil
				}
			}
			if err := c.db.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(out, "deleted movie %d\n", id)
			return nil
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "id of the movie")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "don't ask for confirmation")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (c *cli) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show statistics about the storage file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.fileDB.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:      %s\n", c.fileDB.Path)
			fmt.Fprintf(out, "size:      %s\n", u.FormatSize(st.Size))
			fmt.Fprintf(out, "movies:    %d\n", st.Movies)
			fmt.Fprintf(out, "classics:  %d\n", st.Classics)
			fmt.Fprintf(out, "max id:    %d\n", st.MaxID)
			fmt.Fprintf(out, "malformed: %d\n", st.Malformed)
			return nil
		},
	}
}
