package main

import (
	"context"
	"fmt"

	"github.com/kjk/movielib/journal"
	"github.com/kjk/movielib/log"
	"github.com/kjk/movielib/movie"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli holds state shared by all commands
type cli struct {
	rootCmd    *cobra.Command
	v          *viper.Viper
	configFile string

	config *config
	fileDB *movie.FileDatabase
	// fileDB or an in-memory copy of it in --memory mode
	db      movie.Database
	journal *journal.Writer
}

func newCLI() *cli {
	c := &cli{
		v: viper.New(),
	}
	c.createRootCommand()
	c.addCommands()
	return c
}

func (c *cli) createRootCommand() {
	c.rootCmd = &cobra.Command{
		Use:   "moviedb",
		Short: "Manage a catalog of movies stored in a text file",
		Long: `moviedb adds, lists, updates and deletes movies stored
one per line in a text file.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (MOVIEDB_*), also read from .env.local and .env
3. Config file (.moviedb.yaml in current or home directory)`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := c.rootCmd.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default is .moviedb.yaml in current or home directory)")
	flags.String("db", "movies.txt", "path of the movie storage file")
	flags.BoolP("verbose", "v", false, "verbose logging")
	flags.Bool("lock", false, "lock storage file while accessing it")
	flags.Duration("lock-timeout", movie.DefaultLockTimeout, "how long to wait for the lock")
	flags.String("log-dir", "", "directory for log files")
	flags.String("journal", "", "path of the journal file recording changes")
	flags.Bool("memory", false, "work on an in-memory copy, changes are not saved")

	// flag name => config key
	keys := map[string]string{
		"db":           "db",
		"verbose":      "verbose",
		"lock":         "lock",
		"lock-timeout": "lock_timeout",
		"log-dir":      "log_dir",
		"journal":      "journal",
		"memory":       "memory",
	}
	for name, key := range keys {
		if err := c.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func (c *cli) addCommands() {
	c.rootCmd.AddCommand(
		c.newAddCmd(),
		c.newListCmd(),
		c.newGetCmd(),
		c.newUpdateCmd(),
		c.newDeleteCmd(),
		c.newStatsCmd(),
		c.newHistoryCmd(),
		c.newExportCmd(),
		c.newBackupCmd(),
	)
}

// setup loads configuration and opens the database before any command runs
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	log.Verbose = c.v.GetBool("verbose")
	loadEnvFiles()
	if err := setupViper(c.v, c.configFile); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	c.config = configFromViper(c.v)
	conf := c.config
	log.Init(&log.Config{
		Dir:     conf.LogDir,
		Verbose: conf.Verbose,
	})

	db := movie.NewFileDatabase(conf.DB)
	db.Lock = conf.Lock
	db.LockTimeout = conf.LockTimeout
	db.Logf = log.Verbosef
	c.fileDB = db
	c.db = db

	if conf.Memory {
		movies, err := movie.List(db)
		if err != nil {
			return err
		}
		c.db = movie.NewMemoryDatabase(movies...)
		log.Logf("working on in-memory copy of %s, changes will not be saved\n", conf.DB)
		return nil
	}
	if conf.Journal != "" {
		w, err := journal.Open(conf.Journal)
		if err != nil {
			return err
		}
		c.journal = w
		db.Journal = w
	}
	log.Verbosef("using database %s\n", conf.DB)
	return nil
}

func (c *cli) close() {
	log.IfErrf(c.journal.Close())
	c.journal = nil
	log.Close()
}

func (c *cli) execute(ctx context.Context, args []string) error {
	defer c.close()
	c.rootCmd.SetArgs(args)
	err := c.rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Verbosef("command failed: %s\n", err)
	}
	return err
}
