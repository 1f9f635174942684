package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kjk/movielib/backup"
	"github.com/kjk/movielib/log"
	"github.com/kjk/movielib/u"
	"github.com/spf13/cobra"
)

func (c *cli) newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list and restore compressed snapshots of the storage file",
	}
	cmd.AddCommand(
		c.newBackupCreateCmd(),
		c.newBackupListCmd(),
		c.newBackupRestoreCmd(),
		c.newBackupDiffCmd(),
		c.newBackupPushCmd(),
		c.newBackupPullCmd(),
	)
	return cmd
}

func (c *cli) newBackupCreateCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := backup.ParseFormat(format)
			if err != nil {
				return err
			}
			var s *backup.Snapshot
			err = c.fileDB.Exclusive(func() error {
				s, err = backup.Create(c.fileDB.Path, c.config.BackupDir, f)
				return err
			})
			if err != nil {
				return err
			}
			count := fmt.Sprintf("%d movies", s.Records)
			if s.Records < 0 {
				count = "has malformed lines"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s, %s)\n", s.Path, count, u.FormatSize(s.Size))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "zst", "compression: zst, br or gz")
	return cmd
}

func (c *cli) newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshots, err := backup.List(c.config.BackupDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(snapshots) == 0 {
				fmt.Fprintf(out, "no backups in %s\n", c.config.BackupDir)
			}
			for _, s := range snapshots {
				fmt.Fprintf(out, "%s  %s  %s\n", s.Created.Format("2006-01-02 15:04:05"), filepath.Base(s.Path), u.FormatSize(s.Size))
			}
			return nil
		},
	}
}

// snapshotPath resolves optional snapshot argument. No argument means the
// latest snapshot. A bare file name is looked up in backup directory.
func (c *cli) snapshotPath(args []string) (string, error) {
	if len(args) == 0 {
		s, err := backup.Latest(c.config.BackupDir)
		if err != nil {
			return "", err
		}
		return s.Path, nil
	}
	path := args[0]
	if !u.FileExists(path) && filepath.Base(path) == path {
		path = filepath.Join(c.config.BackupDir, path)
	}
	if !u.FileExists(path) {
		return "", fmt.Errorf("snapshot '%s' doesn't exist", args[0])
	}
	return path, nil
}

func (c *cli) newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [snapshot]",
		Short: "Replace storage file with a snapshot, the latest by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.config.Memory {
				return errors.New("restore is not supported with --memory")
			}
			path, err := c.snapshotPath(args)
			if err != nil {
				return err
			}
			var n int
			err = c.fileDB.Exclusive(func() error {
				n, err = backup.Restore(path, c.fileDB.Path)
				return err
			})
			if err != nil {
				return err
			}
			if _, err = c.journal.Append("restore", "snapshot", filepath.Base(path), "records", n); err != nil {
				log.Errorf("failed to record restore in journal: %s\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d movies from %s\n", n, path)
			return nil
		},
	}
}

func (c *cli) newBackupDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [snapshot]",
		Short: "Show changes since a snapshot, the latest by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.snapshotPath(args)
			if err != nil {
				return err
			}
			diff, err := backup.Diff(path, c.fileDB.Path)
			if err != nil {
				return err
			}
			if diff == "" {
				diff = "no changes\n"
			}
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return nil
		},
	}
}

// openTarget connects to remote storage named kind ("minio" or "sftp").
// Returned close function must be called when done.
func (c *cli) openTarget(ctx context.Context, kind string) (backup.Target, func(), error) {
	switch kind {
	case "minio", "s3":
		t, err := backup.NewMinioTarget(ctx, &c.config.Minio)
		if err != nil {
			return nil, nil, err
		}
		return t, func() {}, nil
	case "sftp":
		t, err := backup.NewSFTPTarget(&c.config.SFTP)
		if err != nil {
			return nil, nil, err
		}
		return t, func() { log.IfErrf(t.Close()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown remote '%s', must be minio or sftp", kind)
}

func (c *cli) newBackupPushCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload snapshots missing in remote storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, closeTarget, err := c.openTarget(ctx, to)
			if err != nil {
				return err
			}
			defer closeTarget()
			uploaded, err := backup.Push(ctx, t, c.config.BackupDir)
			for _, path := range uploaded {
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s\n", path)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&to, "to", "minio", "remote storage: minio or sftp")
	return cmd
}

func (c *cli) newBackupPullCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download snapshots missing in backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, closeTarget, err := c.openTarget(ctx, from)
			if err != nil {
				return err
			}
			defer closeTarget()
			downloaded, err := backup.Pull(ctx, t, c.config.BackupDir)
			for _, path := range downloaded {
				fmt.Fprintf(cmd.OutOrStdout(), "downloaded %s\n", path)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "minio", "remote storage: minio or sftp")
	return cmd
}
