package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/kjk/movielib/atomicfile"
	"github.com/melbahja/goph"
	"github.com/pkg/sftp"
)

type SFTPConfig struct {
	User string
	// host or host:port
	Addr           string
	PrivateKeyPath string
	// directory on the server where snapshots are stored
	Dir string
}

// SFTPTarget stores snapshots on a server reachable over ssh
type SFTPTarget struct {
	Dir    string
	client *goph.Client
	sftp   *sftp.Client
}

var _ Target = (*SFTPTarget)(nil)

// NewSFTPTarget connects to the server. Call Close() when done.
func NewSFTPTarget(config *SFTPConfig) (*SFTPTarget, error) {
	if config == nil || config.User == "" || config.Addr == "" || config.PrivateKeyPath == "" || config.Dir == "" {
		return nil, errors.New("must provide user, addr, private key path and dir")
	}
	auth, err := goph.Key(config.PrivateKeyPath, "")
	if err != nil {
		return nil, err
	}
	client, err := goph.New(config.User, config.Addr, auth)
	if err != nil {
		return nil, err
	}
	sc, err := client.NewSftp()
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &SFTPTarget{
		Dir:    config.Dir,
		client: client,
		sftp:   sc,
	}, nil
}

func (t *SFTPTarget) Close() error {
	err := t.sftp.Close()
	return errors.Join(err, t.client.Close())
}

func (t *SFTPTarget) Upload(ctx context.Context, localPath string) (string, error) {
	if err := t.sftp.MkdirAll(t.Dir); err != nil {
		return "", err
	}
	remotePath := remoteName(t.Dir, localPath)
	return remotePath, t.client.Upload(localPath, remotePath)
}

// Download downloads snapshot name to dstPath, atomically
func (t *SFTPTarget) Download(ctx context.Context, name string, dstPath string) error {
	src, err := t.sftp.Open(path.Join(t.Dir, name))
	if err != nil {
		return err
	}
	defer src.Close()
	if err = os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	f, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = io.Copy(f, src); err != nil {
		return err
	}
	return f.Close()
}

func (t *SFTPTarget) List(ctx context.Context) ([]string, error) {
	entries, err := t.sftp.ReadDir(t.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res []string
	for _, fi := range entries {
		if _, ok := ParseSnapshotName(fi.Name()); ok && fi.Mode().IsRegular() {
			res = append(res, fi.Name())
		}
	}
	return res, nil
}
