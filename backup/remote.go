package backup

import (
	"context"
	"path"
	"path/filepath"
	"slices"

	"github.com/kjk/movielib/u"
)

// Target is a remote location that stores snapshots
type Target interface {
	Upload(ctx context.Context, localPath string) (remotePath string, err error)
	Download(ctx context.Context, name string, dstPath string) error
	List(ctx context.Context) ([]string, error)
}

// remoteName returns a path under dir for a local snapshot
func remoteName(dir string, localPath string) string {
	return path.Join(dir, filepath.Base(localPath))
}

// Push uploads snapshots from localDir that are not yet in t.
// Returns remote paths of uploaded snapshots.
func Push(ctx context.Context, t Target, localDir string) ([]string, error) {
	local, err := List(localDir)
	if err != nil {
		return nil, err
	}
	remote, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	var uploaded []string
	for _, s := range local {
		name := filepath.Base(s.Path)
		if slices.Contains(remote, name) {
			continue
		}
		remotePath, err := t.Upload(ctx, s.Path)
		if err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, remotePath)
	}
	return uploaded, nil
}

// Pull downloads snapshots from t that are missing in localDir.
// Returns local paths of downloaded snapshots.
func Pull(ctx context.Context, t Target, localDir string) ([]string, error) {
	remote, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	var downloaded []string
	for _, name := range remote {
		if _, ok := ParseSnapshotName(name); !ok {
			continue
		}
		dst := filepath.Join(localDir, name)
		if u.FileExists(dst) {
			continue
		}
		if err = t.Download(ctx, name, dst); err != nil {
			return downloaded, err
		}
		downloaded = append(downloaded, dst)
	}
	return downloaded, nil
}
