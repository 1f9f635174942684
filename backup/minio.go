package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kjk/movielib/atomicfile"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// snapshots are stored under this prefix in the bucket
	Prefix string
	// use http instead of https, for local minio servers
	Insecure     bool
	RequestTrace io.Writer
}

// MinioTarget stores snapshots in S3-compatible storage
type MinioTarget struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

var _ Target = (*MinioTarget)(nil)

func (c *MinioConfig) validate() error {
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return errors.New("must provide access, secret, bucket and endpoint")
	}
	return nil
}

// NewMinioTarget connects to a server and checks that the bucket exists
func NewMinioTarget(ctx context.Context, config *MinioConfig) (*MinioTarget, error) {
	if config == nil {
		return nil, errors.New("must provide config")
	}
	c := config
	if err := c.validate(); err != nil {
		return nil, err
	}
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if c.RequestTrace != nil {
		mc.TraceOn(c.RequestTrace)
	}
	found, err := mc.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &MinioTarget{
		Client: mc,
		Bucket: c.Bucket,
		Prefix: strings.Trim(c.Prefix, "/"),
	}, nil
}

func (t *MinioTarget) Upload(ctx context.Context, localPath string) (string, error) {
	remotePath := remoteName(t.Prefix, localPath)
	opts := minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}
	_, err := t.Client.FPutObject(ctx, t.Bucket, remotePath, localPath, opts)
	return remotePath, err
}

// Download downloads snapshot name to dstPath, atomically
func (t *MinioTarget) Download(ctx context.Context, name string, dstPath string) error {
	remotePath := path.Join(t.Prefix, name)
	obj, err := t.Client.GetObject(ctx, t.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	// ensure there's a dir for destination file
	if err = os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	f, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = io.Copy(f, obj); err != nil {
		return err
	}
	return f.Close()
}

// List returns names of snapshots, without the prefix
func (t *MinioTarget) List(ctx context.Context) ([]string, error) {
	prefix := t.Prefix
	if prefix != "" {
		prefix += "/"
	}
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}
	// stops the listing goroutine if we return early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var res []string
	for obj := range t.Client.ListObjects(ctx, t.Bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if _, ok := ParseSnapshotName(name); ok {
			res = append(res, name)
		}
	}
	return res, nil
}

func (t *MinioTarget) Remove(ctx context.Context, name string) error {
	remotePath := path.Join(t.Prefix, name)
	return t.Client.RemoveObject(ctx, t.Bucket, remotePath, minio.RemoveObjectOptions{})
}
