// Package archive uploads detection evidence to an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/himanishpuri/ReelDNA/pkg/logger"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Enabled reports whether an endpoint has been configured.
func (c Config) Enabled() bool { return c.Endpoint != "" }

func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	var errs []error
	if c.Bucket == "" {
		errs = append(errs, errors.New("archive bucket is empty"))
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		errs = append(errs, errors.New("archive credentials are incomplete"))
	}
	return errors.Join(errs...)
}

// Item is one local file to upload.
type Item struct {
	Path string
	// Name is the object name under the detection prefix. Defaults to the file's base name.
	Name string
}

type Archiver struct {
	client *minio.Client
	cfg    Config
	log    logger.Interface
}

func New(cfg Config, log logger.Interface) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}
	return &Archiver{client: client, cfg: cfg, log: log}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := a.client.BucketExists(ctx, a.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.cfg.Bucket, minio.MakeBucketOptions{Region: a.cfg.Region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", a.cfg.Bucket, err)
	}
	a.log.Infof("Created archive bucket %s", a.cfg.Bucket)
	return nil
}

// Upload stores items under <prefix>/ and returns the object keys written.
// Missing local files are skipped.
func (a *Archiver) Upload(ctx context.Context, prefix string, items []Item) ([]string, error) {
	if err := a.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	var (
		keys []string
		errs []error
	)
	for _, it := range items {
		if _, err := os.Stat(it.Path); err != nil {
			a.log.Warnf("Skipping archive of %s: %v", it.Path, err)
			continue
		}
		key := ObjectKey(prefix, it)
		_, err := a.client.FPutObject(ctx, a.cfg.Bucket, key, it.Path, minio.PutObjectOptions{
			ContentType: contentType(it.Path),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", key, err))
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) > 0 {
		a.log.Infof("Archived %d evidence files to %s/%s/", len(keys), a.cfg.Bucket, prefix)
	}
	return keys, errors.Join(errs...)
}

// ObjectKey joins the prefix and item name with forward slashes.
func ObjectKey(prefix string, it Item) string {
	name := it.Name
	if name == "" {
		name = filepath.Base(it.Path)
	}
	return path.Join(prefix, filepath.ToSlash(name))
}

func contentType(p string) string {
	if t := mime.TypeByExtension(filepath.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}
