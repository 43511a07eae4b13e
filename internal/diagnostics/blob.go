package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kmansel/mobilelink/internal/mobilelink"
)

// BlobStore persists snapshot documents to object storage.
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte) error
}

// S3Config describes the archive bucket. Keys are read from files so the
// config file itself stays secret-free.
type S3Config struct {
	Endpoint      string
	Bucket        string
	Prefix        string
	Region        string
	AccessKeyFile string
	SecretKeyFile string
}

type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	if endpoint == "" || bucket == "" || cfg.AccessKeyFile == "" || cfg.SecretKeyFile == "" {
		return nil, fmt.Errorf("missing blob configuration")
	}

	accessKey, err := readSecretFile(cfg.AccessKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read blob access key: %w", err)
	}
	secretKey, err := readSecretFile(cfg.SecretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read blob secret key: %w", err)
	}

	host, secure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{client: client, bucket: bucket}, nil
}

func (s *S3Store) Save(ctx context.Context, key string, data []byte) error {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

// Archiver implements coordinator.Publisher: each successful refresh writes
// a redacted snapshot to the archive bucket, keyed by account and time.
type Archiver struct {
	store  BlobStore
	prefix string
	source Source
	now    func() time.Time
}

func NewArchiver(store BlobStore, prefix string, source Source) *Archiver {
	if prefix == "" {
		prefix = "mobilelink/diagnostics"
	}
	return &Archiver{store: store, prefix: prefix, source: source, now: time.Now}
}

func (a *Archiver) PublishTanks(ctx context.Context, account string, _ map[int64]mobilelink.PropaneTank) error {
	data, err := json.Marshal(Build(a.source))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	key := path.Join(a.prefix, account, a.now().UTC().Format("2006-01-02T15-04-05Z")+".json")
	if err := a.store.Save(ctx, key, data); err != nil {
		return fmt.Errorf("archive snapshot: %w", err)
	}
	return nil
}

func parseEndpoint(raw string) (string, bool, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint: %w", err)
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint: %q", raw)
		}
		return u.Host, u.Scheme == "https", nil
	}
	return raw, true, nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
