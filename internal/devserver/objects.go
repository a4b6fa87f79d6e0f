package devserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/devserver/config"
	"github.com/dashxhq/dashx-go/internal/logging"
)

const (
	presignExpiry = 15 * time.Minute
	maxObjectSize = 64 << 20
)

// NewPresigner returns a PresignFunc that signs path-style PUT URLs against
// cfg.PublicURL, where the dev server's own object store answers them.
func NewPresigner(ctx context.Context, cfg *config.Config) (PresignFunc, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.PublicURL)
		o.UsePathStyle = true
	})
	presigner := s3.NewPresignClient(client)
	bucket := cfg.S3Bucket

	return func(ctx context.Context, key string) (string, error) {
		req, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(presignExpiry))
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}, nil
}

type object struct {
	body        []byte
	contentType string
}

// ObjectStore serves PUT and GET on /{bucket}/{key}. A PUT must carry a
// presign signature and is accepted only if onPut accepts it.
type ObjectStore struct {
	bucket string
	onPut  func(key, originID, contentType string) error
	logger logging.Logger

	mu      sync.RWMutex
	objects map[string]object
}

func NewObjectStore(bucket string, onPut func(key, originID, contentType string) error, logger logging.Logger) *ObjectStore {
	return &ObjectStore{
		bucket:  bucket,
		onPut:   onPut,
		logger:  logger.With("module", "objects"),
		objects: map[string]object{},
	}
}

// Object returns the stored bytes and content type of key.
func (s *ObjectStore) Object(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o.body, o.contentType, ok
}

func (s *ObjectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, ok := strings.CutPrefix(r.URL.Path, "/"+s.bucket+"/")
	if !ok || key == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.put(w, r, key)
	case http.MethodGet, http.MethodHead:
		body, contentType, ok := s.Object(key)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *ObjectStore) put(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()
	if r.URL.Query().Get("X-Amz-Signature") == "" {
		http.Error(w, "missing signature", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxObjectSize+1))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > maxObjectSize {
		http.Error(w, "object too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if err := s.onPut(key, r.Header.Get(common.OriginIDHeaderName), contentType); err != nil {
		s.logger.Warn(ctx, "upload rejected", "key", key, "err", err)
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	s.mu.Lock()
	s.objects[key] = object{body: body, contentType: contentType}
	s.mu.Unlock()

	s.logger.Debug(ctx, "object stored", "key", key, "size", len(body))
	w.WriteHeader(http.StatusOK)
}
