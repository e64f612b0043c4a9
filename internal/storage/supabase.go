package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SupabaseStore talks to the Supabase Storage REST API.
type SupabaseStore struct {
	http   *http.Client
	base   string // project URL, e.g. https://xyz.supabase.co
	key    string // service role key
	bucket string
}

type SupabaseConfig struct {
	URL     string
	Key     string
	Bucket  string
	Timeout time.Duration
	Client  *http.Client // optional
}

func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" || cfg.Key == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("supabase: url, key and bucket are required")
	}
	h := cfg.Client
	if h == nil {
		h = &http.Client{Timeout: cfg.Timeout}
		if h.Timeout <= 0 {
			h.Timeout = 60 * time.Second
		}
	}
	return &SupabaseStore{
		http:   h,
		base:   strings.TrimSuffix(cfg.URL, "/"),
		key:    cfg.Key,
		bucket: cfg.Bucket,
	}, nil
}

// Put uploads to POST /storage/v1/object/{bucket}/{key}.
func (s *SupabaseStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL("", key), r)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("supabase upload: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("supabase upload: %s: %s", res.Status, strings.TrimSpace(string(msg)))
	}
	return key, nil
}

// Get downloads through the authenticated object endpoint.
func (s *SupabaseStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL("authenticated", key), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	res, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase download: %w", err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil, fmt.Errorf("supabase download %s: %w", key, fs.ErrNotExist)
	}
	if res.StatusCode/100 != 2 {
		res.Body.Close()
		return nil, fmt.Errorf("supabase download: %s", res.Status)
	}
	return res.Body, nil
}

func (s *SupabaseStore) PublicURL(key string) string {
	return s.objectURL("public", key)
}

func (s *SupabaseStore) objectURL(scope, key string) string {
	parts := []string{s.base, "storage/v1/object"}
	if scope != "" {
		parts = append(parts, scope)
	}
	parts = append(parts, url.PathEscape(s.bucket), escapeKey(key))
	return strings.Join(parts, "/")
}

func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
