// Package fetch resolves document ids against a media server and caches
// the payloads locally.
//
// The reader engine never talks HTTP itself; it only sees local files.
// That keeps the session state machine free of network concerns and
// makes a cache hit indistinguishable from a fresh download.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the media server root, without trailing slash.
	BaseURL string

	// Token authenticates download requests, sent as a bearer token.
	Token string

	// CacheDir holds downloaded payloads, keyed by document id.
	CacheDir string

	// Timeout bounds a single download. Default: 5m.
	Timeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("fetch: Config.BaseURL is required")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("fetch: Config.CacheDir is required")
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Client downloads documents over HTTP with a local cache.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client and its cache directory.
func New(cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("fetch: cache dir: %w", err)
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Fetch returns a local path for the document, downloading it on a
// cache miss. progress receives fractions in [0,1]; without a
// Content-Length only the final 1 is reported.
func (c *Client) Fetch(ctx context.Context, documentID string, progress func(float64)) (string, error) {
	dst := c.cachePath(documentID)
	if _, err := os.Stat(dst); err == nil {
		c.cfg.Logger.Debug("fetch: cache hit", "document", documentID)
		if progress != nil {
			progress(1)
		}
		return dst, nil
	}

	url := c.cfg.BaseURL + "/Items/" + documentID + "/Download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: download %s: %w", documentID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: download %s: HTTP %d", documentID, resp.StatusCode)
	}

	// Write to a temp name first so a torn download never looks like a
	// cache hit.
	tmp, err := os.CreateTemp(c.cfg.CacheDir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := copyWithProgress(tmp, resp.Body, resp.ContentLength, progress); err != nil {
		tmp.Close()
		return "", fmt.Errorf("fetch: download %s: %w", documentID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	c.cfg.Logger.Info("fetch: downloaded", "document", documentID, "path", dst)
	if progress != nil {
		progress(1)
	}
	return dst, nil
}

// Evict removes a cached payload so the next Fetch re-downloads it.
func (c *Client) Evict(documentID string) error {
	err := os.Remove(c.cachePath(documentID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fetch: evict %s: %w", documentID, err)
	}
	return nil
}

// cachePath keys cache entries by a digest of the id, so ids with
// separators or other filesystem-hostile characters stay safe.
func (c *Client) cachePath(documentID string) string {
	sum := sha256.Sum256([]byte(documentID))
	return filepath.Join(c.cfg.CacheDir, hex.EncodeToString(sum[:16]))
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress func(float64)) error {
	buf := make([]byte, 128*1024)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if progress != nil && total > 0 {
				progress(float64(written) / float64(total))
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
