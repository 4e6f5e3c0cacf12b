/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package compilerhub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/crypto/sha3"
)

// downloadOpts is a functional-options request shape, pared down to what
// fetching a compiler binary needs.
type downloadOpts struct {
	client         *http.Client
	connectTimeout time.Duration
	totalTimeout   time.Duration
}

// DownloadOptFunc configures a Downloader.
type DownloadOptFunc func(*downloadOpts)

// WithHTTPClient overrides the client used for downloads (tests substitute
// one pointed at an httptest.Server).
func WithHTTPClient(client *http.Client) DownloadOptFunc {
	return func(o *downloadOpts) { o.client = client }
}

// WithConnectTimeout overrides the connect timeout (default 30s).
func WithConnectTimeout(d time.Duration) DownloadOptFunc {
	return func(o *downloadOpts) { o.connectTimeout = d }
}

// WithTotalTimeout overrides the total download timeout (default 5m).
func WithTotalTimeout(d time.Duration) DownloadOptFunc {
	return func(o *downloadOpts) { o.totalTimeout = d }
}

// Downloader fetches and verifies compiler binaries over HTTP.
type Downloader struct {
	opts downloadOpts
}

// NewDownloader builds a Downloader, applying defaults then the given
// options in order.
func NewDownloader(optFuncs ...DownloadOptFunc) *Downloader {
	o := downloadOpts{
		connectTimeout: 30 * time.Second,
		totalTimeout:   5 * time.Minute,
	}
	for _, f := range optFuncs {
		f(&o)
	}
	if o.client == nil {
		o.client = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: o.connectTimeout}).DialContext,
			},
		}
	}
	return &Downloader{opts: o}
}

// Fetch downloads m.Path's content and verifies it against both published
// digests, returning the raw bytes on success.
func (d *Downloader) Fetch(ctx context.Context, m Manifest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.totalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.opts.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %s", m.Path, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !verifyDigests(data, m) {
		return nil, errVerifyFailed(m.Version, m.Path)
	}
	return data, nil
}

func verifyDigests(data []byte, m Manifest) bool {
	sha := sha256.Sum256(data)
	if m.SHA256 != "" && hex.EncodeToString(sha[:]) != m.SHA256 {
		return false
	}
	keccak := sha3.NewLegacyKeccak256()
	keccak.Write(data)
	if m.Keccak256 != "" && hex.EncodeToString(keccak.Sum(nil)) != m.Keccak256 {
		return false
	}
	return true
}
