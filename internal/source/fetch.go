package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/opencontainers/go-digest"
)

// download stores the archive at rawURL in a temporary file under dir and
// returns its path together with the digest computed while writing it. The
// digest uses the algorithm of want, or sha256 when want is empty.
func (a *Acquirer) download(ctx context.Context, rawURL, dir string, want digest.Digest) (string, digest.Digest, error) {
	alg := digest.Canonical
	if want != "" {
		alg = want.Algorithm()
	}
	if !alg.Available() {
		return "", "", fmt.Errorf("%w: digest algorithm %s not available", ErrIntegrity, alg)
	}

	body, err := a.open(ctx, rawURL)
	if err != nil {
		return "", "", err
	}
	defer body.Close()

	f, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", "", err
	}
	name := f.Name()

	digester := alg.Digester()
	_, err = io.Copy(io.MultiWriter(f, digester.Hash()), body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", fmt.Errorf("%w: read %s: %v", ErrNetwork, rawURL, err)
	}
	return name, digester.Digest(), nil
}

func (a *Acquirer) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		return f, nil
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q in %s", ErrNetwork, u.Scheme, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", ErrNetwork, rawURL, resp.Status)
	}
	return resp.Body, nil
}
