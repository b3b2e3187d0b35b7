package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// ArtifactFetcher retrieves a model artifact (weights, config, tokenizer)
// from a gated HTTP(S) endpoint, signing/authenticating each request via
// its Credential (§4.3: a model loader passed to modelregistry.GetOrLoad
// may need to fetch bytes before constructing the in-memory model).
type ArtifactFetcher struct {
	client     *http.Client
	credential Credential
}

// NewArtifactFetcher wraps credential; a nil credential makes Fetch a
// plain unauthenticated GET, for endpoints that don't require one.
func NewArtifactFetcher(credential Credential) *ArtifactFetcher {
	return &ArtifactFetcher{client: http.DefaultClient, credential: credential}
}

// Fetch GETs url and returns the full response body. Callers needing
// streaming access to large artifacts should use FetchReader instead.
func (f *ArtifactFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	rc, err := f.FetchReader(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storage: read artifact %s: %w", url, err)
	}
	return data, nil
}

// FetchReader GETs url and returns the response body unread; the caller
// must Close it.
func (f *ArtifactFetcher) FetchReader(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: build request for %s: %w", url, err)
	}
	if f.credential != nil {
		if err := f.credential.Apply(ctx, req); err != nil {
			return nil, fmt.Errorf("storage: authenticate request for %s: %w", url, err)
		}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("storage: fetch %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// Loader adapts f into a modelregistry.GetOrLoad loader func that fetches
// url and hands the raw bytes to decode.
func Loader[T any](f *ArtifactFetcher, url string, decode func([]byte) (T, error)) func() (T, error) {
	return func() (T, error) {
		data, err := f.Fetch(context.Background(), url)
		if err != nil {
			var zero T
			return zero, err
		}
		return decode(data)
	}
}
