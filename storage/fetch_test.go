package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredential struct {
	applied int
	header  string
}

func (f *fakeCredential) Apply(ctx context.Context, req *http.Request) error {
	f.applied++
	req.Header.Set("Authorization", f.header)
	return nil
}

func TestArtifactFetcher_FetchAppliesCredentialAndReturnsBody(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("model-bytes"))
	}))
	defer srv.Close()

	cred := &fakeCredential{header: "Bearer test-token"}
	f := NewArtifactFetcher(cred)

	data, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data))
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, 1, cred.applied)
}

func TestArtifactFetcher_NilCredentialSkipsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewArtifactFetcher(nil)
	data, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestArtifactFetcher_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewArtifactFetcher(nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestLoader_DecodesFetchedBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("42"))
	}))
	defer srv.Close()

	f := NewArtifactFetcher(nil)
	loader := Loader(f, srv.URL, func(b []byte) (int, error) { return len(b), nil })

	n, err := loader()
	require.NoError(t, err)
	assert.Equal(t, 2, n) // "42" is 2 bytes
}
