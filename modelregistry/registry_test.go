package modelregistry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/storage"
)

type fakeModel struct{ id int }

// TestGetOrLoad_WithRemoteArtifactFetcher exercises a loader that fetches
// model bytes from a gated HTTP endpoint (§4.3) instead of constructing
// the model in-process, grounded on storage.ArtifactFetcher/Loader.
func TestGetOrLoad_WithRemoteArtifactFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer weights-token", r.Header.Get("Authorization"))
		w.Write([]byte("serialized-weights"))
	}))
	defer srv.Close()

	fetcher := storage.NewArtifactFetcher(staticBearerCredential("weights-token"))
	loader := storage.Loader(fetcher, srv.URL, func(b []byte) (*fakeModel, error) {
		return &fakeModel{id: len(b)}, nil
	})

	r := New(Config{})
	h, err := GetOrLoad(r, "remote-asr-weights", loader)
	require.NoError(t, err)
	assert.Equal(t, len("serialized-weights"), h.Model().id)
	h.Release()
}

type staticBearerCredential string

func (c staticBearerCredential) Apply(ctx context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+string(c))
	return nil
}

func TestGetOrLoad_SingleLoadPerKeyUnderConcurrency(t *testing.T) {
	r := New(Config{})
	var loadCount atomic.Int32

	const n = 32
	var wg sync.WaitGroup
	handles := make([]*Handle[*fakeModel], n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := GetOrLoad(r, "whisper-base@cuda:0", func() (*fakeModel, error) {
				loadCount.Add(1)
				time.Sleep(5 * time.Millisecond)
				return &fakeModel{id: 1}, nil
			})
			require.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, loadCount.Load())
	for _, h := range handles {
		assert.Same(t, handles[0].Model(), h.Model())
	}
}

func TestGetOrLoad_LoaderErrorAllowsRetry(t *testing.T) {
	r := New(Config{})
	attempts := 0
	_, err := GetOrLoad(r, "bad-model", func() (*fakeModel, error) {
		attempts++
		return nil, fmt.Errorf("boom")
	})
	require.Error(t, err)

	_, err = GetOrLoad(r, "bad-model", func() (*fakeModel, error) {
		attempts++
		return &fakeModel{id: 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestMetrics_HitsAndMisses(t *testing.T) {
	r := New(Config{})
	_, _ = GetOrLoad(r, "k", func() (*fakeModel, error) { return &fakeModel{}, nil })
	_, _ = GetOrLoad(r, "k", func() (*fakeModel, error) { return &fakeModel{}, nil })

	m := r.Metrics()
	assert.EqualValues(t, 1, m.CacheMisses)
	assert.EqualValues(t, 1, m.CacheHits)
	assert.InDelta(t, 0.5, m.HitRate(), 0.0001)
}

func TestEvictForCapacity_LRU(t *testing.T) {
	r := New(Config{MaxMemoryBytes: 150 * 1024 * 1024, Policy: EvictionLRU})
	clock := time.Unix(0, 0)
	r.clock = func() time.Time { clock = clock.Add(time.Second); return clock }

	h1, err := GetOrLoad(r, "a", func() (*fakeModel, error) { return &fakeModel{id: 1}, nil })
	require.NoError(t, err)
	h1.Release() // unreferenced, eligible for eviction

	_, err = GetOrLoad(r, "b", func() (*fakeModel, error) { return &fakeModel{id: 2}, nil })
	require.NoError(t, err)

	infos := r.ListModels()
	require.Len(t, infos, 1)
	assert.Equal(t, "b", infos[0].Key)
	assert.EqualValues(t, 1, r.Metrics().Evictions)
}

func TestEvictExpired_TTLPolicy(t *testing.T) {
	r := New(Config{Policy: EvictionTTL, TTL: 10 * time.Second})
	clock := time.Unix(0, 0)
	r.clock = func() time.Time { return clock }

	h, err := GetOrLoad(r, "k", func() (*fakeModel, error) { return &fakeModel{}, nil })
	require.NoError(t, err)
	h.Release()

	clock = clock.Add(11 * time.Second)
	n, _ := r.EvictExpired()
	assert.Equal(t, 1, n)
	assert.Empty(t, r.ListModels())
}
