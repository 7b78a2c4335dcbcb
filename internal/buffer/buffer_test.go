package buffer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "state", "device_info.json"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestStoreAndLoad(t *testing.T) {
	s := newStore(t)

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Store([]byte(`{"id":"a"}`)))
	data, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"a"}`, string(data))
}

func TestStoreKeepsOnlyLatest(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Store([]byte(`{"id":"first","padding":"xxxxxxxxxxxxxxxxxxxxxxxx"}`)))
	require.NoError(t, s.Store([]byte(`{"id":"second"}`)))

	data, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"second"}`, string(data))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(s.path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClear(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Clear())

	require.NoError(t, s.Store([]byte(`{}`)))
	require.NoError(t, s.Clear())
	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentStoresNeverTear(t *testing.T) {
	s := newStore(t)
	payloads := [][]byte{
		[]byte(`{"id":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`),
		[]byte(`{"id":"b"}`),
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Store(payloads[i%2]))
		}(i)
	}
	wg.Wait()

	data, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, []string{string(payloads[0]), string(payloads[1])}, string(data))
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}
