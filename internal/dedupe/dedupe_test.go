package dedupe

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_ConcurrentCallersShareOneFetch(t *testing.T) {
	var g Group[string]
	var calls atomic.Int64

	release := make(chan struct{})
	const waiters = 8

	var wg sync.WaitGroup
	var entered sync.WaitGroup
	results := make([]string, waiters)
	errs := make([]error, waiters)

	entered.Add(waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entered.Done()
			results[i], errs[i] = g.Do("balance:addr1", func() (string, error) {
				calls.Add(1)
				<-release
				return "100", nil
			})
		}(i)
	}

	// All goroutines are at or past the Do call before the fetch is
	// allowed to finish, so every one of them joins the same flight.
	entered.Wait()
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "expected exactly one upstream call")
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "100", results[i])
	}
}

func TestGroup_FailureSharedAndMarkerCleared(t *testing.T) {
	var g Group[int]
	var calls atomic.Int64

	boom := errors.New("upstream down")
	_, err := g.Do("k", func() (int, error) {
		calls.Add(1)
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	// The marker is cleared on completion: a later call fetches again.
	v, err := g.Do("k", func() (int, error) {
		calls.Add(1)
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGroup_ReentrantAcrossKeys(t *testing.T) {
	var g Group[int]

	v, err := g.Do("outer", func() (int, error) {
		inner, err := g.Do("inner", func() (int, error) {
			return 2, nil
		})
		return inner * 3, err
	})

	require.NoError(t, err)
	assert.Equal(t, 6, v)
}

func TestGroup_DistinctKeysIndependent(t *testing.T) {
	var g Group[string]

	a, err := g.Do("a", func() (string, error) { return "A", nil })
	require.NoError(t, err)
	b, err := g.Do("b", func() (string, error) { return "B", nil })
	require.NoError(t, err)

	assert.Equal(t, "A", a)
	assert.Equal(t, "B", b)
}
