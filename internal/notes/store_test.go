package notes

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSnapshotSortsAndResolves(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	s := NewStore(start)

	s.Append(
		Note{Timestamp: start.UnixMilli() + 3000, Observation: "third"},
		Note{Elapsed: ptr(int64(1000)), Observation: "first"},
		Note{Timestamp: start.UnixMilli() + 2000, Observation: "second"},
	)

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, want, snap[i].Observation)
		require.NotNil(t, snap[i].Elapsed)
	}
	assert.Equal(t, int64(2000), *snap[1].Elapsed)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, start.UnixMilli(), s.SessionStart())
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := NewStore(time.UnixMilli(0))
	s.Append(Scored(0, 5, "a"))

	snap := s.Snapshot()
	*snap[0].Elapsed = 99_999
	snap[0].Observation = "changed"

	again := s.Snapshot()
	assert.Equal(t, int64(0), *again[0].Elapsed)
	assert.Equal(t, "a", again[0].Observation)
}

func TestStoreSortIsStable(t *testing.T) {
	s := NewStore(time.UnixMilli(0))
	s.Append(Scored(time.Second, 1, "a"), Scored(time.Second, 2, "b"), Scored(0, 3, "c"))

	snap := s.Snapshot()
	assert.Equal(t, []string{"c", "a", "b"}, []string{snap[0].Observation, snap[1].Observation, snap[2].Observation})
}

func TestStoreNow(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	s := NewStore(start)

	assert.Equal(t, int64(4000), s.Now(start.Add(4*time.Second)))
	assert.Zero(t, s.Now(start.Add(-time.Second)))
}

func TestStoreConcurrentAppend(t *testing.T) {
	s := NewStore(time.UnixMilli(0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Append(Scored(time.Duration(i*50+j)*time.Millisecond, 5, ""))
				_ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 400, s.Len())
}
