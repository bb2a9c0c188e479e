package errorlog

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	t.Run("List returns newest first", func(t *testing.T) {
		log := New(5)
		for i := 0; i < 3; i++ {
			log.Record(Entry{Message: fmt.Sprintf("e%d", i)})
		}

		entries := log.List()
		require.Len(t, entries, 3)
		assert.Equal(t, "e2", entries[0].Message)
		assert.Equal(t, "e0", entries[2].Message)
	})

	t.Run("oldest entries are dropped at capacity", func(t *testing.T) {
		log := New(3)
		for i := 0; i < 7; i++ {
			log.Record(Entry{Message: fmt.Sprintf("e%d", i)})
		}

		entries := log.List()
		require.Len(t, entries, 3)
		assert.Equal(t, []string{"e6", "e5", "e4"}, messages(entries))
	})

	t.Run("Clear empties the log", func(t *testing.T) {
		log := New(3)
		log.Record(Entry{Message: "x"})
		log.Clear()

		assert.Equal(t, 0, log.Len())
		assert.Empty(t, log.List())

		log.Record(Entry{Message: "y"})
		assert.Equal(t, []string{"y"}, messages(log.List()))
	})

	t.Run("non-positive capacity uses default", func(t *testing.T) {
		assert.Equal(t, DefaultCapacity, New(0).Capacity())
	})

	t.Run("zero timestamp is filled", func(t *testing.T) {
		log := New(1)
		fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		log.now = func() time.Time { return fixed }

		log.RecordError(errors.New("boom"), map[string]any{"op": "save"})
		log.RecordError(nil, nil)

		entries := log.List()
		require.Len(t, entries, 1)
		assert.Equal(t, fixed, entries[0].Timestamp)
		assert.Equal(t, "boom", entries[0].Message)
		assert.Equal(t, "save", entries[0].Context["op"])
	})

	t.Run("concurrent writers", func(t *testing.T) {
		log := New(50)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					log.Record(Entry{Message: "x"})
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, log.Len())
	})
}

func messages(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
