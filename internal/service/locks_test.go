package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityLocks_SerializesSameEntity(t *testing.T) {
	locks := NewEntityLocks()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			locks.Lock("task-1")
			defer locks.Unlock("task-1")
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestEntityLocks_IndependentEntitiesDoNotBlock(t *testing.T) {
	locks := NewEntityLocks()

	locks.Lock("task-1")
	done := make(chan struct{})
	go func() {
		locks.Lock("task-2")
		locks.Unlock("task-2")
		close(done)
	}()
	<-done
	locks.Unlock("task-1")
}

func TestEntityLocks_MultiLockOrderPreventsDeadlock(t *testing.T) {
	locks := NewEntityLocks()

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			locks.Lock("task-1", "task-2")
			locks.Unlock("task-1", "task-2")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			// Opposite argument order must still lock in a global order.
			locks.Lock("task-2", "task-1")
			locks.Unlock("task-2", "task-1")
		}
	}()
	wg.Wait()
}

func TestEntityLocks_DuplicateAndEmptyIDs(t *testing.T) {
	locks := NewEntityLocks()

	// Duplicates collapse to one acquisition; empty IDs are ignored.
	locks.Lock("task-1", "task-1", "")
	locks.Unlock("task-1", "task-1", "")

	require.NotPanics(t, func() {
		locks.Lock("task-1")
		locks.Unlock("task-1")
	})
}
