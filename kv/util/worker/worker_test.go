package worker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordHandler struct {
	started bool
	got     []int
}

func (h *recordHandler) Start() { h.started = true }

func (h *recordHandler) Handle(t Task) { h.got = append(h.got, t.(int)) }

func TestWorkerOrder(t *testing.T) {
	wg := new(sync.WaitGroup)
	w := NewWorker("test", wg)
	h := new(recordHandler)
	w.Start(h)
	for i := 0; i < 10; i++ {
		w.Sender() <- i
	}
	assert.True(t, w.TrySend(10))
	w.Stop()
	wg.Wait()
	assert.True(t, h.started)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, h.got)
}

func TestWorkerTrySendFull(t *testing.T) {
	w := NewWorker("full", new(sync.WaitGroup))
	for i := 0; i < defaultWorkerCapacity; i++ {
		assert.True(t, w.TrySend(i))
	}
	assert.False(t, w.TrySend(-1))
}
