package inbox

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/inbox/internal/core/notify"
)

func TestArrivalBuffer_Drain_empty_returnsNil(t *testing.T) {
	b := NewArrivalBuffer(0)
	assert.Nil(t, b.Drain())
}

func TestArrivalBuffer_PushDrain_orderAndClear(t *testing.T) {
	b := NewArrivalBuffer(0)
	b.Push(notify.Notification{ID: "first"})
	b.Push(notify.Notification{ID: "second"})

	items := b.Drain()
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].ID)
	assert.Equal(t, "second", items[1].ID)
	assert.Nil(t, b.Drain())
}

func TestArrivalBuffer_Push_dropsOldestWhenFull(t *testing.T) {
	b := NewArrivalBuffer(2)
	b.Push(notify.Notification{ID: "a"})
	b.Push(notify.Notification{ID: "b"})
	b.Push(notify.Notification{ID: "c"})

	items := b.Drain()
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "c", items[1].ID)
	assert.Equal(t, 1, b.Dropped())
}

func TestArrivalBuffer_Signal_singleSignalDrainsAll(t *testing.T) {
	b := NewArrivalBuffer(0)
	b.Push(notify.Notification{ID: "one"})
	b.Push(notify.Notification{ID: "two"})

	<-b.Signal()
	assert.Len(t, b.Drain(), 2)

	select {
	case <-b.Signal():
		t.Fatal("expected signals to coalesce")
	default:
	}
}

func TestArrivalBuffer_Push_concurrent(t *testing.T) {
	b := NewArrivalBuffer(1000)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				b.Push(notify.Notification{ID: "x"})
			}
		}()
	}
	wg.Wait()

	select {
	case <-b.Signal():
	case <-time.After(time.Second):
		t.Fatal("no signal")
	}
	assert.Len(t, b.Drain(), 200)
}
