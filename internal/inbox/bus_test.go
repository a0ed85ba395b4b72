package inbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/inbox/internal/core/notify"
)

func TestBus_Publish_dispatches_to_subscribers(t *testing.T) {
	bus := NewBus()

	var first, second []string
	bus.Subscribe(func(n notify.Notification) { first = append(first, n.ID) })
	bus.Subscribe(func(n notify.Notification) { second = append(second, n.ID) })

	bus.Publish(notify.Notification{ID: "a"})
	bus.Publish(notify.Notification{ID: "b"})

	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, []string{"a", "b"}, second)
}

func TestBus_Publish_preserves_registration_order(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := range 5 {
		bus.Subscribe(func(notify.Notification) { order = append(order, i) })
	}

	bus.Publish(notify.Notification{ID: "a"})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	unsubscribe := bus.Subscribe(func(notify.Notification) { count++ })

	bus.Publish(notify.Notification{ID: "a"})
	unsubscribe()
	unsubscribe()
	bus.Publish(notify.Notification{ID: "b"})

	require.Equal(t, 1, count)
}

func TestBus_Publish_without_subscribers(t *testing.T) {
	assert.NotPanics(t, func() { NewBus().Publish(notify.Notification{ID: "a"}) })
}
