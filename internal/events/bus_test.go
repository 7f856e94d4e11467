package events

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewBus("test", logger)
}

func TestBusDeliversSynchronouslyInOrder(t *testing.T) {
	bus := newTestBus()
	var calls []string

	bus.Subscribe(func(ctx context.Context, e Event) error {
		calls = append(calls, "first:"+e.ItemID)
		return nil
	}, ItemUpserted, ItemDeleted)
	bus.Subscribe(func(ctx context.Context, e Event) error {
		calls = append(calls, "second:"+e.Type.String())
		return nil
	}, ItemUpserted)

	require.NoError(t, bus.Publish(context.Background(), ItemUpserted, "a", nil))
	require.NoError(t, bus.Publish(context.Background(), ItemDeleted, "b", nil))

	assert.Equal(t, []string{"first:a", "second:item_upserted", "first:b"}, calls)
}

func TestBusStampsEvents(t *testing.T) {
	bus := newTestBus()
	var got Event
	bus.Subscribe(func(ctx context.Context, e Event) error {
		got = e
		return nil
	}, AlertEmitted)

	require.NoError(t, bus.Publish(context.Background(), AlertEmitted, "a", map[string]string{"kind": "soon"}))

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "test", got.Source)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "soon", got.Payload["kind"])
}

func TestBusReturnsFirstHandlerError(t *testing.T) {
	bus := newTestBus()
	secondRan := false
	bus.Subscribe(func(ctx context.Context, e Event) error { return errors.New("first failed") }, SettingsChanged)
	bus.Subscribe(func(ctx context.Context, e Event) error {
		secondRan = true
		return errors.New("second failed")
	}, SettingsChanged)

	err := bus.Publish(context.Background(), SettingsChanged, "", nil)

	assert.EqualError(t, err, "first failed")
	assert.True(t, secondRan)
}

func TestBusWithoutSubscribers(t *testing.T) {
	assert.NoError(t, newTestBus().Publish(context.Background(), DataImported, "", nil))
}
