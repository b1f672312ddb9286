package feed_test

import (
	"errors"
	"testing"

	"github.com/rpggio/fastwatch/internal/feed"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHub_InitialThenPublish(t *testing.T) {
	hub := feed.New[string, int]()
	sub, err := hub.Subscribe("u1", func() (int, error) { return 1, nil })
	require.NoError(t, err)
	defer sub.Close()

	require.Equal(t, 1, <-sub.C())

	hub.Publish("u1", 2)
	require.Equal(t, 2, <-sub.C())
}

func TestHub_CoalescesUnread(t *testing.T) {
	hub := feed.New[string, int]()
	sub, err := hub.Subscribe("u1", nil)
	require.NoError(t, err)
	defer sub.Close()

	hub.Publish("u1", 1)
	hub.Publish("u1", 2)
	hub.Publish("u1", 3)

	require.Equal(t, 3, <-sub.C())
	select {
	case v := <-sub.C():
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestHub_ScopedByKey(t *testing.T) {
	hub := feed.New[string, int]()
	a, err := hub.Subscribe("a", nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := hub.Subscribe("b", nil)
	require.NoError(t, err)
	defer b.Close()

	hub.Publish("a", 7)
	require.Equal(t, 7, <-a.C())
	require.Empty(t, b.C())
}

func TestHub_CloseDetaches(t *testing.T) {
	hub := feed.New[string, int]()
	sub, err := hub.Subscribe("u1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, hub.Subscribers("u1"))

	sub.Close()
	sub.Close()
	require.Equal(t, 0, hub.Subscribers("u1"))

	_, open := <-sub.C()
	require.False(t, open)

	hub.Publish("u1", 1)
}

func TestHub_InitialError(t *testing.T) {
	hub := feed.New[string, int]()
	boom := errors.New("boom")
	_, err := hub.Subscribe("u1", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, hub.Subscribers("u1"))
}

func TestHub_CloseHub(t *testing.T) {
	hub := feed.New[string, int]()
	sub, err := hub.Subscribe("u1", nil)
	require.NoError(t, err)

	hub.Close()
	_, open := <-sub.C()
	require.False(t, open)
	sub.Close()

	_, err = hub.Subscribe("u1", nil)
	require.ErrorIs(t, err, feed.ErrClosed)
}
