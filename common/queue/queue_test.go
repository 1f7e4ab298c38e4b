package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatraz/limsbridge/common/logger"
)

func testQueue(bufSize int) *MemoryQueue {
	return NewMemoryQueue(bufSize, logger.New("error", "text"))
}

func TestPublishSubscribeOrder(t *testing.T) {
	q := testQueue(16)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 16)
	require.NoError(t, q.Subscribe(ctx, "test", func(ctx context.Context, key string, value []byte) error {
		received <- key
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Publish(ctx, "test", fmt.Sprintf("msg-%d", i), []byte("payload")))
	}

	for i := 0; i < 5; i++ {
		select {
		case key := <-received:
			assert.Equal(t, fmt.Sprintf("msg-%d", i), key)
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d was not delivered", i)
		}
	}
}

func TestPublishBlocksWhenFull(t *testing.T) {
	q := testQueue(1)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, "test", "first", []byte("a")))

	blocked, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	err := q.Publish(blocked, "test", "second", []byte("b"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandlerErrorDoesNotStopConsumer(t *testing.T) {
	q := testQueue(16)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 16)
	require.NoError(t, q.Subscribe(ctx, "test", func(ctx context.Context, key string, value []byte) error {
		if key == "bad" {
			return fmt.Errorf("handler failure")
		}
		received <- key
		return nil
	}))

	require.NoError(t, q.Publish(ctx, "test", "bad", []byte("a")))
	require.NoError(t, q.Publish(ctx, "test", "good", []byte("b")))

	select {
	case key := <-received:
		assert.Equal(t, "good", key)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer stopped after handler error")
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	q := testQueue(16)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := make(chan string, 1)
	require.NoError(t, q.Subscribe(ctx, "topic-a", func(ctx context.Context, key string, value []byte) error {
		a <- key
		return nil
	}))

	require.NoError(t, q.Publish(ctx, "topic-b", "stray", []byte("x")))
	require.NoError(t, q.Publish(ctx, "topic-a", "mine", []byte("y")))

	select {
	case key := <-a:
		assert.Equal(t, "mine", key)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
	assert.Empty(t, a)
}
