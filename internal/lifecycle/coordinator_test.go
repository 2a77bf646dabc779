package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsInDescendingPriorityOrder(t *testing.T) {
	c := NewCoordinator(NewRegistry(), time.Second)
	var mu sync.Mutex
	var order []string

	record := func(name string) ShutdownHandler {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	c.RegisterHandler("flush", 10, 0, record("flush"))
	c.RegisterHandler("transports", 100, 0, record("transports"))
	c.RegisterHandler("pipeline", 40, 0, record("pipeline"))

	failures := c.Shutdown(context.Background())
	assert.Empty(t, failures)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"transports", "pipeline", "flush"}, order)
}

func TestShutdownContinuesAfterHandlerError(t *testing.T) {
	c := NewCoordinator(NewRegistry(), time.Second)
	ran := false
	c.RegisterHandler("bad", 100, 0, func(ctx context.Context) error { return errors.New("fail") })
	c.RegisterHandler("good", 50, 0, func(ctx context.Context) error { ran = true; return nil })

	failures := c.Shutdown(context.Background())
	assert.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].Name)
	assert.True(t, ran)
}

func TestShutdownHandlerTimeoutReported(t *testing.T) {
	c := NewCoordinator(NewRegistry(), time.Second)
	c.RegisterHandler("slow", 100, 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	failures := c.Shutdown(context.Background())
	assert.Len(t, failures, 1)
}
