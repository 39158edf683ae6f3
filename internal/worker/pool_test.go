package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolDefaults(t *testing.T) {
	p := NewPool(Config{})
	defer p.Close()

	var ran atomic.Bool
	err := p.Submit(context.Background(), JobFunc(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestSubmitReturnsJobError(t *testing.T) {
	p := NewPool(Config{Workers: 2})
	defer p.Close()

	wantErr := errors.New("lookup failed")
	err := p.Submit(context.Background(), JobFunc(func(ctx context.Context) error {
		return wantErr
	}))
	assert.Equal(t, wantErr, err)
}

func TestSubmitContextCancelled(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1})
	defer p.Close()

	// Occupy the only worker so the next job cannot run before Submit
	// observes its already-cancelled context.
	block := make(chan struct{})
	go p.Submit(context.Background(), JobFunc(func(ctx context.Context) error {
		<-block
		return nil
	}))
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Submit(ctx, JobFunc(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, err, context.Canceled)
	close(block)
}

func TestSubmitAfterCloseReturnsErrPoolClosed(t *testing.T) {
	p := NewPool(Config{Workers: 2})
	require.NoError(t, p.Close())
	assert.NoError(t, p.Close()) // idempotent

	err := p.Submit(context.Background(), JobFunc(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestSubmitRecoversPanic(t *testing.T) {
	p := NewPool(Config{Workers: 1})
	defer p.Close()

	err := p.Submit(context.Background(), JobFunc(func(ctx context.Context) error {
		panic("boom")
	}))
	assert.Error(t, err)
}

func TestConcurrentSubmits(t *testing.T) {
	p := NewPool(Config{Workers: 8, QueueSize: 100})
	defer p.Close()

	const jobs = 200
	var completed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		go func() {
			defer wg.Done()
			err := p.Submit(context.Background(), JobFunc(func(ctx context.Context) error {
				completed.Add(1)
				return nil
			}))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, jobs, completed.Load())
}
