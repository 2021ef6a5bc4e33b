package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-covid-pipeline/internal/model"
)

type fakeLoader struct {
	calls int32
	fail  int32 // number of leading calls that fail
	rs    *model.RecordSet
}

func (f *fakeLoader) Load(ctx context.Context) (*model.RecordSet, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= atomic.LoadInt32(&f.fail) {
		return nil, &LoadError{Source: "fake", Op: OpFetch, Err: errors.New("connection refused")}
	}
	return f.rs, nil
}

func TestSession_LoadsOnce(t *testing.T) {
	t.Parallel()
	loader := &fakeLoader{rs: parseSample(t, sampleCSV)}
	s := NewSession(loader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs, err := s.Records(context.Background())
			assert.NoError(t, err)
			assert.Same(t, loader.rs, rs)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
}

func TestSession_FailedLoadIsRetried(t *testing.T) {
	t.Parallel()
	loader := &fakeLoader{rs: parseSample(t, sampleCSV), fail: 1}
	s := NewSession(loader)

	_, err := s.Records(context.Background())
	require.ErrorIs(t, err, ErrLoad)

	rs, err := s.Records(context.Background())
	require.NoError(t, err)
	assert.Same(t, loader.rs, rs)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loader.calls))
}

func TestSession_WeeklyIsMemoized(t *testing.T) {
	t.Parallel()
	s := NewSessionWithRecords(parseSample(t, sampleCSV))

	first, err := s.Weekly(context.Background())
	require.NoError(t, err)
	second, err := s.Weekly(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, first.Rows, 4)
}

func TestSession_WeeklyPropagatesLoadError(t *testing.T) {
	t.Parallel()
	s := NewSession(&fakeLoader{fail: 1})

	ws, err := s.Weekly(context.Background())
	assert.Nil(t, ws)
	assert.ErrorIs(t, err, ErrLoad)
}

// gatedLoader blocks until release is closed and reports the ctx it saw.
type gatedLoader struct {
	started chan struct{}
	release chan struct{}
	rs      *model.RecordSet
	ctxErr  error
}

func (g *gatedLoader) Load(ctx context.Context) (*model.RecordSet, error) {
	close(g.started)
	<-g.release
	g.ctxErr = ctx.Err()
	if g.ctxErr != nil {
		return nil, g.ctxErr
	}
	return g.rs, nil
}

func TestSession_CancelledCallerDoesNotFailOthers(t *testing.T) {
	t.Parallel()
	loader := &gatedLoader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		rs:      parseSample(t, sampleCSV),
	}
	s := NewSession(loader)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Records(ctx)
		firstErr <- err
	}()
	<-loader.started

	secondDone := make(chan struct{})
	var second *model.RecordSet
	var secondErr error
	go func() {
		defer close(secondDone)
		second, secondErr = s.Records(context.Background())
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(loader.release)
	<-secondDone
	require.NoError(t, secondErr)
	assert.Same(t, loader.rs, second)
	assert.NoError(t, loader.ctxErr)

	// the shared load completed and is memoized
	rs, err := s.Records(context.Background())
	require.NoError(t, err)
	assert.Same(t, loader.rs, rs)
}
