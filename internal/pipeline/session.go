package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"go-covid-pipeline/internal/model"
)

// DatasetLoader is anything that can produce the record set.
type DatasetLoader interface {
	Load(ctx context.Context) (*model.RecordSet, error)
}

// Session holds the record set for the lifetime of the process and memoizes
// the weekly series derived from it. The record set is loaded once; a failed
// load is not remembered, so the next call tries again.
type Session struct {
	loader DatasetLoader
	group  singleflight.Group

	mu         sync.RWMutex
	records    *model.RecordSet
	weekly     *model.WeeklySeries
	weeklyFrom *model.RecordSet
}

// NewSession creates a session over loader.
func NewSession(loader DatasetLoader) *Session {
	return &Session{loader: loader}
}

// NewSessionWithRecords creates a session that is already loaded.
func NewSessionWithRecords(rs *model.RecordSet) *Session {
	return &Session{records: rs}
}

// Records returns the session's record set, loading it on first use.
// Concurrent callers share one load. The load is detached from any single
// caller's cancellation; a caller whose ctx ends stops waiting and gets ctx.Err().
func (s *Session) Records(ctx context.Context) (*model.RecordSet, error) {
	s.mu.RLock()
	rs := s.records
	s.mu.RUnlock()
	if rs != nil {
		return rs, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("records", func() (interface{}, error) {
		s.mu.RLock()
		cached := s.records
		s.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		loaded, err := s.loader.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.records = loaded
		s.mu.Unlock()
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.RecordSet), nil
	}
}

// Weekly returns the weekly series of the session's record set. It is computed
// once per loaded record set.
func (s *Session) Weekly(ctx context.Context) (*model.WeeklySeries, error) {
	rs, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	ws, from := s.weekly, s.weeklyFrom
	s.mu.RUnlock()
	if ws != nil && from == rs {
		return ws, nil
	}

	v, _, _ := s.group.Do("weekly", func() (interface{}, error) {
		s.mu.RLock()
		ws, from := s.weekly, s.weeklyFrom
		s.mu.RUnlock()
		if ws != nil && from == rs {
			return ws, nil
		}

		ws = PrepareWeekly(rs)
		s.mu.Lock()
		s.weekly, s.weeklyFrom = ws, rs
		s.mu.Unlock()
		return ws, nil
	})
	return v.(*model.WeeklySeries), nil
}
