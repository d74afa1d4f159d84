package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"uk-requests/internal/model"
)

// memStore is an in-memory RequestStore + HistoryLedger + TxRunner. A
// transaction holds the store mutex for its whole duration and restores
// the previous state when fn fails.
type memStore struct {
	mu        sync.Mutex
	requests  map[uuid.UUID]model.Request
	history   []model.RequestHistory
	seq       int64
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{requests: make(map[uuid.UUID]model.Request)}
}

func (s *memStore) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	savedRequests := make(map[uuid.UUID]model.Request, len(s.requests))
	for k, v := range s.requests {
		savedRequests[k] = v
	}
	savedHistory := append([]model.RequestHistory(nil), s.history...)
	savedSeq := s.seq

	if err := fn(ctx); err != nil {
		s.requests, s.history, s.seq = savedRequests, savedHistory, savedSeq
		return err
	}
	return nil
}

func (s *memStore) Create(_ context.Context, req *model.Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	s.requests[req.ID] = *req
	return nil
}

func (s *memStore) FindForUpdate(_ context.Context, id uuid.UUID) (*model.Request, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) (bool, error) {
	r, ok := s.requests[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = at
	s.requests[id] = r
	return true, nil
}

func (s *memStore) Append(_ context.Context, entry *model.RequestHistory) (uuid.UUID, error) {
	if s.appendErr != nil {
		return uuid.Nil, s.appendErr
	}
	entry.ID = uuid.New()
	s.seq++
	entry.Seq = s.seq
	s.history = append(s.history, *entry)
	return entry.ID, nil
}

// seed stores a request directly, bypassing the machine.
func (s *memStore) seed(owner uuid.UUID, status model.RequestStatus) model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Request{ID: uuid.New(), UserID: owner, Category: model.CategoryPlumbing, Title: "Leak", Status: status}
	s.requests[r.ID] = r
	return r
}

func (s *memStore) get(id uuid.UUID) model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

func (s *memStore) historyFor(id uuid.UUID) []model.RequestHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RequestHistory
	for _, h := range s.history {
		if h.RequestID == id {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

var errAppendFailed = errors.New("disk full")
