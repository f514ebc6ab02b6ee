package history

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStore keeps history in process. Used by tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	entries  map[int64][]Entry
	progress map[int64]*CampaignProgress
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[int64][]Entry),
		progress: make(map[int64]*CampaignProgress),
	}
}

// AddEntry records a game and returns it with its assigned id.
func (s *MemoryStore) AddEntry(e Entry) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.HistoryID = s.nextID
	e.GameInfo = maps.Clone(e.GameInfo)
	s.entries[e.UserID] = append(s.entries[e.UserID], e)
	return e
}

func (s *MemoryStore) SetCampaignProgress(p CampaignProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[p.UserID] = &CampaignProgress{
		UserID:          p.UserID,
		LevelsCompleted: maps.Clone(p.LevelsCompleted),
		BeltsCompleted:  maps.Clone(p.BeltsCompleted),
	}
}

func (s *MemoryStore) GetUserGameHistory(ctx context.Context, userID int64, offset, count int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offset, count, err := Page(offset, count)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := slices.Clone(s.entries[userID])
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b Entry) int {
		if c := b.GameTime.Compare(a.GameTime); c != 0 {
			return c
		}
		return cmp.Compare(b.HistoryID, a.HistoryID)
	})
	if offset >= len(all) {
		return []Entry{}, nil
	}
	return all[offset:min(offset+count, len(all))], nil
}

func (s *MemoryStore) GetCampaignProgress(ctx context.Context, userID int64) (*CampaignProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[userID]
	if !ok {
		return emptyProgress(userID), nil
	}
	out := emptyProgress(userID)
	maps.Copy(out.LevelsCompleted, p.LevelsCompleted)
	maps.Copy(out.BeltsCompleted, p.BeltsCompleted)
	return out, nil
}
