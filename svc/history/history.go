// Package history reads a player's past games and campaign progress.
package history

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	MinCount = 1
	MaxCount = 100

	opponentsKey   = "opponents"
	userOpponentID = "u:"
)

var ErrInvalidOffset = errors.New("history: offset must not be negative")

// Entry is one finished game from a player's point of view.
type Entry struct {
	HistoryID int64          `json:"historyId"`
	UserID    int64          `json:"userId"`
	GameTime  time.Time      `json:"gameTime"`
	GameInfo  map[string]any `json:"gameInfo"`
}

// CampaignProgress lists completed levels and belts keyed by their number.
type CampaignProgress struct {
	UserID          int64           `json:"-"`
	LevelsCompleted map[string]bool `json:"levelsCompleted"`
	BeltsCompleted  map[string]bool `json:"beltsCompleted"`
}

func emptyProgress(userID int64) *CampaignProgress {
	return &CampaignProgress{
		UserID:          userID,
		LevelsCompleted: map[string]bool{},
		BeltsCompleted:  map[string]bool{},
	}
}

// Store is implemented by every history backend.
type Store interface {
	// GetUserGameHistory returns up to count entries, newest first.
	GetUserGameHistory(ctx context.Context, userID int64, offset, count int) ([]Entry, error)
	// GetCampaignProgress returns empty progress for players without a row.
	GetCampaignProgress(ctx context.Context, userID int64) (*CampaignProgress, error)
}

// Page validates offset and clamps count into [MinCount, MaxCount].
func Page(offset, count int) (int, int, error) {
	if offset < 0 {
		return 0, 0, ErrInvalidOffset
	}
	return offset, min(max(count, MinCount), MaxCount), nil
}

// OpponentIDs collects the distinct "u:<id>" opponents across entries in
// ascending order. Bots and malformed ids are skipped.
func OpponentIDs(entries []Entry) []int64 {
	seen := make(map[int64]struct{})
	for _, e := range entries {
		for _, op := range opponents(e.GameInfo) {
			raw, ok := strings.CutPrefix(op, userOpponentID)
			if !ok {
				continue
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			seen[id] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func opponents(info map[string]any) []string {
	switch v := info[opponentsKey].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
