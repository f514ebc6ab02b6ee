package history

import (
	"context"
	"fmt"
	"maps"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kfchess/identity/pkg/pg"
)

// PostgresStore reads the user_game_history and campaign_progress tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetUserGameHistory(ctx context.Context, userID int64, offset, count int) ([]Entry, error) {
	offset, count, err := Page(offset, count)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, game_time, game_info
		 FROM user_game_history
		 WHERE user_id = $1
		 ORDER BY game_time DESC, id DESC
		 OFFSET $2 LIMIT $3`,
		userID, offset, count,
	)
	if err != nil {
		return nil, fmt.Errorf("query game history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, count)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.HistoryID, &e.UserID, &e.GameTime, &e.GameInfo); err != nil {
			return nil, fmt.Errorf("scan game history: %w", err)
		}
		if e.GameInfo == nil {
			e.GameInfo = map[string]any{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query game history: %w", err)
	}
	return entries, nil
}

// progressDoc is the JSON stored in campaign_progress.progress.
type progressDoc struct {
	LevelsCompleted map[string]bool `json:"levelsCompleted"`
	BeltsCompleted  map[string]bool `json:"beltsCompleted"`
}

func (s *PostgresStore) GetCampaignProgress(ctx context.Context, userID int64) (*CampaignProgress, error) {
	var doc progressDoc
	err := s.pool.QueryRow(ctx,
		`SELECT progress FROM campaign_progress WHERE user_id = $1`, userID,
	).Scan(&doc)
	if pg.IsNotFoundError(err) {
		return emptyProgress(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query campaign progress: %w", err)
	}

	p := emptyProgress(userID)
	maps.Copy(p.LevelsCompleted, doc.LevelsCompleted)
	maps.Copy(p.BeltsCompleted, doc.BeltsCompleted)
	return p, nil
}
