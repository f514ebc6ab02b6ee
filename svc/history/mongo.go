package history

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	historyCollection  = "user_game_history"
	campaignCollection = "campaign_progress"
)

// MongoStore reads history documents from a Mongo database.
type MongoStore struct {
	history  *mongo.Collection
	campaign *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		history:  db.Collection(historyCollection),
		campaign: db.Collection(campaignCollection),
	}
}

type historyDocument struct {
	ID       int64     `bson:"_id"`
	UserID   int64     `bson:"user_id"`
	GameTime time.Time `bson:"game_time"`
	GameInfo bson.M    `bson:"game_info"`
}

type campaignDocument struct {
	UserID          int64           `bson:"_id"`
	LevelsCompleted map[string]bool `bson:"levels_completed"`
	BeltsCompleted  map[string]bool `bson:"belts_completed"`
}

// EnsureIndexes creates the index backing the newest-first history query.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "game_time", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create history index: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUserGameHistory(ctx context.Context, userID int64, offset, count int) ([]Entry, error) {
	offset, count, err := Page(offset, count)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "game_time", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(count))
	cursor, err := s.history.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find game history: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []historyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode game history: %w", err)
	}

	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		info, _ := plain(d.GameInfo).(map[string]any)
		if info == nil {
			info = map[string]any{}
		}
		entries = append(entries, Entry{
			HistoryID: d.ID,
			UserID:    d.UserID,
			GameTime:  d.GameTime,
			GameInfo:  info,
		})
	}
	return entries, nil
}

func (s *MongoStore) GetCampaignProgress(ctx context.Context, userID int64) (*CampaignProgress, error) {
	var doc campaignDocument
	err := s.campaign.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return emptyProgress(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find campaign progress: %w", err)
	}

	p := emptyProgress(userID)
	maps.Copy(p.LevelsCompleted, doc.LevelsCompleted)
	maps.Copy(p.BeltsCompleted, doc.BeltsCompleted)
	return p, nil
}

// plain converts decoded BSON containers into map[string]any and []any so the
// result serialises like JSON-sourced game info.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	default:
		return v
	}
}
