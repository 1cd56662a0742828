package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/soriai/sori/internal/models"
)

type ArchiveRepository interface {
	Insert(ctx context.Context, doc *models.TurnAudio) error
	MarkUploaded(ctx context.Context, sessionID string, turnIndex int64, audioURL, status string) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnAudio, error)
}

type archiveRepo struct {
	col *mongo.Collection
}

func NewArchiveRepo(db *mongo.Database) ArchiveRepository {
	return &archiveRepo{col: db.Collection("turn_audio")}
}

func (r *archiveRepo) Insert(ctx context.Context, doc *models.TurnAudio) error {
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, doc)
	return err
}

func (r *archiveRepo) MarkUploaded(ctx context.Context, sessionID string, turnIndex int64, audioURL, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "turn_index": turnIndex},
		bson.M{"$set": bson.M{
			"audio_url": audioURL,
			"status":    status,
		}},
	)
	return err
}

func (r *archiveRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnAudio, error) {
	if limit <= 0 {
		limit = 100
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "turn_index", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TurnAudio
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
