package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"interviewlab/internal/model"
)

// MetricsRepo persists final interview metrics keyed by session id.
type MetricsRepo interface {
	Store(ctx context.Context, metrics *model.InterviewMetrics) error
	Get(ctx context.Context, sessionID string) (*model.InterviewMetrics, error)
	Update(ctx context.Context, sessionID string, update *model.MetricsUpdate) error
	Delete(ctx context.Context, sessionID string) error
}

type metricsRepo struct {
	collection *mongo.Collection
}

// NewMetricsRepo creates a metrics repository over the given database.
func NewMetricsRepo(db *mongo.Database) MetricsRepo {
	return &metricsRepo{collection: db.Collection("interview_metrics")}
}

func (r *metricsRepo) Store(ctx context.Context, metrics *model.InterviewMetrics) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"sessionId": metrics.SessionID}, metrics, opts)
	return err
}

func (r *metricsRepo) Get(ctx context.Context, sessionID string) (*model.InterviewMetrics, error) {
	var metrics model.InterviewMetrics
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&metrics)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &metrics, nil
}

// Update applies a typed partial update. Only fields set on the update
// struct are written; there is no path for arbitrary patches.
func (r *metricsRepo) Update(ctx context.Context, sessionID string, update *model.MetricsUpdate) error {
	set := bson.M{}
	if update.EyeContactPercentage != nil {
		set["eyeContactPercentage"] = *update.EyeContactPercentage
	}
	if update.AverageConfidence != nil {
		set["averageConfidence"] = *update.AverageConfidence
	}
	if update.ResponseQuality != nil {
		set["responseQuality"] = *update.ResponseQuality
	}
	if update.OverallEngagement != nil {
		set["overallEngagement"] = *update.OverallEngagement
	}
	if update.MoodTimeline != nil {
		set["moodTimeline"] = *update.MoodTimeline
	}
	if len(set) == 0 {
		return nil
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"sessionId": sessionID}, bson.M{"$set": set})
	return err
}

func (r *metricsRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"sessionId": sessionID})
	return err
}
