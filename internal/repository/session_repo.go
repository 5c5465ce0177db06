package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"interviewlab/internal/model"
)

// SessionRepo is the persisted session store the pipeline depends on. It is
// deliberately narrow: any durable backend that can satisfy it will do.
type SessionRepo interface {
	Create(ctx context.Context, session *model.InterviewSession) error
	GetByID(ctx context.Context, id string) (*model.InterviewSession, error)
	Update(ctx context.Context, session *model.InterviewSession) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*model.InterviewSession, error)
	ListOwners(ctx context.Context) ([]string, error)
	MarkArchived(ctx context.Context, id string, at time.Time) error
}

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo creates a session repository over the given database.
func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{collection: db.Collection("sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.InterviewSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	if session.Status == "" {
		session.Status = model.SessionCreated
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.InterviewSession, error) {
	var session model.InterviewSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Update(ctx context.Context, session *model.InterviewSession) error {
	update := bson.M{"$set": session}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": session.ID}, update)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *sessionRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.InterviewSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.InterviewSession
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) ListOwners(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "ownerId", bson.M{})
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			owners = append(owners, s)
		}
	}
	return owners, nil
}

func (r *sessionRepo) MarkArchived(ctx context.Context, id string, at time.Time) error {
	update := bson.M{"$set": bson.M{"archived": true, "archivedAt": at}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}
