package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"interviewlab/internal/model"
	"interviewlab/internal/repository"
)

// Seeds a handful of completed sessions at different ages so retention
// classification and exports have something to chew on locally.
func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database("interviewlab")
	sessions := repository.NewSessionRepo(db)
	metrics := repository.NewMetricsRepo(db)

	ownerID := "user_demo"
	now := time.Now()

	fixtures := []struct {
		ageDays     int
		interviewer string
		itype       string
		difficulty  string
		engagement  float64
		eyeContact  float64
	}{
		{2, "Alex", "technical", "medium", 0.72, 68.0},
		{45, "Morgan", "behavioral", "easy", 0.81, 74.5},
		{120, "Alex", "technical", "hard", 0.64, 55.2},
		{400, "Sam", "system-design", "hard", 0.58, 49.8},
	}

	for i, f := range fixtures {
		startedAt := now.AddDate(0, 0, -f.ageDays)
		completedAt := startedAt.Add(25 * time.Minute)

		session := &model.InterviewSession{
			OwnerID:     ownerID,
			Status:      model.SessionCompleted,
			StartedAt:   startedAt,
			CompletedAt: &completedAt,
			Interviewer: f.interviewer,
			Type:        f.itype,
			Difficulty:  f.difficulty,
			TopicFocus:  "algorithms",
			Purpose:     "practice",
			Responses: []model.SessionResponse{
				{
					QuestionID:    fmt.Sprintf("q%d", i+1),
					Transcription: "Sample answer covering the main points.",
					Duration:      90,
					Confidence:    0.7,
				},
			},
		}

		if err := sessions.Create(ctx, session); err != nil {
			log.Fatalf("Failed to insert session: %v", err)
		}

		m := &model.InterviewMetrics{
			SessionID:            session.ID,
			EyeContactPercentage: f.eyeContact,
			MoodTimeline:         []model.MoodDataPoint{},
			AverageConfidence:    0.7,
			ResponseQuality:      0.65,
			OverallEngagement:    f.engagement,
		}
		if err := metrics.Store(ctx, m); err != nil {
			log.Fatalf("Failed to insert metrics: %v", err)
		}
	}

	fmt.Printf("Seeded %d completed sessions for owner '%s'\n", len(fixtures), ownerID)
}
