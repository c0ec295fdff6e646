// Package repositories contains MongoDB repository implementations.
package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// Collection name
const (
	submissionCollection = "submissions"
)

// SubmissionRepository defines the interface for queue submission data
// access operations. Vote counters are updated with $inc so that concurrent
// ballots on different entries never clobber each other; per-entry ballot
// ordering is serialized by the room lock above this layer.
type SubmissionRepository interface {
	// Create inserts a new submission.
	Create(ctx context.Context, submission *models.Submission) error

	// FindByID finds a submission by its ID.
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Submission, error)

	// FindQueue returns the unplayed submissions for a room ordered by net
	// score descending, then submission time ascending.
	FindQueue(ctx context.Context, roomID bson.ObjectID) ([]*models.Submission, error)

	// SetBallot records a voter's ballot on an entry and adjusts the
	// counters for the transition from the previous ballot value.
	SetBallot(ctx context.Context, id bson.ObjectID, voterID string, previous, next int) error

	// PopNext atomically claims the head of the queue, marking it played.
	// Returns nil when the queue is empty.
	PopNext(ctx context.Context, roomID bson.ObjectID) (*models.Submission, error)

	// MarkPlayed marks a specific submission as played.
	MarkPlayed(ctx context.Context, id bson.ObjectID) error

	// Delete removes a submission.
	Delete(ctx context.Context, id bson.ObjectID) error

	// DeleteByRoom removes all submissions for a room.
	DeleteByRoom(ctx context.Context, roomID bson.ObjectID) (int64, error)
}

// submissionRepository is the MongoDB implementation of SubmissionRepository.
type submissionRepository struct {
	collection *mongo.Collection
	logger     *utils.Logger
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *mongo.Database, logger *utils.Logger) SubmissionRepository {
	return &submissionRepository{
		collection: db.Collection(submissionCollection),
		logger:     logger.Named("submission_repository"),
	}
}

// queueSort is the canonical queue order.
var queueSort = bson.D{
	{Key: "netScore", Value: -1},
	{Key: "createdAt", Value: 1},
}

// Create inserts a new submission.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID.IsZero() {
		submission.ID = bson.NewObjectID()
	}
	if submission.Ballots == nil {
		submission.Ballots = make(map[string]int)
	}

	submission.CreateNow()

	_, err := r.collection.InsertOne(ctx, submission)
	if err != nil {
		r.logger.Error("Failed to create submission", err, "roomId", submission.RoomID.Hex())
		return models.NewInternalError(err)
	}

	return nil
}

// FindByID finds a submission by its ID.
func (r *submissionRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Submission, error) {
	var submission models.Submission

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&submission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrEntryNotFound
		}
		r.logger.Error("Failed to find submission by ID", err, "id", id.Hex())
		return nil, models.NewInternalError(err)
	}

	return &submission, nil
}

// FindQueue returns the unplayed submissions for a room in queue order.
func (r *submissionRepository) FindQueue(ctx context.Context, roomID bson.ObjectID) ([]*models.Submission, error) {
	opts := options.Find().SetSort(queueSort)

	cursor, err := r.collection.Find(ctx, bson.M{"roomId": roomID, "played": false}, opts)
	if err != nil {
		r.logger.Error("Failed to find queue", err, "roomId", roomID.Hex())
		return nil, models.NewInternalError(err)
	}
	defer cursor.Close(ctx)

	var submissions []*models.Submission
	if err = cursor.All(ctx, &submissions); err != nil {
		r.logger.Error("Failed to decode queue", err, "roomId", roomID.Hex())
		return nil, models.NewInternalError(err)
	}

	return submissions, nil
}

// SetBallot records a voter's ballot and adjusts counters for the
// transition. previous and next are -1, 0, or 1; 0 means no ballot.
func (r *submissionRepository) SetBallot(ctx context.Context, id bson.ObjectID, voterID string, previous, next int) error {
	count := func(ballot, polarity int) int {
		if ballot == polarity {
			return 1
		}
		return 0
	}

	inc := bson.M{}
	if delta := count(next, models.BallotUp) - count(previous, models.BallotUp); delta != 0 {
		inc["upCount"] = delta
	}
	if delta := count(next, models.BallotDown) - count(previous, models.BallotDown); delta != 0 {
		inc["downCount"] = delta
	}
	if delta := next - previous; delta != 0 {
		inc["netScore"] = delta
	}

	update := bson.D{}
	if next == 0 {
		update = append(update, cmdUnset(bson.M{"ballots." + voterID: ""}))
	} else {
		update = append(update, cmdSet(bson.M{"ballots." + voterID: next}))
	}
	if len(inc) > 0 {
		update = append(update, cmdInc(inc))
	}

	result, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		r.logger.Error("Failed to set ballot", err, "id", id.Hex(), "voterId", voterID)
		return models.NewInternalError(err)
	}

	if result.MatchedCount == 0 {
		return models.ErrEntryNotFound
	}

	return nil
}

// PopNext atomically claims the head of the queue.
func (r *submissionRepository) PopNext(ctx context.Context, roomID bson.ObjectID) (*models.Submission, error) {
	opts := options.FindOneAndUpdate().
		SetSort(queueSort).
		SetReturnDocument(options.After)

	update := bson.D{
		cmdSet(bson.M{"played": true}),
	}

	var submission models.Submission
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"roomId": roomID, "played": false}, update, opts).Decode(&submission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to pop next submission", err, "roomId", roomID.Hex())
		return nil, models.NewInternalError(err)
	}

	return &submission, nil
}

// MarkPlayed marks a specific submission as played.
func (r *submissionRepository) MarkPlayed(ctx context.Context, id bson.ObjectID) error {
	update := bson.D{
		cmdSet(bson.M{"played": true}),
	}

	result, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		r.logger.Error("Failed to mark submission played", err, "id", id.Hex())
		return models.NewInternalError(err)
	}

	if result.MatchedCount == 0 {
		return models.ErrEntryNotFound
	}

	return nil
}

// Delete removes a submission.
func (r *submissionRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("Failed to delete submission", err, "id", id.Hex())
		return models.NewInternalError(err)
	}

	if result.DeletedCount == 0 {
		return models.ErrEntryNotFound
	}

	return nil
}

// DeleteByRoom removes all submissions for a room.
func (r *submissionRepository) DeleteByRoom(ctx context.Context, roomID bson.ObjectID) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"roomId": roomID})
	if err != nil {
		r.logger.Error("Failed to delete room submissions", err, "roomId", roomID.Hex())
		return 0, models.NewInternalError(err)
	}

	return result.DeletedCount, nil
}
