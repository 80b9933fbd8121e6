package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Spotibuds/User/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotificationNotFound covers both a missing record and a record owned by
// another user, so existence of foreign notifications never leaks.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetByTargetID(ctx context.Context, userID string, skip, limit int64) ([]models.Notification, error)
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id, userID string) error
	MarkAsHandled(ctx context.Context, id, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	CleanupExpiredHandled(ctx context.Context, userID string, olderThan time.Duration) (int64, error)
	SweepExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MongoNotificationRepository implements NotificationRepository for MongoDB
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates a new MongoNotificationRepository
func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection("notifications")}
}

// CreateNotification persists a new notification record
func (r *MongoNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	notification.ID = primitive.NewObjectID()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	if notification.Status == "" {
		notification.Status = models.StatusUnread
	}
	_, err := r.collection.InsertOne(ctx, notification)
	return err
}

// activeFilter matches non-expired records for a user. Records past their
// expiry are excluded even before the cleanup sweep physically deletes them.
func activeFilter(userID string, now time.Time) bson.M {
	return bson.M{
		"target_user_id": userID,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}
}

// GetByTargetID retrieves a user's notifications, most recent first, with
// pagination. Expired records are excluded.
func (r *MongoNotificationRepository) GetByTargetID(ctx context.Context, userID string, skip, limit int64) ([]models.Notification, error) {
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, activeFilter(userID, time.Now()), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notifications := make([]models.Notification, 0)
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// GetUnreadCount counts unread, non-expired notifications for a user
func (r *MongoNotificationRepository) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	filter := activeFilter(userID, time.Now())
	filter["status"] = models.StatusUnread
	return r.collection.CountDocuments(ctx, filter)
}

// MarkAsRead transitions a notification to read. Idempotent when already
// read; a no-op when already handled; ErrNotificationNotFound when the record
// does not exist or is owned by another user.
func (r *MongoNotificationRepository) MarkAsRead(ctx context.Context, id, userID string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid notification ID format: %w", err)
	}

	now := time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "target_user_id": userID, "status": models.StatusUnread},
		bson.M{"$set": bson.M{"status": models.StatusRead, "read_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return r.ensureOwned(ctx, objID, userID)
}

// MarkAsHandled transitions a notification to its terminal handled state,
// permitted from unread or read. A no-op when already handled.
func (r *MongoNotificationRepository) MarkAsHandled(ctx context.Context, id, userID string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid notification ID format: %w", err)
	}

	now := time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":            objID,
			"target_user_id": userID,
			"status":         bson.M{"$in": bson.A{models.StatusUnread, models.StatusRead}},
		},
		bson.M{"$set": bson.M{"status": models.StatusHandled, "handled_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return r.ensureOwned(ctx, objID, userID)
}

// ensureOwned distinguishes an invalid-transition no-op from a record that is
// missing or not owned by the caller.
func (r *MongoNotificationRepository) ensureOwned(ctx context.Context, id primitive.ObjectID, userID string) error {
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "target_user_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return ErrNotificationNotFound
	}
	return err
}

// MarkAllAsRead transitions every unread notification of a user to read and
// returns the number affected.
func (r *MongoNotificationRepository) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	now := time.Now()
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"target_user_id": userID, "status": models.StatusUnread},
		bson.M{"$set": bson.M{"status": models.StatusRead, "read_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CleanupExpiredHandled deletes a user's handled notifications older than the
// cutoff and returns the number deleted.
func (r *MongoNotificationRepository) CleanupExpiredHandled(ctx context.Context, userID string, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"target_user_id": userID,
		"status":         models.StatusHandled,
		"created_at":     bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// SweepExpired deletes, across all users, handled notifications older than
// the cutoff and any record whose expiry has passed. Used by the background
// cleanup worker.
func (r *MongoNotificationRepository) SweepExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now()
	cutoff := now.Add(-olderThan)
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"$or": bson.A{
			bson.M{"status": models.StatusHandled, "created_at": bson.M{"$lt": cutoff}},
			bson.M{"expires_at": bson.M{"$ne": nil, "$lt": now}},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
