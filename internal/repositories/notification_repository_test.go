package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/Spotibuds/User/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// The repository folds its state-machine and ownership rules into the filter
// documents it sends to Mongo. These tests run against the driver's mock
// deployment: canned replies drive the result handling, and the captured
// command documents prove what each filter pins down.

func newMockRepo(mt *mtest.T) *MongoNotificationRepository {
	return NewMongoNotificationRepository(mt.DB)
}

func notificationsNS(mt *mtest.T) string {
	return mt.DB.Name() + ".notifications"
}

func updateMatched(n int32) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: n},
		bson.E{Key: "nModified", Value: n},
	)
}

func ownedDoc(id primitive.ObjectID, userID string, status models.NotificationStatus) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "target_user_id", Value: userID},
		{Key: "type", Value: string(models.NotificationMessage)},
		{Key: "status", Value: string(status)},
		{Key: "title", Value: "New message"},
		{Key: "created_at", Value: time.Now()},
	}
}

// firstUpdateStatement pops the next started command, requires it to be an
// update, and returns its single statement ({q, u, multi}).
func firstUpdateStatement(mt *mtest.T) bson.Raw {
	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt)
	require.Equal(mt, "update", evt.CommandName)
	updates, err := evt.Command.Lookup("updates").Array().Values()
	require.NoError(mt, err)
	require.Len(mt, updates, 1)
	return updates[0].Document()
}

func firstDeleteFilter(mt *mtest.T) bson.Raw {
	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt)
	require.Equal(mt, "delete", evt.CommandName)
	deletes, err := evt.Command.Lookup("deletes").Array().Values()
	require.NoError(mt, err)
	require.Len(mt, deletes, 1)
	return deletes[0].Document().Lookup("q").Document()
}

// requireActiveClauses asserts the expiry exclusion: absent, null, or a
// strictly future expires_at.
func requireActiveClauses(mt *mtest.T, filter bson.Raw) {
	or, err := filter.LookupErr("$or")
	require.NoError(mt, err)
	clauses, err := or.Array().Values()
	require.NoError(mt, err)
	require.Len(mt, clauses, 3)
	assert.False(mt, clauses[0].Document().Lookup("expires_at", "$exists").Boolean())
	assert.Equal(mt, bsontype.Null, clauses[1].Document().Lookup("expires_at").Type)
	assert.Equal(mt, bsontype.DateTime, clauses[2].Document().Lookup("expires_at", "$gt").Type)
}

func TestMarkAsReadMatchesOnlyUnread(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("transition sets read_at", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		mt.AddMockResponses(updateMatched(1))

		id := primitive.NewObjectID()
		require.NoError(mt, repo.MarkAsRead(context.Background(), id.Hex(), "2"))

		stmt := firstUpdateStatement(mt)
		q := stmt.Lookup("q").Document()
		assert.Equal(mt, id, q.Lookup("_id").ObjectID())
		assert.Equal(mt, "2", q.Lookup("target_user_id").StringValue())
		// Only an unread record matches, so a repeated call can never touch
		// read_at again.
		assert.Equal(mt, string(models.StatusUnread), q.Lookup("status").StringValue())

		set := stmt.Lookup("u").Document().Lookup("$set").Document()
		assert.Equal(mt, string(models.StatusRead), set.Lookup("status").StringValue())
		assert.Equal(mt, bsontype.DateTime, set.Lookup("read_at").Type)
	})
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("already read", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			updateMatched(0),
			mtest.CreateCursorResponse(0, notificationsNS(mt), mtest.FirstBatch,
				ownedDoc(id, "2", models.StatusRead)),
		)

		require.NoError(mt, repo.MarkAsRead(context.Background(), id.Hex(), "2"))

		// The unmatched update is followed by an ownership check only; no
		// second write runs, so the original read_at stands.
		firstUpdateStatement(mt)
		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("already handled stays handled", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			updateMatched(0),
			mtest.CreateCursorResponse(0, notificationsNS(mt), mtest.FirstBatch,
				ownedDoc(id, "2", models.StatusHandled)),
		)

		require.NoError(mt, repo.MarkAsRead(context.Background(), id.Hex(), "2"))
	})
}

func TestMarkAsReadUnknownOrForeignRecord(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no owned record", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		mt.AddMockResponses(
			updateMatched(0),
			mtest.CreateCursorResponse(0, notificationsNS(mt), mtest.FirstBatch),
		)

		err := repo.MarkAsRead(context.Background(), primitive.NewObjectID().Hex(), "2")
		assert.ErrorIs(mt, err, ErrNotificationNotFound)

		// The ownership check carries no status clause: a record owned by
		// someone else and a missing record produce the same answer.
		firstUpdateStatement(mt)
		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		require.Equal(mt, "find", evt.CommandName)
		filter := evt.Command.Lookup("filter").Document()
		assert.Equal(mt, "2", filter.Lookup("target_user_id").StringValue())
		_, lookupErr := filter.LookupErr("status")
		assert.Error(mt, lookupErr)
	})

	mt.Run("invalid id", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		err := repo.MarkAsRead(context.Background(), "not-a-hex-id", "2")
		assert.Error(mt, err)
	})
}

func TestMarkAsHandledFromUnreadOrRead(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("transition sets handled_at", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		mt.AddMockResponses(updateMatched(1))

		id := primitive.NewObjectID()
		require.NoError(mt, repo.MarkAsHandled(context.Background(), id.Hex(), "2"))

		stmt := firstUpdateStatement(mt)
		q := stmt.Lookup("q").Document()
		in, err := q.Lookup("status", "$in").Array().Values()
		require.NoError(mt, err)
		statuses := make([]string, 0, len(in))
		for _, v := range in {
			statuses = append(statuses, v.StringValue())
		}
		assert.ElementsMatch(mt, []string{
			string(models.StatusUnread),
			string(models.StatusRead),
		}, statuses)

		set := stmt.Lookup("u").Document().Lookup("$set").Document()
		assert.Equal(mt, string(models.StatusHandled), set.Lookup("status").StringValue())
		assert.Equal(mt, bsontype.DateTime, set.Lookup("handled_at").Type)
	})
}

func TestMarkAsHandledIsTerminal(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("already handled", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			updateMatched(0),
			mtest.CreateCursorResponse(0, notificationsNS(mt), mtest.FirstBatch,
				ownedDoc(id, "2", models.StatusHandled)),
		)

		require.NoError(mt, repo.MarkAsHandled(context.Background(), id.Hex(), "2"))

		firstUpdateStatement(mt)
		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("no owned record", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		mt.AddMockResponses(
			updateMatched(0),
			mtest.CreateCursorResponse(0, notificationsNS(mt), mtest.FirstBatch),
		)

		err := repo.MarkAsHandled(context.Background(), primitive.NewObjectID().Hex(), "2")
		assert.ErrorIs(mt, err, ErrNotificationNotFound)
	})
}

func TestGetByTargetIDExcludesExpired(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("filter and pagination", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, notificationsNS(mt), mtest.FirstBatch,
			ownedDoc(id, "2", models.StatusUnread)))

		notifications, err := repo.GetByTargetID(context.Background(), "2", 20, 10)
		require.NoError(mt, err)
		require.Len(mt, notifications, 1)
		assert.Equal(mt, id, notifications[0].ID)
		assert.Equal(mt, "2", notifications[0].TargetUserID)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		require.Equal(mt, "find", evt.CommandName)
		filter := evt.Command.Lookup("filter").Document()
		assert.Equal(mt, "2", filter.Lookup("target_user_id").StringValue())
		requireActiveClauses(mt, filter)

		skip, _ := evt.Command.Lookup("skip").AsInt64OK()
		limit, _ := evt.Command.Lookup("limit").AsInt64OK()
		assert.Equal(mt, int64(20), skip)
		assert.Equal(mt, int64(10), limit)
		sort, _ := evt.Command.Lookup("sort").Document().Lookup("created_at").AsInt64OK()
		assert.Equal(mt, int64(-1), sort)
	})
}

func TestGetUnreadCountCountsActiveUnreadOnly(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("match stage", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, notificationsNS(mt), mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(2)}}))

		count, err := repo.GetUnreadCount(context.Background(), "2")
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), count)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		require.Equal(mt, "aggregate", evt.CommandName)
		stages, err := evt.Command.Lookup("pipeline").Array().Values()
		require.NoError(mt, err)
		require.NotEmpty(mt, stages)
		match := stages[0].Document().Lookup("$match").Document()
		assert.Equal(mt, "2", match.Lookup("target_user_id").StringValue())
		assert.Equal(mt, string(models.StatusUnread), match.Lookup("status").StringValue())
		requireActiveClauses(mt, match)
	})
}

func TestMarkAllAsReadReturnsModifiedCount(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unread only, multi", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(5)},
			bson.E{Key: "nModified", Value: int32(3)},
		))

		modified, err := repo.MarkAllAsRead(context.Background(), "2")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), modified)

		stmt := firstUpdateStatement(mt)
		q := stmt.Lookup("q").Document()
		assert.Equal(mt, "2", q.Lookup("target_user_id").StringValue())
		assert.Equal(mt, string(models.StatusUnread), q.Lookup("status").StringValue())
		assert.True(mt, stmt.Lookup("multi").Boolean())
	})
}

func TestCleanupExpiredHandledScopedToUser(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("handled past cutoff", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(2)}))

		deleted, err := repo.CleanupExpiredHandled(context.Background(), "2", 30*24*time.Hour)
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), deleted)

		q := firstDeleteFilter(mt)
		assert.Equal(mt, "2", q.Lookup("target_user_id").StringValue())
		assert.Equal(mt, string(models.StatusHandled), q.Lookup("status").StringValue())
		assert.Equal(mt, bsontype.DateTime, q.Lookup("created_at", "$lt").Type)
	})
}

func TestSweepExpiredRemovesPastExpiry(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("handled cutoff or expired", func(mt *mtest.T) {
		repo := newMockRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(4)}))

		deleted, err := repo.SweepExpired(context.Background(), 30*24*time.Hour)
		require.NoError(mt, err)
		assert.Equal(mt, int64(4), deleted)

		q := firstDeleteFilter(mt)
		clauses, err := q.Lookup("$or").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, clauses, 2)

		handled := clauses[0].Document()
		assert.Equal(mt, string(models.StatusHandled), handled.Lookup("status").StringValue())
		assert.Equal(mt, bsontype.DateTime, handled.Lookup("created_at", "$lt").Type)

		expired := clauses[1].Document()
		assert.Equal(mt, bsontype.Null, expired.Lookup("expires_at", "$ne").Type)
		assert.Equal(mt, bsontype.DateTime, expired.Lookup("expires_at", "$lt").Type)
	})
}
