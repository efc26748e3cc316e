package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/message"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

// MessageRepository implements message.Repository.
type MessageRepository struct {
	coll *mongo.Collection
	log  zerolog.Logger
}

func (r *MessageRepository) Create(ctx context.Context, m *message.Message) error {
	if _, err := r.coll.InsertOne(ctx, newMessageDoc(m)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				"message already exists", err, "2d3e4f5a-6b7c-4d8e-9f0a-1b2c3d4e5f6a")
		}
		return dbError(ctx, "insert message", err)
	}
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*message.Message, error) {
	var doc messageDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(ctx, "message", id)
		}
		return nil, dbError(ctx, "find message", err)
	}
	return doc.toDomain(), nil
}

func (r *MessageRepository) Update(ctx context.Context, id string, upd message.Update, at time.Time) (*message.Message, error) {
	set := bson.M{"isEdited": true, "updatedAt": at}
	if upd.Content != nil {
		set["content"] = *upd.Content
	}
	if upd.Blocks != nil {
		set["blocks"] = blockDocs(*upd.Blocks)
	}
	if upd.Attachments != nil {
		set["attachments"] = attachmentDocs(*upd.Attachments)
	}
	return r.updateLive(ctx, id, bson.M{"$set": set})
}

func (r *MessageRepository) SoftDelete(ctx context.Context, id string, at time.Time) (*message.Message, error) {
	return r.updateLive(ctx, id, bson.M{"$set": bson.M{"deletedAt": at, "updatedAt": at}})
}

// AddReaction replaces any existing (user, emoji) entry and appends the new one
// in one pipeline update.
func (r *MessageRepository) AddReaction(ctx context.Context, id string, reaction message.Reaction) (*message.Message, error) {
	return r.updateLive(ctx, id, addReactionPipeline(reaction))
}

func (r *MessageRepository) RemoveReaction(ctx context.Context, id, userID, emoji string) (*message.Message, error) {
	return r.updateLive(ctx, id, bson.M{"$pull": bson.M{"reactions": bson.M{"userId": userID, "emoji": emoji}}})
}

func (r *MessageRepository) List(ctx context.Context, q message.Query) (*message.Page, error) {
	limit := message.NormalizeLimit(q.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit + 1))

	cur, err := r.coll.Find(ctx, listFilter(q), opts)
	if err != nil {
		return nil, dbError(ctx, "list messages", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, dbError(ctx, "decode messages", err)
	}

	page := &message.Page{Messages: make([]*message.Message, 0, len(docs))}
	if len(docs) > limit {
		page.HasMore = true
		docs = docs[:limit]
	}
	for i := len(docs) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, docs[i].toDomain())
	}
	return page, nil
}

func (r *MessageRepository) updateLive(ctx context.Context, id string, update any) (*message.Message, error) {
	var doc messageDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deletedAt": nil},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(ctx, "message", id)
		}
		return nil, dbError(ctx, "update message", err)
	}
	return doc.toDomain(), nil
}

func listFilter(q message.Query) bson.M {
	filter := bson.M{"deletedAt": nil}
	if q.Ref.Kind == conversation.KindChannel {
		filter["channelId"] = q.Ref.ID
	} else {
		filter["dmConversationId"] = q.Ref.ID
	}
	if q.Before != nil {
		filter["createdAt"] = bson.M{"$lt": *q.Before}
	}
	return filter
}

func addReactionPipeline(reaction message.Reaction) mongo.Pipeline {
	kept := bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$reactions", bson.A{}}},
		"cond": bson.M{"$not": bson.A{bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{"$$this.userId", reaction.UserID}},
			bson.M{"$eq": bson.A{"$$this.emoji", reaction.Emoji}},
		}}}},
	}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reactions": bson.M{"$concatArrays": bson.A{kept, bson.A{reactionDoc(reaction)}}},
		}}},
	}
}

var _ message.Repository = (*MessageRepository)(nil)
