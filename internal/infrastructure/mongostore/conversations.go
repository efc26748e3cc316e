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
)

// ConversationRepository implements conversation.Repository. Channels are
// written by the workspace service; this service only reads them and stamps
// the last message.
type ConversationRepository struct {
	channels *mongo.Collection
	dms      *mongo.Collection
	log      zerolog.Logger
}

func (r *ConversationRepository) FindChannel(ctx context.Context, id string) (*conversation.Channel, error) {
	var doc channelDoc
	if err := r.channels.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(ctx, "channel", id)
		}
		return nil, dbError(ctx, "find channel", err)
	}
	return doc.toDomain(), nil
}

func (r *ConversationRepository) FindDM(ctx context.Context, id string) (*conversation.DirectConversation, error) {
	return r.findDM(ctx, bson.M{"_id": id}, id)
}

func (r *ConversationRepository) FindDMByParticipants(ctx context.Context, workspaceID string, userIDs []string) (*conversation.DirectConversation, error) {
	key := conversation.ParticipantKey(userIDs)
	return r.findDM(ctx, bson.M{"workspaceId": workspaceID, "participantKey": key}, key)
}

func (r *ConversationRepository) ListDMsForUser(ctx context.Context, userID string, limit int) ([]*conversation.DirectConversation, error) {
	if limit <= 0 {
		limit = conversation.DefaultDMListLimit
	}
	cur, err := r.dms.Find(ctx,
		bson.M{"participants": bson.M{"$elemMatch": bson.M{"userId": userID, "isActive": true}}},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, dbError(ctx, "list direct conversations", err)
	}
	var docs []dmDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, dbError(ctx, "decode direct conversations", err)
	}
	out := make([]*conversation.DirectConversation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// CreateDM relies on the unique (workspaceId, participantKey) index so that
// two concurrent creations converge on one document.
func (r *ConversationRepository) CreateDM(ctx context.Context, dm *conversation.DirectConversation) (*conversation.DirectConversation, error) {
	_, err := r.dms.InsertOne(ctx, newDMDoc(dm))
	if err == nil {
		return r.FindDM(ctx, dm.ID)
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, dbError(ctx, "insert direct conversation", err)
	}
	r.log.Debug().Str("participant_key", dm.ParticipantKey).Msg("direct conversation already exists")
	return r.findDM(ctx, bson.M{"workspaceId": dm.WorkspaceID, "participantKey": dm.ParticipantKey}, dm.ParticipantKey)
}

func (r *ConversationRepository) IncrementDMUnread(ctx context.Context, dmID string, excludeUserIDs []string) (*conversation.DirectConversation, error) {
	if excludeUserIDs == nil {
		excludeUserIDs = []string{}
	}
	return r.updateDM(ctx, bson.M{"_id": dmID},
		bson.M{"$inc": bson.M{"participants.$[p].unreadCount": 1}},
		[]any{bson.M{"p.isActive": true, "p.userId": bson.M{"$nin": excludeUserIDs}}},
		dmID,
	)
}

func (r *ConversationRepository) ResetDMUnread(ctx context.Context, dmID, userID string, at time.Time) (*conversation.DirectConversation, error) {
	return r.updateDM(ctx, bson.M{"_id": dmID, "participants.userId": userID},
		bson.M{"$set": bson.M{
			"participants.$[p].unreadCount": 0,
			"participants.$[p].lastReadAt":  at,
		}},
		[]any{bson.M{"p.userId": userID}},
		dmID,
	)
}

func (r *ConversationRepository) TouchLastMessage(ctx context.Context, ref conversation.Ref, messageID string, at time.Time) error {
	if ref.Kind == conversation.KindChannel {
		_, err := r.channels.UpdateOne(ctx, bson.M{"_id": ref.ID},
			bson.M{"$set": bson.M{"lastMessageId": messageID, "lastMessageAt": at}})
		if err != nil {
			return dbError(ctx, "touch channel", err)
		}
		return nil
	}

	res, err := r.dms.UpdateOne(ctx, bson.M{"_id": ref.ID},
		bson.M{"$set": bson.M{"lastMessageId": messageID, "lastMessageAt": at, "updatedAt": at}})
	if err != nil {
		return dbError(ctx, "touch direct conversation", err)
	}
	if res.MatchedCount == 0 {
		return notFound(ctx, "direct conversation", ref.ID)
	}
	return nil
}

func (r *ConversationRepository) findDM(ctx context.Context, filter bson.M, id string) (*conversation.DirectConversation, error) {
	var doc dmDoc
	if err := r.dms.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(ctx, "direct conversation", id)
		}
		return nil, dbError(ctx, "find direct conversation", err)
	}
	return doc.toDomain(), nil
}

func (r *ConversationRepository) updateDM(ctx context.Context, filter, update bson.M, arrayFilters []any, id string) (*conversation.DirectConversation, error) {
	var doc dmDoc
	err := r.dms.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().
			SetArrayFilters(arrayFilters).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(ctx, "direct conversation", id)
		}
		return nil, dbError(ctx, "update direct conversation", err)
	}
	return doc.toDomain(), nil
}

var _ conversation.Repository = (*ConversationRepository)(nil)
