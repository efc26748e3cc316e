package wsgateway

import (
	"context"
	"encoding/json"

	"jan-server/services/chat-realtime-api/internal/domain/chat"
	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/message"
)

func (g *Gateway) routes() map[string]intent {
	return map[string]intent{
		IntentRegisterUser: {chat.EventAuthError, g.registerUser},

		IntentJoinChannel:          {chat.EventChannelError, g.joinChannel},
		IntentLeaveChannel:         {chat.EventChannelError, g.leaveChannel},
		IntentChannelViewed:        {chat.EventChannelError, g.channelViewed},
		IntentChannelTypingStart:   {chat.EventChannelError, g.channelTyping(true)},
		IntentChannelTypingStop:    {chat.EventChannelError, g.channelTyping(false)},
		IntentFetchChannelMessages: {chat.EventChannelError, g.fetchChannelMessages},

		IntentJoinDM:            {chat.EventDMError, g.joinDM},
		IntentDMOpened:          {chat.EventDMError, g.dmOpened},
		IntentDMClosed:          {chat.EventDMError, g.dmClosed},
		IntentResetDMUnread:     {chat.EventDMError, g.resetDMUnread},
		IntentTypingStart:       {chat.EventDMError, g.dmTyping(true)},
		IntentTypingStop:        {chat.EventDMError, g.dmTyping(false)},
		IntentFetchMessages:     {chat.EventDMError, g.fetchDMMessages},
		IntentFetchDMCandidates: {chat.EventDMError, g.fetchDMCandidates},

		IntentChannelMessage: {chat.EventMessageError, g.channelMessage},
		IntentDirectMessage:  {chat.EventMessageError, g.directMessage},
		IntentUpdateMessage:  {chat.EventMessageError, g.updateMessage},
		IntentDeleteMessage:  {chat.EventMessageError, g.deleteMessage},
		IntentAddReaction:    {chat.EventMessageError, g.reaction(true)},
		IntentRemoveReaction: {chat.EventMessageError, g.reaction(false)},
	}
}

func (g *Gateway) registerUser(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[registerRequest](ctx, g, data)
	if err != nil {
		return req.UserID, err
	}
	_, err = g.svc.Register(ctx, conn, req.UserID)
	return req.UserID, err
}

func (g *Gateway) joinChannel(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[channelRequest](ctx, g, data)
	if err != nil {
		return req.ChannelID, err
	}
	return req.ChannelID, g.svc.JoinChannel(ctx, conn, req.ChannelID)
}

func (g *Gateway) leaveChannel(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[channelRequest](ctx, g, data)
	if err != nil {
		return req.ChannelID, err
	}
	return req.ChannelID, g.svc.LeaveChannel(ctx, conn, req.ChannelID)
}

func (g *Gateway) channelViewed(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[channelUserRequest](ctx, g, data)
	if err != nil {
		return req.ChannelID, err
	}
	return req.ChannelID, g.svc.ChannelViewed(ctx, conn, req.ChannelID, req.UserID)
}

func (g *Gateway) channelTyping(typing bool) intentHandler {
	return func(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
		req, err := bind[channelUserRequest](ctx, g, data)
		if err != nil {
			return req.ChannelID, err
		}
		return req.ChannelID, g.svc.SetTyping(ctx, conn, conversation.ChannelRef(req.ChannelID), req.UserID, typing)
	}
}

func (g *Gateway) fetchChannelMessages(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[channelFetchRequest](ctx, g, data)
	if err != nil {
		return req.ChannelID, err
	}
	_, err = g.svc.FetchMessages(ctx, conn, conversation.ChannelRef(req.ChannelID), req.Limit, req.Before)
	return req.ChannelID, err
}

func (g *Gateway) joinDM(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[dmRequest](ctx, g, data)
	if err != nil {
		return req.DMID, err
	}
	return req.DMID, g.svc.JoinDM(ctx, conn, req.DMID)
}

func (g *Gateway) dmOpened(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[dmUserRequest](ctx, g, data)
	if err != nil {
		return req.DMID, err
	}
	return req.DMID, g.svc.DMOpened(ctx, conn, req.DMID, req.UserID)
}

func (g *Gateway) dmClosed(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[dmUserRequest](ctx, g, data)
	if err != nil {
		return req.DMID, err
	}
	return req.DMID, g.svc.DMClosed(ctx, conn, req.DMID, req.UserID)
}

func (g *Gateway) resetDMUnread(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[dmUserRequest](ctx, g, data)
	if err != nil {
		return req.DMID, err
	}
	return req.DMID, g.svc.ResetDMUnread(ctx, conn, req.DMID, req.UserID)
}

func (g *Gateway) dmTyping(typing bool) intentHandler {
	return func(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
		req, err := bind[dmUserRequest](ctx, g, data)
		if err != nil {
			return req.DMID, err
		}
		return req.DMID, g.svc.SetTyping(ctx, conn, conversation.DMRef(req.DMID), req.UserID, typing)
	}
}

func (g *Gateway) fetchDMMessages(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[dmFetchRequest](ctx, g, data)
	if err != nil {
		return req.DMID, err
	}
	_, err = g.svc.FetchMessages(ctx, conn, conversation.DMRef(req.DMID), req.Limit, req.Before)
	return req.DMID, err
}

func (g *Gateway) fetchDMCandidates(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[candidatesRequest](ctx, g, data)
	if err != nil {
		return req.WorkspaceID, err
	}
	g.svc.FetchDMCandidates(ctx, conn, req.WorkspaceID)
	return req.WorkspaceID, nil
}

func (g *Gateway) channelMessage(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[channelMessageRequest](ctx, g, data)
	if err != nil {
		return req.ChannelID, err
	}
	_, err = g.svc.SendChannelMessage(ctx, conn, req.toInput(req.ChannelID))
	return req.ChannelID, err
}

func (g *Gateway) directMessage(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[directMessageRequest](ctx, g, data)
	if err != nil {
		return req.DMID, err
	}
	_, err = g.svc.SendDirectMessage(ctx, conn, req.toInput(req.DMID))
	return req.DMID, err
}

func (g *Gateway) updateMessage(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[updateMessageRequest](ctx, g, data)
	if err != nil {
		return req.MessageID, err
	}
	_, err = g.svc.UpdateMessage(ctx, conn, req.MessageID, message.Update{
		Content:     req.Content,
		Blocks:      req.Blocks,
		Attachments: req.Attachments,
	})
	return req.MessageID, err
}

func (g *Gateway) deleteMessage(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
	req, err := bind[messageIDRequest](ctx, g, data)
	if err != nil {
		return req.MessageID, err
	}
	_, err = g.svc.DeleteMessage(ctx, conn, req.MessageID)
	return req.MessageID, err
}

func (g *Gateway) reaction(add bool) intentHandler {
	return func(ctx context.Context, conn *Connection, data json.RawMessage) (string, error) {
		req, err := bind[reactionRequest](ctx, g, data)
		if err != nil {
			return req.MessageID, err
		}
		if add {
			_, err = g.svc.AddReaction(ctx, conn, req.MessageID, req.UserID, req.Emoji)
		} else {
			_, err = g.svc.RemoveReaction(ctx, conn, req.MessageID, req.UserID, req.Emoji)
		}
		return req.MessageID, err
	}
}
