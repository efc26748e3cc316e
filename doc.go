// Package chatrealtimeapi implements the chat-realtime-api service, the
// websocket engine behind workspace chat.
//
// The service provides:
//   - Authenticated websocket connections with per-connection rate limits
//   - Channel and direct-message rooms with single-focus channel routing
//   - Message send, edit, delete and reactions with unread counters
//   - Typing indicators expired by a background sweeper
//   - Membership checks through a cached directory over NATS
//   - Platform event consumption (profile changes, deactivation, welcome DMs)
//
// Configuration is read from the environment; see internal/config.
package chatrealtimeapi
