package socket

import (
    "context"
    "sync"

    "github.com/google/uuid"
    "github.com/browsepilot-org/browsepilot-backend/internal/logger"
)

// ChatEvent is the payload broadcast when a chat is created, renamed or
// deleted. It deliberately carries no transcript content; subscribers
// fetch the chat through the REST surface, where authorization applies.
type ChatEvent struct {
    Event           string      `json:"event"`
    ChatID          uuid.UUID   `json:"chatId"`
    Title           string      `json:"title,omitempty"`
    UserID          *uuid.UUID  `json:"userId,omitempty"`
    OrganizationID  *uuid.UUID  `json:"organizationId,omitempty"`
}

// Message is one hub broadcast: chat lifecycle events ride on
// "aichats:user:<id>" / "aichats:org:<id>" channels.
type Message struct {
    Channel string      `json:"channel,omitempty"`
    Event   ChatEvent   `json:"event"`
}

// ChannelAuthorizer decides whether a user may join a channel. Wired by
// the service layer so the hub itself stays free of repo dependencies.
type ChannelAuthorizer interface {
    CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) (bool, error)
}

type Hub struct {
    log       *logger.Logger
    mu        sync.RWMutex
    channels  map[string]map[uuid.UUID]*Client

    authorizer  ChannelAuthorizer
    redisPubSub *RedisPubSub
}

func NewHub(logger *logger.Logger) *Hub {
    return &Hub{
        log:       logger,
        channels:  make(map[string]map[uuid.UUID]*Client),
    }
}

func (h *Hub) SetRedisPubSub(rp *RedisPubSub) {
    h.redisPubSub = rp
}

func (h *Hub) SetChannelAuthorizer(a ChannelAuthorizer) {
    h.authorizer = a
}

// CanSubscribe checks a requested channel against the wired authorizer.
// Without an authorizer every inbound subscribe is refused; only the
// server-initiated subscription to the caller's own channel remains.
func (h *Hub) CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) bool {
    if h.authorizer == nil {
        return false
    }
    ok, err := h.authorizer.CanSubscribe(ctx, userID, channel)
    if err != nil {
        h.log.Warn("Channel authorization check failed", "channel", channel, "userID", userID, "error", err)
        return false
    }
    return ok
}

func (h *Hub) Subscribe(client *Client, channels []string) {
    h.mu.Lock()
    defer h.mu.Unlock()

    for _, ch := range channels {
        if h.channels[ch] == nil {
            h.channels[ch] = make(map[uuid.UUID]*Client)
        }
        h.channels[ch][client.ID] = client
    }
    h.log.Debug("Client subscribed", "client", client.ID, "channels", channels)
}

func (h *Hub) Unsubscribe(client *Client) {
    h.mu.Lock()
    defer h.mu.Unlock()

    for ch, clientsMap := range h.channels {
        if _, ok := clientsMap[client.ID]; ok {
            delete(clientsMap, client.ID)
            if len(clientsMap) == 0 {
                delete(h.channels, ch)
            }
        }
    }
    h.log.Debug("Client unsubscribed from all channels", "client", client.ID)
}

func (h *Hub) UnsubscribeFromChannel(client *Client, channel string) {
    h.mu.Lock()
    defer h.mu.Unlock()
    if clientsMap, ok := h.channels[channel]; ok {
        delete(clientsMap, client.ID)
        if len(clientsMap) == 0 {
            delete(h.channels, channel)
        }
    }
}

// localBroadcast delivers to clients on this node only.
func (h *Hub) localBroadcast(msg Message) {
    h.mu.RLock()
    defer h.mu.RUnlock()

    clientsMap, ok := h.channels[msg.Channel]
    if !ok {
        return
    }
    for _, client := range clientsMap {
        select {
        case client.Outbound <- msg:
        default:
            h.log.Warn("Dropping message to client; outbound buffer full", "client", client.ID, "channel", msg.Channel)
        }
    }
}

// BroadcastGlobal sends a message to local clients and, when Redis is
// wired, to every other node as well.
func (h *Hub) BroadcastGlobal(ctx context.Context, msg Message) {
    h.localBroadcast(msg)

    if h.redisPubSub != nil {
        if err := h.redisPubSub.Publish(ctx, msg); err != nil {
            h.log.Warn("Failed to publish to Redis", "error", err)
        }
    }
}
