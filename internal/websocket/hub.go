package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"neuroheart-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redis channel carrying notifications between service instances
const clusterChannel = "chat_cluster_events"

// Notification is the payload pushed to connected clients when
// something happens in one of their conversations.
type Notification struct {
	Type           string                 `json:"type"`
	ConversationId uuid.UUID              `json:"conversation_id"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// Hub tracks connected clients per user and fans notifications out to
// them. Redis pub/sub carries notifications across instances, so a user
// connected to instance A still hears about a turn completed on B.
type Hub struct {
	// UserID -> connected clients (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// nil when Redis is not configured; the hub then only serves local clients
	rdb *redis.Client

	// identifies this instance on the cluster channel, so notifications
	// this hub already delivered locally are not delivered again when
	// they echo back from Redis
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToCluster()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify pushes a notification to every device the user has connected,
// locally and via Redis on other instances.
func (h *Hub) Notify(userID uuid.UUID, notification Notification) {
	data, err := json.Marshal(notification)
	if err != nil {
		return
	}

	h.deliverLocal(userID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterPayload{
			Origin:       h.instanceID,
			TargetUserID: userID.String(),
			Message:      data,
		})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

// deliverLocal pushes a raw message to the user's local clients. A
// client whose buffer is full is queued for unregistration; only the
// unregister handler in Run closes Send, so a slow client is dropped
// exactly once.
func (h *Hub) deliverLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := h.clients[userID]
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"user_id": userID})
			h.unregister <- client
		}
	}
}

type clusterPayload struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// subscribeToCluster delivers notifications published by other
// instances to locally connected clients.
func (h *Hub) subscribeToCluster() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.handleClusterMessage([]byte(msg.Payload))
	}
}

func (h *Hub) handleClusterMessage(raw []byte) {
	var payload clusterPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
		return
	}

	// Our own publish echoing back; local clients already got it.
	if payload.Origin == h.instanceID {
		return
	}

	uid, err := uuid.Parse(payload.TargetUserID)
	if err != nil {
		return
	}

	h.deliverLocal(uid, payload.Message)
}
