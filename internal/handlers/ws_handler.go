package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/askhat-b/MentorLink/internal/dispatcher"
	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/internal/services"
	jwtutil "github.com/askhat-b/MentorLink/pkg/jwt"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSFrame is a client-to-server websocket frame.
type WSFrame struct {
	Action         string `json:"action"` // "subscribe", "unsubscribe", "send"
	Topic          string `json:"topic,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Type           string `json:"type,omitempty"`
}

// WSHandler bridges the realtime dispatcher to websocket clients. Every
// connection is subscribed to its own identity topic; conversation topics are
// joined on request after a participant check.
type WSHandler struct {
	Dispatcher          *dispatcher.Dispatcher
	MessageService      *services.MessageService
	ConversationService *services.ConversationService
	RelationshipService *services.RelationshipService
	JWTSecret           string
}

func NewWSHandler(d *dispatcher.Dispatcher, messageService *services.MessageService, conversationService *services.ConversationService, relationshipService *services.RelationshipService, jwtSecret string) *WSHandler {
	return &WSHandler{
		Dispatcher:          d,
		MessageService:      messageService,
		ConversationService: conversationService,
		RelationshipService: relationshipService,
		JWTSecret:           jwtSecret,
	}
}

// StreamHandler upgrades the connection and runs the read loop until the
// client disconnects.
func (h *WSHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		logger.Log.WithError(err).Warn("WebSocket auth failed")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:       conn,
		dispatcher: h.Dispatcher,
		identityID: identityID,
		subs:       make(map[string]*dispatcher.Subscription),
		out:        make(chan models.Event, 64),
		done:       make(chan struct{}),
	}
	logger.Log.WithField("identity_id", claims.IdentityID).Info("WebSocket connected")

	go client.writeLoop()
	client.subscribe(models.IdentityTopic(identityID))

	defer func() {
		client.close()
		logger.Log.WithField("identity_id", claims.IdentityID).Info("WebSocket disconnected")
	}()

	for {
		var frame WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		h.handleFrame(r, client, frame)
	}
}

func (h *WSHandler) handleFrame(r *http.Request, client *wsClient, frame WSFrame) {
	switch frame.Action {
	case "subscribe":
		if !h.allowedTopic(r, client.identityID, frame.Topic) {
			client.sendError("subscription not allowed: " + frame.Topic)
			return
		}
		client.subscribe(frame.Topic)

	case "unsubscribe":
		client.unsubscribe(frame.Topic)

	case "send":
		conversationID, err := primitive.ObjectIDFromHex(frame.ConversationID)
		if err != nil {
			client.sendError("invalid conversation id")
			return
		}
		if _, err := h.MessageService.SendMessage(r.Context(), conversationID, client.identityID, frame.Content, frame.Type); err != nil {
			// The client keeps its composed content; report and carry on.
			client.sendError(err.Error())
		}

	default:
		client.sendError("unknown action: " + frame.Action)
	}
}

// allowedTopic restricts subscriptions to the caller's own identity topic and
// conversations the caller participates in.
func (h *WSHandler) allowedTopic(r *http.Request, identityID primitive.ObjectID, topic string) bool {
	if topic == models.IdentityTopic(identityID) {
		return true
	}
	raw, ok := strings.CutPrefix(topic, "conversation:")
	if !ok {
		return false
	}
	conversationID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return false
	}
	conv, err := h.ConversationService.GetConversation(r.Context(), conversationID)
	if err != nil {
		return false
	}
	rel, err := h.RelationshipService.GetRelationship(r.Context(), conv.RelationshipID)
	if err != nil {
		return false
	}
	return rel.Participates(identityID)
}

// wsClient is the per-connection state: one writer goroutine, one forwarder
// goroutine per subscribed topic.
type wsClient struct {
	conn       *websocket.Conn
	dispatcher *dispatcher.Dispatcher
	identityID primitive.ObjectID

	mu   sync.Mutex
	subs map[string]*dispatcher.Subscription

	out  chan models.Event
	done chan struct{}
	once sync.Once
}

func (c *wsClient) subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[topic]; ok {
		return
	}
	sub := c.dispatcher.Subscribe(topic)
	c.subs[topic] = sub

	go func() {
		for event := range sub.Events() {
			select {
			case c.out <- event:
			case <-c.done:
				return
			}
		}
	}()
}

func (c *wsClient) unsubscribe(topic string) {
	c.mu.Lock()
	sub, ok := c.subs[topic]
	if ok {
		delete(c.subs, topic)
	}
	c.mu.Unlock()
	if ok {
		c.dispatcher.Unsubscribe(sub)
	}
}

func (c *wsClient) writeLoop() {
	for {
		select {
		case event := <-c.out:
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) sendError(msg string) {
	select {
	case c.out <- models.Event{Type: "error", Payload: map[string]string{"message": msg}}:
	case <-c.done:
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		for topic, sub := range c.subs {
			c.dispatcher.Unsubscribe(sub)
			delete(c.subs, topic)
		}
		c.mu.Unlock()
		c.conn.Close()
	})
}
