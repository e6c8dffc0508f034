package websocket

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain/entities"
	"github.com/satriahrh/kirana/domain/repositories"
	"github.com/satriahrh/kirana/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks and attachments
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// VoiceControl is what the hub needs from the speech channel. Nil when voice
// is unavailable; clients can still type.
type VoiceControl interface {
	EnableMic(enabled bool)
	StopSpeaking()
	Status() entities.VoiceState
}

// AudioSink receives browser microphone chunks for recognition
type AudioSink interface {
	Feed(data []byte) error
}

// Hub bridges the core to UI clients: store and voice changes fan out to
// every connection, and typed client messages drive the orchestrator. It also
// implements the ActionRunner collaborator by shipping computed side effects
// (open a URL, compose an email, download a note) to the UI for execution.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	orchestrator *usecase.Orchestrator
	store        *usecase.SessionStore
	images       *usecase.ImageWorkflow
	voice        VoiceControl
	audioSink    AudioSink

	mu     sync.RWMutex
	logger *zap.Logger
}

var _ repositories.ActionRunner = (*Hub)(nil)

// NewHub creates a new WebSocket hub. The hub doubles as the orchestrator's
// action runner, so the core handlers arrive through SetCore after both sides
// exist.
func NewHub(store *usecase.SessionStore, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		store:      store,
		logger:     logger,
	}
}

// SetCore attaches the turn handlers. Must be called before Run.
func (h *Hub) SetCore(orchestrator *usecase.Orchestrator, images *usecase.ImageWorkflow) {
	h.orchestrator = orchestrator
	h.images = images
}

// SetVoice attaches voice controls once the speech channel exists
func (h *Hub) SetVoice(voice VoiceControl, sink AudioSink) {
	h.voice = voice
	h.audioSink = sink
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))
			// New clients get the current state right away.
			client.sendMessage(h.sessionUpdateMessage())
			if h.voice != nil {
				msg := newServerMessage(MessageTypeVoiceStatus)
				msg.VoiceState = h.voice.Status()
				client.sendMessage(msg)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case payload := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Slow consumer; drop the frame rather than block the hub.
					h.logger.Warn("Client send buffer full", zap.String("clientID", client.id))
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) broadcastMessage(msg ServerMessage) {
	payload, err := encodeServerMessage(msg)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", zap.Error(err))
		return
	}
	h.broadcast <- payload
}

func (h *Hub) sessionUpdateMessage() ServerMessage {
	sessions, activeID := h.store.Snapshot()
	msg := newServerMessage(MessageTypeSessionUpdate)
	msg.Sessions = sessions
	msg.ActiveID = activeID
	return msg
}

// BroadcastSessions pushes the full session snapshot to every client. Wired
// as the store's change listener.
func (h *Hub) BroadcastSessions() {
	h.broadcastMessage(h.sessionUpdateMessage())
}

// BroadcastVoiceStatus pushes a voice state change to every client
func (h *Hub) BroadcastVoiceStatus(state entities.VoiceState) {
	msg := newServerMessage(MessageTypeVoiceStatus)
	msg.VoiceState = state
	h.broadcastMessage(msg)
}

// BroadcastBanner pushes a transient top-level error to every client
func (h *Hub) BroadcastBanner(text string) {
	msg := newServerMessage(MessageTypeBannerError)
	msg.Error = text
	h.broadcastMessage(msg)
}

// BroadcastSpeechAudio ships one synthesized audio chunk for playback
func (h *Hub) BroadcastSpeechAudio(utteranceID string, chunk []byte) {
	msg := newServerMessage(MessageTypeSpeechAudio)
	msg.UtteranceID = utteranceID
	msg.AudioData = base64.StdEncoding.EncodeToString(chunk)
	h.broadcastMessage(msg)
}

// OpenURL implements ActionRunner
func (h *Hub) OpenURL(url string) {
	msg := newServerMessage(MessageTypeAction)
	msg.Action = &ActionPayload{Kind: "open_url", URL: url}
	h.broadcastMessage(msg)
}

// ComposeEmail implements ActionRunner
func (h *Hub) ComposeEmail(draft repositories.EmailDraft) {
	msg := newServerMessage(MessageTypeAction)
	msg.Action = &ActionPayload{Kind: "compose_email", Email: &draft}
	h.broadcastMessage(msg)
}

// OfferNoteDownload implements ActionRunner
func (h *Hub) OfferNoteDownload(filename string, content string) {
	msg := newServerMessage(MessageTypeAction)
	msg.Action = &ActionPayload{Kind: "download_note", Filename: filename, Content: content}
	h.broadcastMessage(msg)
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	id     string
	logger *zap.Logger
}

func (c *Client) sendMessage(msg ServerMessage) {
	payload, err := encodeServerMessage(msg)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Client send buffer full", zap.String("clientID", c.id))
	}
}

// HandleWebSocket upgrades the request and starts the client pumps. The
// caller has already authenticated the client.
func HandleWebSocket(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		id:     clientID,
		logger: logger,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// processMessage dispatches one typed client message. Turn-running handlers
// go to their own goroutines; streamed writes are scoped per message id, so
// concurrent turns cannot interleave in the store.
func (c *Client) processMessage(data []byte) {
	msg, err := ParseClientMessage(data)
	if err != nil {
		c.logger.Warn("Dropping malformed message", zap.Error(err))
		return
	}

	ctx := context.Background()

	switch msg.Type {
	case MessageTypeUtterance:
		utt := entities.Utterance{Text: msg.Text, Attachments: msg.Attachments}
		go c.hub.orchestrator.HandleUtterance(ctx, utt)

	case MessageTypeSetMode:
		c.hub.orchestrator.SetMode(msg.Mode)

	case MessageTypeEditResubmit:
		go c.hub.orchestrator.ResubmitEdit(ctx, msg.SessionID, msg.MessageID, msg.Text)

	case MessageTypeImageConfirm:
		go func() {
			if err := c.hub.images.Confirm(ctx, msg.SessionID, msg.MessageID, msg.Accept); err != nil {
				c.logger.Warn("Image confirm rejected", zap.Error(err))
			}
		}()

	case MessageTypeImageRegenerate:
		go func() {
			if err := c.hub.images.Regenerate(ctx, msg.SessionID, msg.MessageID); err != nil {
				c.logger.Warn("Image regenerate rejected", zap.Error(err))
			}
		}()

	case MessageTypeImageCancel:
		if err := c.hub.images.Cancel(msg.SessionID, msg.MessageID); err != nil {
			c.logger.Warn("Image cancel rejected", zap.Error(err))
		}

	case MessageTypeMic:
		if c.hub.voice != nil {
			c.hub.voice.EnableMic(msg.Enabled)
		}

	case MessageTypeStopSpeaking:
		if c.hub.voice != nil {
			c.hub.voice.StopSpeaking()
		}

	case MessageTypeSessionCreate:
		c.hub.store.CreateSession()

	case MessageTypeSessionSelect:
		if !c.hub.store.SetActive(msg.SessionID) {
			c.logger.Warn("Select targeted a missing session", zap.String("sessionID", msg.SessionID))
		}

	case MessageTypeSessionDelete:
		c.hub.store.DeleteSession(msg.SessionID)

	default:
		c.logger.Warn("Unknown message type", zap.String("type", string(msg.Type)))
	}
}

// processAudioChunk forwards browser microphone audio to the recognizer
func (c *Client) processAudioChunk(data []byte) {
	if c.hub.audioSink == nil {
		return
	}
	if err := c.hub.audioSink.Feed(data); err != nil {
		c.logger.Debug("Audio chunk dropped", zap.Error(err))
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
