package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// AuthorizeFunc decide se o ator do contexto pode acompanhar a aposta
type AuthorizeFunc func(ctx context.Context, betID string) error

// client serializa as escritas: gorilla/websocket não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas por aposta
// subs: mapeia betID para o conjunto de clientes inscritos
type Hub struct {
	log       *zap.Logger
	upgrader  websocket.Upgrader
	authorize AuthorizeFunc

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

// NewHub cria o hub; authorize é chamado a cada subscribe
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool, authorize AuthorizeFunc) *Hub {
	return &Hub{
		log:       log,
		upgrader:  websocket.Upgrader{CheckOrigin: allowOrigin},
		authorize: authorize,
		subs:      make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// Permite subscribe/unsubscribe em apostas e responde a pings.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer func() {
		h.drop(c)
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.BetID == "" {
				_ = c.write(ServerMsg{Type: "error", Error: "betId required"})
				continue
			}
			if h.authorize != nil {
				if err := h.authorize(r.Context(), msg.BetID); err != nil {
					_ = c.write(ServerMsg{Type: "error", BetID: msg.BetID, Error: err.Error()})
					continue
				}
			}
			h.subscribe(msg.BetID, c)
			_ = c.write(ServerMsg{Type: "subscribed", BetID: msg.BetID})
		case "unsubscribe":
			h.unsubscribe(msg.BetID, c)
			_ = c.write(ServerMsg{Type: "unsubscribed", BetID: msg.BetID})
		case "ping":
			_ = c.write(ServerMsg{Type: "pong"})
		}
	}
}

func (h *Hub) subscribe(betID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[betID]; !ok {
		h.subs[betID] = make(map[*client]struct{})
	}
	h.subs[betID][c] = struct{}{}
}

func (h *Hub) unsubscribe(betID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[betID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, betID)
		}
	}
}

// drop remove o cliente de todas as assinaturas ao desconectar
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// Subscribers retorna quantos clientes acompanham a aposta
func (h *Hub) Subscribers(betID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[betID])
}

// Broadcast envia a atualização a todos os clientes inscritos na aposta
func (h *Hub) Broadcast(update BetUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.BetID]))
	for c := range h.subs[update.BetID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	for _, c := range targets {
		if err := c.write(update); err != nil {
			h.log.Debug("ws write failed", zap.String("betId", update.BetID), zap.Error(err))
		}
	}
}

// decodeUpdate valida a mensagem recebida do canal de broadcast
func decodeUpdate(payload string) (BetUpdate, error) {
	var upd BetUpdate
	if err := json.Unmarshal([]byte(payload), &upd); err != nil {
		return BetUpdate{}, err
	}
	return upd, nil
}
