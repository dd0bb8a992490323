package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// BetID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type  string `json:"type"`
	BetID string `json:"betId"`
}

// BetUpdate é a atualização de uma aposta repassada aos clientes inscritos
type BetUpdate struct {
	BetID   string          `json:"betId"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMsg é a resposta do hub a uma mensagem do cliente
type ServerMsg struct {
	Type  string `json:"type"` // subscribed | unsubscribed | pong | error
	BetID string `json:"betId,omitempty"`
	Error string `json:"error,omitempty"`
}
