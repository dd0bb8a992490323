package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-notifier/pubsub"
	"github.com/radieske/p2p-bet-engine/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo processor
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// MessageWriter é o subconjunto de *kafka.Writer usado para a DLQ
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Broadcaster publica no canal de Pub/Sub lido pelo WebSocket
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Processor consome eventos de ciclo de vida das apostas, registra a notificação
// de cada participante e repassa a atualização para o WebSocket via Redis.
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Broadcaster Broadcaster
	Channel     string
	DLQ         MessageWriter // opcional: mensagens que não decodificam

	OnConsumed func()       // métricas (counter++)
	OnNotified func(n int)  // métricas: notificações registradas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		_ = p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem. Falhas são registradas e não param o loop.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var ev events.BetLifecycle
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.BetID == "" {
		if err == nil {
			err = errors.New("missing bet_id")
		}
		p.Log.Warn("invalid message", zap.Error(err), zap.ByteString("key", m.Key))
		p.fail("decode")
		p.deadLetter(ctx, m)
		return err
	}

	audience := ev.Audience()
	for _, userID := range audience {
		// entrega de push fica fora do escopo: registramos o que seria enviado
		p.Log.Info("push notification",
			zap.String("to", userID),
			zap.String("betId", ev.BetID),
			zap.String("type", ev.Type),
			zap.String("actor", ev.ActorID),
			zap.String("text", Message(ev)),
		)
	}
	if p.OnNotified != nil {
		p.OnNotified(len(audience))
	}

	if p.Broadcaster == nil {
		return nil
	}
	b, err := json.Marshal(pubsub.WSUpdate{BetID: ev.BetID, Payload: ev})
	if err != nil {
		p.fail("encode")
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(pctx, p.Channel, b); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.String("betId", ev.BetID), zap.Error(err))
		p.fail("broadcast")
		return err
	}
	return nil
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message) {
	if p.DLQ == nil {
		return
	}
	if err := p.DLQ.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value}); err != nil {
		p.Log.Warn("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Message monta o texto curto da notificação
func Message(ev events.BetLifecycle) string {
	switch ev.Type {
	case events.TypeCreated:
		return fmt.Sprintf("%s challenged you: %q for %s", ev.ActorID, ev.Description, ev.Stake)
	case events.TypeAccepted:
		return fmt.Sprintf("%s accepted %q", ev.ActorID, ev.Description)
	case events.TypeRejected:
		return fmt.Sprintf("%s declined %q", ev.ActorID, ev.Description)
	case events.TypeClaimed:
		return fmt.Sprintf("%s declared the outcome of %q, please confirm", ev.ActorID, ev.Description)
	case events.TypeConfirmed, events.TypeConceded:
		return fmt.Sprintf("%q is settled", ev.Description)
	case events.TypeDisputed:
		return fmt.Sprintf("%s disputed the outcome of %q", ev.ActorID, ev.Description)
	case events.TypeCancelled:
		return fmt.Sprintf("%s cancelled %q", ev.ActorID, ev.Description)
	case events.TypeDeleted:
		return fmt.Sprintf("%s deleted %q", ev.ActorID, ev.Description)
	}
	return fmt.Sprintf("%q changed: %s", ev.Description, ev.BetStatus)
}
