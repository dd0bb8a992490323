package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/radieske/p2p-bet-engine/internal/bet-notifier/pubsub"
	"github.com/radieske/p2p-bet-engine/pkg/contracts/events"
)

type published struct {
	channel string
	payload []byte
}

type fakeBroadcaster struct {
	got []published
	err error
}

func (f *fakeBroadcaster) Publish(_ context.Context, channel string, payload []byte) error {
	f.got = append(f.got, published{channel, payload})
	return f.err
}

type fakeWriter struct{ msgs []kafka.Message }

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func newProcessor(t *testing.T) (*Processor, *observer.ObservedLogs, *fakeBroadcaster, *fakeWriter) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	b := &fakeBroadcaster{}
	dlq := &fakeWriter{}
	return &Processor{
		Log:         zap.New(core),
		Broadcaster: b,
		Channel:     "bet_updates_broadcast",
		DLQ:         dlq,
	}, logs, b, dlq
}

func message(t *testing.T, ev events.BetLifecycle) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(ev.BetID), Value: b}
}

func TestHandleNotifiesEveryoneButActor(t *testing.T) {
	p, logs, b, _ := newProcessor(t)
	notified := 0
	p.OnNotified = func(n int) { notified += n }

	ev := events.BetLifecycle{
		BetID: "b1", Type: events.TypeClaimed, ActorID: "bob",
		CreatorID: "alice", RecipientIDs: []string{"bob", "carol"},
		Description: "coin flip", BetStatus: "in_progress",
	}
	require.NoError(t, p.Handle(context.Background(), message(t, ev)))

	pushes := logs.FilterMessage("push notification").All()
	require.Len(t, pushes, 2)
	var to []string
	for _, e := range pushes {
		to = append(to, e.ContextMap()["to"].(string))
	}
	assert.ElementsMatch(t, []string{"alice", "carol"}, to)
	assert.Equal(t, 2, notified)

	require.Len(t, b.got, 1)
	assert.Equal(t, "bet_updates_broadcast", b.got[0].channel)
	var upd pubsub.WSUpdate
	require.NoError(t, json.Unmarshal(b.got[0].payload, &upd))
	assert.Equal(t, "b1", upd.BetID)
}

func TestHandleSendsUndecodableToDLQ(t *testing.T) {
	p, _, b, dlq := newProcessor(t)
	var stages []string
	p.OnError = func(s string) { stages = append(stages, s) }

	err := p.Handle(context.Background(), kafka.Message{Key: []byte("k"), Value: []byte("{oops")})
	require.Error(t, err)
	assert.Empty(t, b.got)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "{oops", string(dlq.msgs[0].Value))
	assert.Equal(t, []string{"decode"}, stages)

	err = p.Handle(context.Background(), kafka.Message{Value: []byte(`{"type":"bet_created"}`)})
	require.Error(t, err)
	assert.Len(t, dlq.msgs, 2)
}

func TestHandleReportsBroadcastFailure(t *testing.T) {
	p, _, b, _ := newProcessor(t)
	b.err = errors.New("redis down")
	var stages []string
	p.OnError = func(s string) { stages = append(stages, s) }

	err := p.Handle(context.Background(), message(t, events.BetLifecycle{BetID: "b1", Type: events.TypeAccepted, ActorID: "bob", CreatorID: "alice"}))
	require.Error(t, err)
	assert.Equal(t, []string{"broadcast"}, stages)
}

type scriptedReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	p, _, b, _ := newProcessor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumed := 0
	p.OnConsumed = func() { consumed++ }
	p.Reader = &scriptedReader{cancel: cancel, msgs: []kafka.Message{
		message(t, events.BetLifecycle{BetID: "b1", Type: events.TypeCreated, ActorID: "alice", RecipientIDs: []string{"bob"}}),
		message(t, events.BetLifecycle{BetID: "b1", Type: events.TypeAccepted, ActorID: "bob", CreatorID: "alice"}),
	}}

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, consumed)
	assert.Len(t, b.got, 2)
}

func TestMessageText(t *testing.T) {
	msg := Message(events.BetLifecycle{Type: events.TypeCreated, ActorID: "alice", Description: "coin flip", Stake: "10.00"})
	assert.Equal(t, `alice challenged you: "coin flip" for 10.00`, msg)
}
