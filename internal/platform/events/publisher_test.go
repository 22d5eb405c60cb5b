package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeJS records PublishAsync calls; every other method panics via the nil embed.
type fakeJS struct {
	nats.JetStreamContext
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeJS) PublishAsync(subj string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil, nil
}

func TestPublish_NilSafe(t *testing.T) {
	var p *Publisher
	p.Publish(SubjectUserCreated, "user_created", nil)

	New(nil, zap.NewNop()).Publish(SubjectUserCreated, "user_created", nil)
}

func TestPublish_Envelope(t *testing.T) {
	js := &fakeJS{}
	p := New(js, zap.NewNop())

	p.Publish(SubjectUserCreated, "user_created", map[string]any{"id": 1, "username": "alice"})

	if len(js.subjects) != 1 || js.subjects[0] != SubjectUserCreated {
		t.Fatalf("unexpected subjects %v", js.subjects)
	}
	var ev Event
	if err := json.Unmarshal(js.payloads[0], &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.EventID == "" || ev.EventName != "user_created" || ev.OccurredAt.IsZero() {
		t.Fatalf("unexpected envelope %+v", ev)
	}
	if ev.Properties["username"] != "alice" {
		t.Fatalf("unexpected properties %v", ev.Properties)
	}
}

func TestPublish_FailureIsLoggedOnly(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := New(&fakeJS{err: errors.New("nats: no responders available")}, zap.New(core))

	p.Publish(SubjectUserCreated, "user_created", nil)

	if logs.FilterMessage("events: publish failed").Len() != 1 {
		t.Fatalf("expected a warning, got %v", logs.All())
	}
}
