package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicslots/libs/kafkax"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type fakeTransitioner struct {
	mu    sync.Mutex
	calls []model.AppointmentStatus
	err   error
}

func (f *fakeTransitioner) TransitionStatus(_ context.Context, id string, to model.AppointmentStatus) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, to)
	if f.err != nil {
		return model.Appointment{}, f.err
	}
	return model.Appointment{ID: id, Status: to}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statusMessage(eventID, body string) kafka.Message {
	return kafkax.NewEventMessage(context.Background(),
		kafkax.EventMeta{EventID: eventID, EventType: "clinic.appointment.status_changed.v1"},
		"a-1", []byte(body))
}

func TestConsumerSkipsDuplicateEvents(t *testing.T) {
	target := &fakeTransitioner{}
	reader := &fakeReader{msgs: []kafka.Message{
		statusMessage("evt-1", `{"appointment_id":"a-1","status":"CONFIRMED"}`),
		statusMessage("evt-1", `{"appointment_id":"a-1","status":"CONFIRMED"}`),
		statusMessage("evt-2", `{"appointment_id":"a-1","status":"completed"}`),
	}}
	c := NewWithReader(discard(), inbox.NewMemory(), reader, StatusChangeHandler(target, discard()))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	if len(target.calls) != 2 || target.calls[0] != model.StatusConfirmed || target.calls[1] != model.StatusCompleted {
		t.Fatalf("unexpected transitions %v", target.calls)
	}
	if !reader.closed {
		t.Fatalf("reader not closed")
	}
}

func TestStatusChangeHandlerDropsRejectedMoves(t *testing.T) {
	target := &fakeTransitioner{err: model.Conflictf("terminal")}
	h := StatusChangeHandler(target, discard())
	if err := h(context.Background(), statusMessage("e", `{"appointment_id":"a-1","status":"CANCELLED"}`)); err != nil {
		t.Fatalf("conflict should be dropped, got %v", err)
	}

	target.err = errors.New("db down")
	if err := h(context.Background(), statusMessage("e", `{"appointment_id":"a-1","status":"CANCELLED"}`)); err == nil {
		t.Fatalf("expected infrastructure error to surface")
	}
}

func TestStatusChangeHandlerRejectsBadPayload(t *testing.T) {
	h := StatusChangeHandler(&fakeTransitioner{}, discard())
	if err := h(context.Background(), statusMessage("e", `not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := h(context.Background(), statusMessage("e", `{"appointment_id":"a-1","status":"LOST"}`)); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// flakyTransitioner fails the first call with an infrastructure error.
type flakyTransitioner struct {
	fakeTransitioner
	failures int
}

func (f *flakyTransitioner) TransitionStatus(ctx context.Context, id string, to model.AppointmentStatus) (model.Appointment, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return model.Appointment{}, errors.New("connection refused")
	}
	f.mu.Unlock()
	return f.fakeTransitioner.TransitionStatus(ctx, id, to)
}

func TestConsumerRedeliveryAfterHandlerFailure(t *testing.T) {
	target := &flakyTransitioner{failures: 1}
	c := NewWithReader(discard(), inbox.NewMemory(), &fakeReader{}, StatusChangeHandler(target, discard()))

	msg := statusMessage("evt-7", `{"appointment_id":"a-1","status":"CANCELLED"}`)
	c.process(context.Background(), msg)
	c.process(context.Background(), msg)

	if len(target.calls) != 1 || target.calls[0] != model.StatusCancelled {
		t.Fatalf("redelivered event should be applied once it succeeds, got %v", target.calls)
	}

	c.process(context.Background(), msg)
	if len(target.calls) != 1 {
		t.Fatalf("event applied twice after success: %v", target.calls)
	}
}

func TestConsumerHandlesHeaderlessMessagesIndividually(t *testing.T) {
	target := &fakeTransitioner{}
	c := NewWithReader(discard(), inbox.NewMemory(), &fakeReader{}, StatusChangeHandler(target, discard()))

	topic := "clinic.appointment.status_changed.v1"
	c.process(context.Background(), kafka.Message{Topic: topic, Offset: 10, Value: []byte(`{"appointment_id":"a-1","status":"CONFIRMED"}`)})
	c.process(context.Background(), kafka.Message{Topic: topic, Offset: 11, Value: []byte(`{"appointment_id":"a-2","status":"CONFIRMED"}`)})

	if len(target.calls) != 2 {
		t.Fatalf("expected both header-less events handled, got %v", target.calls)
	}
}
