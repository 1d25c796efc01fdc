package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/logger"
)

// Handler processes one delivered payload. It may run more than once for
// the same payload.
type Handler func(ctx context.Context, payload []byte) error

// Broker moves raw messages between lists. Pop moves the message it returns
// into a processing list until Ack; it returns a nil message when nothing
// arrived within its polling window.
type Broker interface {
	Push(ctx context.Context, list string, msg []byte) error
	Pop(ctx context.Context, list string) ([]byte, error)
	Ack(ctx context.Context, list string, msg []byte) error
	// Recover requeues messages left in the processing list by a dead consumer
	Recover(ctx context.Context, list string) (int, error)
	Close() error
}

type envelope struct {
	Id        string          `json:"id"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Queue publishes jobs and runs consumers with a bounded retry budget.
// Jobs that exhaust it, or fail permanently, land in "<name>:dead".
type Queue struct {
	broker      Broker
	maxAttempts int
	l           *logger.Logger
}

func New(b Broker, maxAttempts int, l *logger.Logger) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Queue{broker: b, maxAttempts: maxAttempts, l: l}
}

func DeadList(name string) string {
	return name + ":dead"
}

func (q *Queue) Publish(ctx context.Context, name string, payload []byte) error {
	msg, err := json.Marshal(envelope{Id: uuid.New().String(), Payload: payload})
	if err != nil {
		return err
	}
	return q.broker.Push(ctx, name, msg)
}

// Consume runs concurrency workers on the named queue until ctx is done.
// A job already dequeued runs to completion even if ctx is cancelled.
func (q *Queue) Consume(ctx context.Context, name string, h Handler, concurrency int) error {
	n, err := q.broker.Recover(ctx, name)
	if err != nil {
		return err
	}
	if n > 0 {
		q.l.Warn("queue %s: requeued %d unfinished jobs", name, n)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.loop(ctx, name, h)
		}()
	}
	wg.Wait()
	return nil
}

func (q *Queue) loop(ctx context.Context, name string, h Handler) {
	for ctx.Err() == nil {
		msg, err := q.broker.Pop(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.l.SErr("queue", "pop %s: %s", name, err.Error())
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			continue
		}
		q.process(context.WithoutCancel(ctx), name, msg, h)
	}
}

func (q *Queue) process(ctx context.Context, name string, msg []byte, h Handler) {
	defer func() {
		if err := q.broker.Ack(ctx, name, msg); err != nil {
			q.l.SErr("queue", "ack %s: %s", name, err.Error())
		}
	}()

	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		q.l.SErr("queue", "%s: malformed message, dead-lettering: %s", name, err.Error())
		q.push(ctx, DeadList(name), msg)
		return
	}

	err := q.run(ctx, h, env.Payload)
	if err == nil {
		q.l.LogV("queue %s: job %s done", name, env.Id)
		return
	}

	env.Attempts++
	env.LastError = err.Error()
	out, mErr := json.Marshal(env)
	if mErr != nil {
		q.l.SErr("queue", "%s: job %s: %s", name, env.Id, mErr.Error())
		return
	}

	if IsPermanent(err) || env.Attempts >= q.maxAttempts {
		q.l.SErr("queue", "%s: job %s failed after %d attempt(s), dead-lettering: %s", name, env.Id, env.Attempts, err.Error())
		q.push(ctx, DeadList(name), out)
		return
	}
	q.l.SWarn("queue", "%s: job %s failed (attempt %d/%d), retrying: %s", name, env.Id, env.Attempts, q.maxAttempts, err.Error())
	q.push(ctx, name, out)
}

// run turns handler panics into retryable failures
func (q *Queue) run(ctx context.Context, h Handler, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("handler panic")
			q.l.SErr("queue", "handler panic: %v", r)
		}
	}()
	return h(ctx, payload)
}

func (q *Queue) push(ctx context.Context, list string, msg []byte) {
	if err := q.broker.Push(ctx, list, msg); err != nil {
		q.l.SErr("queue", "push %s: %s", list, err.Error())
	}
}

func (q *Queue) Close() error {
	return q.broker.Close()
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
