// Package bus is a thin publish/subscribe adapter over asynq/Redis.
//
// Delivery is at-least-once: Publish succeeds only once the broker has the
// message, and a subscriber handler decides the message's fate by its
// return value. Nil acks, an error nacks (redelivery with backoff), and
// Drop acknowledges a poison message so it never loops.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Each topic gets its own queue so backpressure on one topic cannot delay
// the other.
var topicQueues = map[string]string{
	"reminders":   "reminders",
	"task-events": "task-events",
}

const defaultQueue = "default"

func queueFor(topic string) string {
	if q, ok := topicQueues[topic]; ok {
		return q
	}
	return defaultQueue
}

// Drop wraps err so the server acknowledges the message without retrying.
// Use it for messages that can never succeed (unparseable payloads,
// permanently gone subscriptions).
func Drop(err error) error {
	return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
}

// Ping verifies the broker is reachable. Called at startup so a
// misconfigured Redis address fails fast instead of looping retries.
func Ping(ctx context.Context, redisAddr string) error {
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", redisAddr, err)
	}
	return nil
}

type Publisher struct {
	client *asynq.Client
}

func NewPublisher(redisAddr string) *Publisher {
	return &Publisher{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
	}
}

// Publish enqueues payload on topic. Returns nil only after the broker
// acknowledged the write.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	task := asynq.NewTask(topic, payload)
	_, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(queueFor(topic)),
		asynq.MaxRetry(20),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// Handler processes one message. Return value semantics as in Drop.
type Handler func(ctx context.Context, payload []byte) error

type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log zerolog.Logger
}

func NewServer(redisAddr string, concurrency int, log zerolog.Logger) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"reminders":   6,
				"task-events": 3,
				defaultQueue:  1,
			},
			Logger: asynqLogger{log},
		},
	)
	return &Server{srv: srv, mux: asynq.NewServeMux(), log: log}
}

// Subscribe registers handler for topic. Panics in the handler are
// contained and acknowledged as dropped so they cannot poison the topic.
func (s *Server) Subscribe(topic string, handler Handler) {
	log := s.log.With().Str("topic", topic).Logger()
	s.mux.HandleFunc(topic, func(ctx context.Context, t *asynq.Task) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Any("panic", r).Msg("handler panicked, dropping message")
				err = Drop(fmt.Errorf("handler panic: %v", r))
			}
		}()
		return handler(ctx, t.Payload())
	})
}

// Run processes messages until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start bus server: %w", err)
	}
	<-ctx.Done()
	s.srv.Shutdown()
	return nil
}

// asynqLogger adapts zerolog to asynq's logging interface.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
