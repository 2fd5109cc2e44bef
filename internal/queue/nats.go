package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// maxDeliver caps redeliveries per task. A task that fails this many
// times is dropped by the stream; the job row keeps the failure record.
const maxDeliver = 3

// NatsConfig holds JetStream connection settings.
type NatsConfig struct {
	URL            string        `yaml:"url" mapstructure:"url"`
	StreamName     string        `yaml:"stream_name" mapstructure:"stream_name"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ConsumerPrefix string        `yaml:"consumer_prefix" mapstructure:"consumer_prefix"`
}

// NatsQueue implements Queue on NATS JetStream.
type NatsQueue struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	sub        *nats.Subscription
	streamName string
	prefix     string
}

// NewNats connects to NATS and ensures the verification stream exists.
func NewNats(cfg NatsConfig) (*NatsQueue, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "QUICKLEARN"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				zap.L().Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			zap.L().Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "queue: connect nats")
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, eris.Wrap(err, "queue: jetstream context")
	}

	q := &NatsQueue{
		conn:       nc,
		js:         js,
		streamName: cfg.StreamName,
		prefix:     cfg.ConsumerPrefix,
	}
	if err := q.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}

	zap.L().Info("connected to nats",
		zap.String("url", cfg.URL),
		zap.String("stream", cfg.StreamName),
	)
	return q, nil
}

func (q *NatsQueue) subjects() string {
	return "quicklearn.verify.>"
}

func (q *NatsQueue) subjectFor(priority string) string {
	if priority == "" {
		priority = PriorityNormal
	}
	return fmt.Sprintf("quicklearn.verify.%s", priority)
}

func (q *NatsQueue) ensureStream() error {
	cfg := &nats.StreamConfig{
		Name:      q.streamName,
		Subjects:  []string{q.subjects()},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
		Replicas:  1,
		Discard:   nats.DiscardOld,
	}

	if _, err := q.js.StreamInfo(q.streamName); err != nil {
		if _, err := q.js.AddStream(cfg); err != nil {
			return eris.Wrap(err, "queue: create stream")
		}
		zap.L().Info("created jetstream stream", zap.String("stream", q.streamName))
		return nil
	}
	if _, err := q.js.UpdateStream(cfg); err != nil {
		return eris.Wrap(err, "queue: update stream")
	}
	return nil
}

func (q *NatsQueue) EnqueueVerification(ctx context.Context, task VerificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return eris.Wrap(err, "queue: marshal task")
	}

	subject := q.subjectFor(task.Priority)
	if _, err := q.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return eris.Wrapf(err, "queue: publish %s", subject)
	}

	zap.L().Info("verification enqueued",
		zap.String("job_id", task.JobID),
		zap.String("topic", task.Topic),
		zap.String("subject", subject),
	)
	return nil
}

// ConsumeVerifications binds a durable consumer to the verification
// subjects. Handler errors Nak the message so JetStream redelivers it.
// Consumption stops when the context is cancelled.
func (q *NatsQueue) ConsumeVerifications(ctx context.Context, handler Handler) error {
	consumer := "verifier"
	if q.prefix != "" {
		consumer = q.prefix + "-" + consumer
	}

	sub, err := q.js.Subscribe(q.subjects(), func(msg *nats.Msg) {
		var task VerificationTask
		if err := json.Unmarshal(msg.Data, &task); err != nil {
			zap.L().Error("dropping malformed verification task", zap.Error(err))
			msg.Term()
			return
		}

		if err := handler(ctx, task); err != nil {
			zap.L().Warn("verification task failed, returning to queue",
				zap.String("job_id", task.JobID),
				zap.Error(err),
			)
			msg.Nak()
			return
		}
		msg.Ack()
	},
		nats.Durable(consumer),
		nats.AckExplicit(),
		nats.MaxDeliver(maxDeliver),
		nats.AckWait(60*time.Second),
	)
	if err != nil {
		return eris.Wrapf(err, "queue: subscribe %s", q.subjects())
	}

	q.sub = sub
	zap.L().Info("consuming verification tasks", zap.String("consumer", consumer))

	<-ctx.Done()
	return q.drain()
}

func (q *NatsQueue) drain() error {
	if q.sub == nil {
		return nil
	}
	if err := q.sub.Drain(); err != nil {
		return eris.Wrap(err, "queue: drain subscription")
	}
	q.sub = nil
	return nil
}

func (q *NatsQueue) Health() error {
	if q.conn.IsClosed() {
		return eris.New("queue: nats connection closed")
	}
	if !q.conn.IsConnected() {
		return eris.New("queue: nats not connected")
	}
	if _, err := q.js.StreamInfo(q.streamName); err != nil {
		return eris.Wrapf(err, "queue: stream %s unhealthy", q.streamName)
	}
	return nil
}

func (q *NatsQueue) Close() error {
	_ = q.drain()
	q.conn.Close()
	return nil
}
