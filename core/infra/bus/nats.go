package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/filedepot/filedepot/core/depot"
	"github.com/filedepot/filedepot/core/infra/logging"
	"github.com/filedepot/filedepot/core/infra/secrets"
)

// NatsBus publishes engine operation events as JSON payloads over NATS.
type NatsBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	jsEnabled bool
	ackWait   time.Duration
}

const (
	envUseJetStream = "NATS_USE_JETSTREAM"
	envJSAckWait    = "NATS_JS_ACK_WAIT"
	envJSMaxAge     = "NATS_JS_MAX_AGE"

	defaultAckWait = 2 * time.Minute
	defaultMaxAge  = 7 * 24 * time.Hour

	streamOps = "FILEDEPOT_OPS"

	subjectPrefix = "depot.op."
	// SubjectAllOperations matches every operation event subject.
	SubjectAllOperations = subjectPrefix + ">"
)

var (
	errNilBus       = errors.New("nats bus not initialized")
	errEmptySubject = errors.New("empty subject")
)

// OperationSubject returns the subject an operation of the given type is
// published on.
func OperationSubject(opType string) string {
	if opType == "" {
		return ""
	}
	return subjectPrefix + opType
}

// NewNatsBus dials NATS at the provided URL.
func NewNatsBus(url string) (*NatsBus, error) {
	opts := []nats.Option{
		nats.Name("filedepot-bus"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("bus", "disconnected from nats", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("bus", "reconnected to nats", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Info("bus", "connection closed")
		}),
	}
	tlsConfig, err := natsTLSConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		opts = append(opts, nats.Secure(tlsConfig))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	b := &NatsBus{nc: nc, ackWait: defaultAckWait}
	b.initJetStreamFromEnv()
	return b, nil
}

// Close shuts down the underlying NATS connection.
func (b *NatsBus) Close() {
	if b != nil && b.nc != nil {
		b.nc.Close()
	}
}

// PublishOperation sends one operation event on its type subject.
func (b *NatsBus) PublishOperation(op depot.Operation) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	subject := OperationSubject(op.Type)
	if subject == "" {
		return errEmptySubject
	}
	data, err := encodeOperation(op)
	if err != nil {
		return err
	}
	if b.jsEnabled && isDurableSubject(subject) {
		if msgID := computeMsgID(op); msgID != "" {
			_, err = b.js.Publish(subject, data, nats.MsgId(msgID))
		} else {
			_, err = b.js.Publish(subject, data)
		}
		return err
	}
	return b.nc.Publish(subject, data)
}

// SubscribeOperations attaches a subscription over all operation events and
// invokes the handler with each decoded event. With JetStream enabled the
// subscription is durable with explicit ack/nak semantics.
func (b *NatsBus) SubscribeOperations(queue string, handler func(depot.Operation) error) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	if handler == nil {
		return errors.New("nil handler")
	}
	subject := SubjectAllOperations

	if b.jsEnabled {
		cb := func(msg *nats.Msg) {
			var op depot.Operation
			if err := json.Unmarshal(msg.Data, &op); err != nil {
				logging.Error("bus", "decode operation event failed", "error", err)
				_ = msg.Ack()
				return
			}
			if err := handler(op); err != nil {
				if delay, ok := redeliveryDelay(err); ok {
					if delay > 0 {
						_ = msg.NakWithDelay(delay)
					} else {
						_ = msg.Nak()
					}
					return
				}
				logging.Error("bus", "handler failed, acking", "error", err)
				_ = msg.Ack()
				return
			}
			_ = msg.Ack()
		}

		opts := []nats.SubOpt{
			nats.ManualAck(),
			nats.AckExplicit(),
			nats.AckWait(b.ackWait),
			nats.MaxAckPending(2048),
		}
		if durable := durableName(subject, queue); durable != "" {
			opts = append(opts, nats.Durable(durable))
		}

		var err error
		if queue == "" {
			_, err = b.js.Subscribe(subject, cb, opts...)
		} else {
			_, err = b.js.QueueSubscribe(subject, queue, cb, opts...)
		}
		return err
	}

	cb := func(msg *nats.Msg) {
		var op depot.Operation
		if err := json.Unmarshal(msg.Data, &op); err != nil {
			logging.Error("bus", "decode operation event failed", "error", err)
			return
		}
		if err := handler(op); err != nil {
			logging.Error("bus", "handler failed", "error", err)
		}
	}
	if queue == "" {
		_, err := b.nc.Subscribe(subject, cb)
		return err
	}
	_, err := b.nc.QueueSubscribe(subject, queue, cb)
	return err
}

func (b *NatsBus) IsConnected() bool {
	return b != nil && b.nc != nil && b.nc.IsConnected()
}

func (b *NatsBus) Status() string {
	if b == nil || b.nc == nil {
		return "UNKNOWN"
	}
	return b.nc.Status().String()
}

func (b *NatsBus) ConnectedURL() string {
	if b == nil || b.nc == nil {
		return ""
	}
	return b.nc.ConnectedUrl()
}

func (b *NatsBus) initJetStreamFromEnv() {
	if b == nil || b.nc == nil {
		return
	}
	if !parseBoolEnv(envUseJetStream) {
		return
	}
	ackWait := defaultAckWait
	if v := strings.TrimSpace(os.Getenv(envJSAckWait)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			ackWait = d
		}
	}
	maxAge := defaultMaxAge
	if v := strings.TrimSpace(os.Getenv(envJSMaxAge)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			maxAge = d
		}
	}

	js, err := b.nc.JetStream()
	if err != nil {
		logging.Warn("bus", "jetstream init failed", "error", err)
		return
	}
	if _, err := js.AccountInfo(); err != nil {
		logging.Warn("bus", "jetstream not available", "error", err)
		return
	}

	// Ensure the operations stream exists (best-effort).
	_, err = js.AddStream(&nats.StreamConfig{
		Name:       streamOps,
		Subjects:   []string{SubjectAllOperations},
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		MaxAge:     maxAge,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		if _, infoErr := js.StreamInfo(streamOps); infoErr != nil {
			logging.Error("bus", "ensure stream failed", "stream", streamOps, "error", err)
			return
		}
	} else {
		logging.Info("bus", "stream ensured", "stream", streamOps, "max_age", maxAge)
	}

	b.js = js
	b.jsEnabled = true
	b.ackWait = ackWait
	logging.Info("bus", "jetstream enabled", "ack_wait", ackWait)
}

func isDurableSubject(subject string) bool {
	return strings.HasPrefix(subject, subjectPrefix)
}

func durableName(subject, queue string) string {
	name := strings.ReplaceAll(subject, ".", "_")
	name = strings.ReplaceAll(name, "*", "STAR")
	name = strings.ReplaceAll(name, ">", "GT")
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if queue == "" {
		return "dur_" + name
	}
	q := strings.ReplaceAll(queue, ".", "_")
	q = strings.ReplaceAll(q, "*", "STAR")
	q = strings.ReplaceAll(q, ">", "GT")
	q = strings.TrimSpace(q)
	if q == "" {
		return "dur_" + name
	}
	return "dur_" + q + "__" + name
}

// encodeOperation marshals an event payload. Detail and Error carry free
// text, so secret references are redacted before the payload leaves the
// process.
func encodeOperation(op depot.Operation) ([]byte, error) {
	data, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	if redacted, changed, err := secrets.RedactJSON(data); err == nil && changed {
		return redacted, nil
	}
	return data, nil
}

func computeMsgID(op depot.Operation) string {
	if op.FileID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%d", op.Type, op.FileID, op.Timestamp.UnixNano())
}
