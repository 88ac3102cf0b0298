// Package events publishes workflow events to NATS so other systems can
// follow provisioning as it happens.
//
// Each event is sent as JSON on the subject <prefix>.<workflow>.<type>, for
// example "vcdflow.launch.resource.created".
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"

	"github.com/imamik/vcdflow/internal/provisioning"
)

// Publisher sends a payload on a subject. *nats.Conn implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Sink implements provisioning.EventSink over NATS. Publishing failures are
// logged and never reach the workflow.
type Sink struct {
	pub    Publisher
	nc     *nats.Conn
	prefix string
	log    logr.Logger
}

var _ provisioning.EventSink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithSubjectPrefix sets the first subject token. Defaults to "vcdflow".
func WithSubjectPrefix(prefix string) Option {
	return func(s *Sink) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithLogger sets the logger publishing failures and connection changes are
// reported to.
func WithLogger(l logr.Logger) Option {
	return func(s *Sink) {
		s.log = l
	}
}

// NewSink creates a Sink publishing through pub.
func NewSink(pub Publisher, opts ...Option) *Sink {
	s := &Sink{pub: pub, prefix: "vcdflow", log: logr.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials the NATS server at url and returns a Sink publishing to it.
// The connection reconnects forever once established.
func Connect(url string, opts ...Option) (*Sink, error) {
	s := NewSink(nil, opts...)
	log := s.log.WithName("nats")

	nc, err := nats.Connect(url,
		nats.Name("vcdflow"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Error(err, "Disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	s.pub = nc
	s.nc = nc
	return s, nil
}

// Emit implements provisioning.EventSink.
func (s *Sink) Emit(_ context.Context, event provisioning.Event) {
	subject := Subject(s.prefix, event)
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error(err, "Encoding event failed", "subject", subject)
		return
	}
	if err := s.pub.Publish(subject, data); err != nil {
		s.log.Error(err, "Publishing event failed", "subject", subject)
	}
}

// Close flushes pending events and closes the connection opened by Connect.
func (s *Sink) Close() error {
	if s.nc == nil {
		return nil
	}
	if err := s.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		s.nc.Close()
		return err
	}
	return nil
}

// Subject returns the subject event is published on.
func Subject(prefix string, event provisioning.Event) string {
	workflow := token(event.Workflow)
	if workflow == "" {
		workflow = "none"
	}
	return prefix + "." + workflow + "." + string(event.Type)
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
