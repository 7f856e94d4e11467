// Package notify delivers alert text to the user through permission-gated channels.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Permission is the answer of a notification channel to a permission request
type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// Notifier is a host notification capability
type Notifier interface {
	RequestPermission(ctx context.Context) Permission
	Emit(ctx context.Context, title, body string) error
}

// Gate asks its notifier for permission once and drops every emit unless it was granted.
// Denial is not an error.
type Gate struct {
	notifier Notifier
	logger   *logrus.Logger

	once       sync.Once
	permission Permission
}

// NewGate wraps notifier
func NewGate(notifier Notifier, logger *logrus.Logger) *Gate {
	return &Gate{notifier: notifier, logger: logger}
}

// Permission requests permission on first use and returns the cached answer
func (g *Gate) Permission(ctx context.Context) Permission {
	g.once.Do(func() {
		g.permission = g.notifier.RequestPermission(ctx)
		g.logger.WithField("permission", g.permission.String()).Debug("notification permission resolved")
	})
	return g.permission
}

// Emit forwards to the notifier when permission is granted and is a no-op otherwise
func (g *Gate) Emit(ctx context.Context, title, body string) error {
	if g.Permission(ctx) != PermissionGranted {
		return nil
	}
	return g.notifier.Emit(ctx, title, body)
}

// Noop never gets permission. Used when notifications are switched off.
type Noop struct{}

func (Noop) RequestPermission(ctx context.Context) Permission { return PermissionDenied }

func (Noop) Emit(ctx context.Context, title, body string) error { return nil }

// LogNotifier writes alerts to the log
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a notifier that logs through logger
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) RequestPermission(ctx context.Context) Permission { return PermissionGranted }

func (n *LogNotifier) Emit(ctx context.Context, title, body string) error {
	n.logger.
		WithField("notification", true).
		WithField("title", title).
		Info(body)
	return nil
}

// NtfyNotifier posts alerts to an ntfy topic
type NtfyNotifier struct {
	host   string
	topic  string
	client *http.Client
	logger *logrus.Logger
}

// NewNtfyNotifier creates a notifier for host/topic. host may include a scheme; http:// is assumed otherwise.
func NewNtfyNotifier(host, topic string, logger *logrus.Logger) *NtfyNotifier {
	return &NtfyNotifier{
		host:   host,
		topic:  topic,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// RequestPermission is granted when a topic is configured
func (n *NtfyNotifier) RequestPermission(ctx context.Context) Permission {
	if strings.TrimSpace(n.topic) == "" {
		return PermissionDenied
	}
	return PermissionGranted
}

func (n *NtfyNotifier) url() string {
	host := strings.TrimRight(n.host, "/")
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return fmt.Sprintf("%s/%s", host, n.topic)
}

func (n *NtfyNotifier) Emit(ctx context.Context, title, body string) error {
	url := n.url()
	n.logger.WithFields(logrus.Fields{
		"url":   url,
		"title": title,
	}).Debug("Sending ntfy notification")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		return errors.Wrap(err, "build ntfy request")
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", title)

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "ntfy request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy request failed with status %s", resp.Status)
	}
	return nil
}

// Multi fans out to several notifiers. It is granted if any member is granted and only
// emits to granted members. Member failures are logged, not returned.
type Multi struct {
	notifiers []Notifier
	logger    *logrus.Logger

	mu      sync.Mutex
	granted []Notifier
}

// NewMulti combines notifiers
func NewMulti(logger *logrus.Logger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, logger: logger}
}

func (m *Multi) RequestPermission(ctx context.Context) Permission {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.granted = m.granted[:0]
	result := PermissionDenied
	for _, n := range m.notifiers {
		if n.RequestPermission(ctx) == PermissionGranted {
			m.granted = append(m.granted, n)
			result = PermissionGranted
		}
	}
	return result
}

func (m *Multi) Emit(ctx context.Context, title, body string) error {
	m.mu.Lock()
	targets := append([]Notifier(nil), m.granted...)
	m.mu.Unlock()

	for _, n := range targets {
		if err := n.Emit(ctx, title, body); err != nil {
			m.logger.WithError(err).WithField("title", title).Error("Failed to send notification")
		}
	}
	return nil
}

// Method names a configured delivery channel
type Method string

const (
	MethodLog  Method = "log"
	MethodNtfy Method = "ntfy"
	MethodNone Method = "none"
)

// Options configures New
type Options struct {
	Methods   []Method
	NtfyHost  string
	NtfyTopic string
}

// New builds the notifier for the configured methods
func New(opts Options, logger *logrus.Logger) (Notifier, error) {
	var notifiers []Notifier
	for _, method := range opts.Methods {
		switch method {
		case MethodLog:
			notifiers = append(notifiers, NewLogNotifier(logger))
		case MethodNtfy:
			if opts.NtfyTopic == "" {
				return nil, errors.New("ntfy notifications require a topic")
			}
			notifiers = append(notifiers, NewNtfyNotifier(opts.NtfyHost, opts.NtfyTopic, logger))
		case MethodNone:
		default:
			return nil, fmt.Errorf("unknown notification method %q", method)
		}
	}

	switch len(notifiers) {
	case 0:
		return Noop{}, nil
	case 1:
		return notifiers[0], nil
	default:
		return NewMulti(logger, notifiers...), nil
	}
}
