// Package notify implements the proactive-notification fan-out: messages
// the assistant sends without a prior user request, delivered to whichever
// subscribers (web sockets, chat-bridge channels) are currently live.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Subscriber receives a proactive notification. Implementations wrap a live
// WebSocket connection or a bound chat-bridge channel.
type Subscriber interface {
	SendNotification(content string, timestamp time.Time) error
}

// Orchestrator is the thin contract back into the chat orchestrator for
// send_as_clara-style proactive turns.
type Orchestrator interface {
	HandleSynthetic(ctx context.Context, sessionID, text string) (string, error)
}

// Record is one persisted notification, kept for history/auditing.
type Record struct {
	Message   string    `json:"message"`
	Channels  []string  `json:"channels"`
	Timestamp time.Time `json:"timestamp"`
}

// Service fans proactive messages out to live subscribers and persists a
// record of each one sent.
type Service struct {
	mu          sync.Mutex
	subscribers map[string][]Subscriber // channel name -> live subscribers

	path string
	orch Orchestrator
}

func New(storageDir string) *Service {
	s := &Service{subscribers: make(map[string][]Subscriber)}
	if storageDir != "" {
		s.path = filepath.Join(storageDir, "notifications.log")
	}
	return s
}

// SetOrchestrator wires the chat engine used by SendAsAssistant, breaking an
// import cycle between this package and the agent package.
func (s *Service) SetOrchestrator(o Orchestrator) {
	s.orch = o
}

// Subscribe registers a subscriber under a channel name ("web", "discord",
// ...). defaultChannels are the channels Notify fans out to when the caller
// doesn't name any explicitly.
func (s *Service) Subscribe(channel string, sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[channel] = append(s.subscribers[channel], sub)
}

// Unregister removes a subscriber from every channel it was registered
// under, e.g. on client disconnect.
func (s *Service) Unregister(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for channel, subs := range s.subscribers {
		kept := subs[:0]
		for _, existing := range subs {
			if existing != sub {
				kept = append(kept, existing)
			}
		}
		s.subscribers[channel] = kept
	}
}

var defaultChannels = []string{"web", "discord"}

// Notify fans a message out to every subscriber on the given channels
// (default "web" and "discord" when nil), dropping subscribers whose send
// failed, and persists a record.
func (s *Service) Notify(ctx context.Context, message string, channels []string) {
	if channels == nil {
		channels = defaultChannels
	}
	now := time.Now()
	slog.Info("notification dispatched", "channels", channels, "preview", previewOf(message))

	for _, channel := range channels {
		s.dispatch(channel, message, now)
	}

	s.append(Record{Message: message, Channels: channels, Timestamp: now})
}

func (s *Service) dispatch(channel, message string, at time.Time) {
	s.mu.Lock()
	subs := append([]Subscriber(nil), s.subscribers[channel]...)
	s.mu.Unlock()

	var dead []Subscriber
	for _, sub := range subs {
		if err := sub.SendNotification(message, at); err != nil {
			dead = append(dead, sub)
		}
	}
	if len(dead) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.subscribers[channel][:0]
	for _, existing := range s.subscribers[channel] {
		keep := true
		for _, d := range dead {
			if existing == d {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, existing)
		}
	}
	s.subscribers[channel] = remaining
}

// SendAsAssistant runs the orchestrator on the reserved automation session
// with text as a user message, then broadcasts the produced reply as a
// notification.
func (s *Service) SendAsAssistant(ctx context.Context, text string) {
	if s.orch == nil {
		slog.Warn("notify: no orchestrator wired for SendAsAssistant")
		return
	}
	reply, err := s.orch.HandleSynthetic(ctx, "automation-internal", text)
	if err != nil {
		slog.Warn("notify: SendAsAssistant turn failed", "error", err)
		return
	}
	if reply != "" {
		s.Notify(ctx, reply, nil)
	}
}

func previewOf(message string) string {
	if len(message) > 100 {
		return message[:100]
	}
	return message
}

func (s *Service) append(rec Record) {
	if s.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		slog.Warn("notify: failed to create storage dir", "error", err)
		return
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("notify: failed to open history log", "error", err)
		return
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	f.Write(append(data, '\n'))
}
