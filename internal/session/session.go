// Package session runs the realtime controllers of one signed-in user: it
// subscribes to the user's notification and message rows, initialises the
// feed and messaging controllers, and feeds bus events into them until the
// session is stopped.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shinyyama/herald-backend/internal/feed"
	"github.com/shinyyama/herald-backend/internal/messaging"
	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/realtime"
	"github.com/shinyyama/herald-backend/internal/repository"
)

// Sink receives everything a session wants to show the user.
type Sink interface {
	feed.Listener
	messaging.Listener
}

type Manager struct {
	bus           *realtime.Bus
	notifications feed.Store
	messages      messaging.Store
	refresh       time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	sessions map[string]map[*Session]struct{}
}

// NewManager builds a manager; refresh is the period of the full feed
// refetch and zero disables it.
func NewManager(bus *realtime.Bus, notifications feed.Store, messages messaging.Store, refresh time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		bus:           bus,
		notifications: notifications,
		messages:      messages,
		refresh:       refresh,
		logger:        logger.With("component", "session"),
		sessions:      map[string]map[*Session]struct{}{},
	}
}

type Session struct {
	uid       string
	Feed      *feed.Controller
	Messaging *messaging.Controller

	manager  *Manager
	notifSub *realtime.Subscription
	msgSub   *realtime.Subscription
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Start subscribes first and initialises second, so rows written during the
// initial fetch still arrive as events; the reducers absorb the overlap.
func (m *Manager) Start(ctx context.Context, uid string, sink Sink) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		uid:       uid,
		Feed:      feed.NewController(uid, m.notifications, sink, m.logger),
		Messaging: messaging.NewController(uid, m.messages, sink, m.logger),
		manager:   m,
		notifSub: m.bus.Subscribe(repository.TableNotifications, realtime.Eq("user_id", uid),
			realtime.Insert, realtime.Update, realtime.Delete),
		msgSub: m.bus.Subscribe(repository.TableMessages, realtime.Eq("receiver_id", uid), realtime.Insert),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.sessions[uid] == nil {
		m.sessions[uid] = map[*Session]struct{}{}
	}
	m.sessions[uid][s] = struct{}{}
	m.mu.Unlock()

	s.Feed.Initialize(ctx)
	_ = s.Messaging.Load(ctx)

	go s.run(ctx)
	m.logger.Info("session started", "uid", uid)
	return s
}

func (s *Session) UserID() string {
	return s.uid
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop tears the session down. It is safe to call more than once but must
// not be called from a Sink callback.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.notifSub.Unsubscribe()
		s.msgSub.Unsubscribe()
		<-s.done
		s.manager.remove(s)
		s.manager.logger.Info("session stopped", "uid", s.uid)
	})
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	var tick <-chan time.Time
	if s.manager.refresh > 0 {
		t := time.NewTicker(s.manager.refresh)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.notifSub.C():
			if !ok {
				return
			}
			s.onNotification(ev)
		case ev, ok := <-s.msgSub.C():
			if !ok {
				return
			}
			if m, ok := ev.Record.(model.Message); ok {
				s.Messaging.OnInsertEvent(ctx, m)
			}
		case <-tick:
			_ = s.Feed.Refresh(ctx)
		}
	}
}

func (s *Session) onNotification(ev realtime.Event) {
	n, ok := ev.Record.(model.Notification)
	if !ok {
		return
	}
	switch ev.Type {
	case realtime.Insert:
		s.Feed.OnInsertEvent(n)
	case realtime.Update:
		s.Feed.OnUpdateEvent(n)
	case realtime.Delete:
		s.Feed.OnDeleteEvent(n)
	}
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sessions[s.uid]
	delete(set, s)
	if len(set) == 0 {
		delete(m.sessions, s.uid)
	}
}

// StopUser ends every session of uid, as on sign-out, and returns how many
// were stopped.
func (m *Manager) StopUser(uid string) int {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions[uid]))
	for s := range m.sessions[uid] {
		list = append(list, s)
	}
	m.mu.Unlock()
	for _, s := range list {
		s.Stop()
	}
	return len(list)
}

// StopAll ends every session; used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	var list []*Session
	for _, set := range m.sessions {
		for s := range set {
			list = append(list, s)
		}
	}
	m.mu.Unlock()
	for _, s := range list {
		s.Stop()
	}
}

func (m *Manager) Active(uid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions[uid])
}
