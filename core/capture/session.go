package capture

import (
	"context"
	"sync"
	"time"

	"github.com/mudler/voxlog/core/schema"
	"github.com/mudler/voxlog/core/voice"
	"github.com/mudler/voxlog/metrics"
	"github.com/mudler/xlog"
)

type SpeakerState int

const (
	Idle SpeakerState = iota
	Recording
)

func (s SpeakerState) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// EndReason tells why a session stopped capturing.
type EndReason int

const (
	Running EndReason = iota
	Stopped
	Disconnected
)

func (r EndReason) String() string {
	switch r {
	case Stopped:
		return "stopped"
	case Disconnected:
		return "disconnected"
	default:
		return "running"
	}
}

type speakerEntry struct {
	state SpeakerState
	gen   uint64
}

type (
	eventMsg struct {
		ev voice.Event
	}
	clipDoneMsg struct {
		userID string
		gen    uint64
		result ClipResult
	}
	stateQuery struct {
		userID string
		reply  chan SpeakerState
	}
	stopMsg struct{}
)

type sessionParams struct {
	id        string
	startedAt time.Time
	folder    string
	conn      voice.Connection
	connector voice.Connector
	silence   time.Duration
	metrics   *metrics.Metrics
}

// Session is one live capture. All speaker bookkeeping happens on a single
// goroutine fed by the mailbox.
type Session struct {
	ID        string
	GuildID   string
	ChannelID string
	StartedAt time.Time
	Folder    string

	conn      voice.Connection
	connector voice.Connector
	silence   time.Duration
	metrics   *metrics.Metrics

	mailbox  chan any
	done     chan struct{}
	stopOnce sync.Once

	// owned by the actor goroutine
	speakers map[string]*speakerEntry
	removers []func()
	nextGen  uint64

	recorders sync.WaitGroup

	mu     sync.Mutex
	clips  []schema.Clip
	reason EndReason
}

func newSession(p sessionParams) *Session {
	s := &Session{
		ID:        p.id,
		GuildID:   p.conn.GuildID(),
		ChannelID: p.conn.ChannelID(),
		StartedAt: p.startedAt,
		Folder:    p.folder,
		conn:      p.conn,
		connector: p.connector,
		silence:   p.silence,
		metrics:   p.metrics,
		mailbox:   make(chan any, 256),
		done:      make(chan struct{}),
		speakers:  map[string]*speakerEntry{},
	}
	s.removers = append(s.removers, p.conn.AddHandler(func(ev voice.Event) {
		s.post(eventMsg{ev: ev})
	}))
	go s.run()
	return s
}

// post delivers m to the actor, or drops it once the session has ended.
func (s *Session) post(m any) bool {
	select {
	case s.mailbox <- m:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) run() {
	defer close(s.done)
	for m := range s.mailbox {
		switch m := m.(type) {
		case eventMsg:
			if s.handleEvent(m.ev) {
				return
			}
		case clipDoneMsg:
			s.handleClipDone(m)
		case stateQuery:
			st := Idle
			if e, ok := s.speakers[m.userID]; ok {
				st = e.state
			}
			m.reply <- st
		case stopMsg:
			s.end(Stopped)
			return
		}
	}
}

// handleEvent reports whether the session ended.
func (s *Session) handleEvent(ev voice.Event) bool {
	switch ev := ev.(type) {
	case voice.SpeakingStart:
		s.startSpeaker(ev.UserID)
	case voice.SpeakingStop:
		xlog.Debug("Speaker went quiet", "session", s.ID, "user", ev.UserID)
	case voice.MemberLeft:
		if e, ok := s.speakers[ev.UserID]; ok && e.state == Recording {
			e.state = Idle
			xlog.Debug("Recording speaker left the channel", "session", s.ID, "user", ev.UserID)
		}
	case voice.StateChange:
		if ev.State == voice.StateDisconnected || ev.State == voice.StateDestroyed {
			xlog.Info("Voice connection lost", "session", s.ID, "state", ev.State)
			s.end(Disconnected)
			return true
		}
	}
	return false
}

func (s *Session) startSpeaker(userID string) {
	e, ok := s.speakers[userID]
	if !ok {
		e = &speakerEntry{}
		s.speakers[userID] = e
	}
	if e.state == Recording {
		return
	}

	sub, err := s.conn.Subscribe(userID, s.silence)
	if err != nil {
		xlog.Error("Failed to subscribe to speaker", "session", s.ID, "user", userID, "error", err)
		return
	}
	s.nextGen++
	e.state = Recording
	e.gen = s.nextGen
	gen := e.gen

	s.recorders.Add(1)
	go func() {
		defer s.recorders.Done()
		// The lookup outlives the actor: a clip cut short by Stop still gets
		// its speaker's name.
		result := NewClipRecorder(s.Folder, ResolvedSpeaker{ID: userID}, sub).
			ResolveWith(func() ResolvedSpeaker {
				return ResolveSpeaker(context.Background(), s.connector, s.GuildID, userID)
			}).
			Run()
		s.recordClip(result)
		s.post(clipDoneMsg{userID: userID, gen: gen, result: result})
	}()
}

func (s *Session) handleClipDone(m clipDoneMsg) {
	if e, ok := s.speakers[m.userID]; ok && e.gen == m.gen {
		e.state = Idle
	}
}

// recordClip appends to the clip log from the recorder goroutine so clips
// finishing after the actor exits are still kept.
func (s *Session) recordClip(r ClipResult) {
	if r.Clip == nil {
		if r.Err != nil {
			s.metrics.ObserveClip(r.Speaker.Name, 0, r.Err)
		}
		return
	}
	s.metrics.ObserveClip(r.Speaker.Name, r.Clip.Duration, r.Err)
	if r.Err == nil {
		xlog.Info("Clip saved", "session", s.ID, "speaker", r.Speaker.Name, "path", r.Clip.Path, "duration", r.Clip.Duration)
	}
	s.mu.Lock()
	s.clips = append(s.clips, *r.Clip)
	s.mu.Unlock()
}

func (s *Session) end(reason EndReason) {
	for _, remove := range s.removers {
		remove()
	}
	s.removers = nil
	clear(s.speakers)

	if err := s.conn.Disconnect(); err != nil {
		xlog.Debug("Voice disconnect returned an error", "session", s.ID, "error", err)
	}

	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()
	xlog.Info("Recording ended", "session", s.ID, "reason", reason, "folder", s.Folder)
}

// Stop removes this session's handlers and disconnects. It returns once the
// actor has exited; clip files may still be finishing.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.post(stopMsg{})
	})
	<-s.done
}

// Ended is closed when the session stops or its connection is lost.
func (s *Session) Ended() <-chan struct{} {
	return s.done
}

func (s *Session) Reason() EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// State returns userID's current state. Ended sessions report Idle.
func (s *Session) State(userID string) SpeakerState {
	reply := make(chan SpeakerState, 1)
	if !s.post(stateQuery{userID: userID, reply: reply}) {
		return Idle
	}
	select {
	case st := <-reply:
		return st
	case <-s.done:
		return Idle
	}
}

// Clips returns the clips finalized so far, in completion order.
func (s *Session) Clips() []schema.Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.Clip(nil), s.clips...)
}

// WaitRecorders blocks until every clip recorder has finished or ctx is done.
// Call it once the session has ended.
func (s *Session) WaitRecorders(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.recorders.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
