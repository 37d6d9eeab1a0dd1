// Package discord implements voice.Connector on top of discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mudler/voxlog/core/voice"
	"github.com/mudler/xlog"
	"github.com/pion/rtp"
)

// opusPayloadType is the dynamic RTP payload type Discord uses for Opus.
const opusPayloadType = 120

// pendingLimit bounds the packets kept for a speaker between the first packet
// of an utterance and the subscription created in response to it (~1s).
const pendingLimit = 50

type Connector struct {
	session *discordgo.Session
}

// New creates a bot session; call Open before joining channels.
func New(token string) (*Connector, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers
	return &Connector{session: s}, nil
}

func (c *Connector) Open() error {
	return c.session.Open()
}

func (c *Connector) Close() error {
	return c.session.Close()
}

func (c *Connector) Join(ctx context.Context, guildID, channelID string) (voice.Connection, error) {
	type joinResult struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	done := make(chan joinResult, 1)
	go func() {
		vc, err := c.session.ChannelVoiceJoin(guildID, channelID, true, false)
		done <- joinResult{vc, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return newConnection(c.session, r.vc), nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.vc != nil {
				if err := r.vc.Disconnect(); err != nil {
					xlog.Debug("Disconnecting abandoned voice join", "guild", guildID, "error", err)
				}
			}
		}()
		return nil, ctx.Err()
	}
}

func (c *Connector) DisplayName(ctx context.Context, guildID, userID string) (string, error) {
	if m, err := c.session.State.Member(guildID, userID); err == nil && m.User != nil {
		return m.DisplayName(), nil
	}
	m, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	if m.User == nil {
		return "", errors.New("member has no user")
	}
	return m.DisplayName(), nil
}

type speaker struct {
	lastPacket time.Time
	speaking   bool
	pending    []*rtp.Packet
	subs       []*subscription
}

type connection struct {
	session *discordgo.Session
	vc      *discordgo.VoiceConnection

	mu          sync.Mutex
	handlers    map[int]func(voice.Event)
	nextHandler int
	users       map[uint32]string
	speakers    map[string]*speaker
	closed      bool

	removeStateHandler func()
	done               chan struct{}
	closeOnce          sync.Once
}

func newConnection(s *discordgo.Session, vc *discordgo.VoiceConnection) *connection {
	c := &connection{
		session:  s,
		vc:       vc,
		handlers: map[int]func(voice.Event){},
		users:    map[uint32]string{},
		speakers: map[string]*speaker{},
		done:     make(chan struct{}),
	}

	vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		c.mu.Lock()
		c.users[uint32(vs.SSRC)] = vs.UserID
		c.mu.Unlock()
	})
	c.removeStateHandler = s.AddHandler(c.onVoiceStateUpdate)

	go c.receive()
	go c.watchSilence()
	return c
}

func (c *connection) GuildID() string   { return c.vc.GuildID }
func (c *connection) ChannelID() string { return c.vc.ChannelID }

func (c *connection) AddHandler(h func(voice.Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextHandler
	c.nextHandler++
	c.handlers[id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

func (c *connection) emit(ev voice.Event) {
	c.mu.Lock()
	handlers := make([]func(voice.Event), 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (c *connection) Subscribe(userID string, silence time.Duration) (voice.Subscription, error) {
	if silence <= 0 {
		silence = voice.DefaultSilenceDuration
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("voice connection closed")
	}

	sp := c.speaker(userID)
	sub := newSubscription(silence)
	for _, p := range sp.pending {
		sub.push(p)
	}
	sp.pending = nil
	sub.last = time.Now()
	sp.subs = append(sp.subs, sub)
	return sub, nil
}

func (c *connection) Disconnect() error {
	err := c.vc.Disconnect()
	c.shutdown()
	return err
}

func (c *connection) shutdown() {
	c.closeOnce.Do(func() {
		c.removeStateHandler()
		close(c.done)

		c.mu.Lock()
		c.closed = true
		for _, sp := range c.speakers {
			for _, sub := range sp.subs {
				sub.Close()
			}
			sp.subs = nil
		}
		c.mu.Unlock()
	})
}

// speaker must be called with c.mu held.
func (c *connection) speaker(userID string) *speaker {
	sp, ok := c.speakers[userID]
	if !ok {
		sp = &speaker{}
		c.speakers[userID] = sp
	}
	return sp
}

func (c *connection) receive() {
	for {
		select {
		case <-c.done:
			return
		case p, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			c.onPacket(p)
		}
	}
}

func (c *connection) onPacket(p *discordgo.Packet) {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: p.Sequence,
			Timestamp:      p.Timestamp,
			SSRC:           p.SSRC,
		},
		Payload: p.Opus,
	}

	c.mu.Lock()
	userID, known := c.users[p.SSRC]
	if !known {
		c.mu.Unlock()
		return
	}
	sp := c.speaker(userID)
	sp.lastPacket = time.Now()
	started := !sp.speaking
	sp.speaking = true

	if len(sp.subs) == 0 {
		if len(sp.pending) < pendingLimit {
			sp.pending = append(sp.pending, pkt)
		}
	}
	for _, sub := range sp.subs {
		sub.push(pkt)
		sub.last = sp.lastPacket
	}
	c.mu.Unlock()

	if started {
		c.emit(voice.SpeakingStart{UserID: userID})
	}
}

// watchSilence ends subscriptions after their trailing silence and emits
// SpeakingStop once a speaker has been quiet for the default duration or
// their last subscription closed.
func (c *connection) watchSilence() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			var stopped []string
			c.mu.Lock()
			for userID, sp := range c.speakers {
				live := sp.subs[:0]
				for _, sub := range sp.subs {
					if now.Sub(sub.last) >= sub.silence {
						sub.Close()
						continue
					}
					live = append(live, sub)
				}
				closed := len(live) < len(sp.subs)
				sp.subs = live

				// A speaker whose last subscription just closed must be
				// announced again on the next packet, however short the
				// subscription's silence was.
				if sp.speaking && ((closed && len(live) == 0) || now.Sub(sp.lastPacket) >= voice.DefaultSilenceDuration) {
					sp.speaking = false
					sp.pending = nil
					stopped = append(stopped, userID)
				}
			}
			c.mu.Unlock()
			for _, userID := range stopped {
				c.emit(voice.SpeakingStop{UserID: userID})
			}
		}
	}
}

func (c *connection) onVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.VoiceState == nil || vsu.GuildID != c.vc.GuildID {
		return
	}
	if s.State != nil && s.State.User != nil && vsu.UserID == s.State.User.ID {
		if vsu.ChannelID == "" {
			c.emit(voice.StateChange{State: voice.StateDisconnected})
			c.shutdown()
		}
		return
	}
	if vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID == c.vc.ChannelID && vsu.ChannelID != c.vc.ChannelID {
		c.emit(voice.MemberLeft{UserID: vsu.UserID})
	}
}

type subscription struct {
	packets chan *rtp.Packet
	silence time.Duration
	last    time.Time
	once    sync.Once
	mu      sync.Mutex
	closed  bool
}

func newSubscription(silence time.Duration) *subscription {
	return &subscription{
		packets: make(chan *rtp.Packet, 512),
		silence: silence,
	}
}

func (s *subscription) Packets() <-chan *rtp.Packet {
	return s.packets
}

// push drops the packet when the subscriber's buffer is full.
func (s *subscription) push(p *rtp.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.packets <- p:
	default:
		xlog.Warn("Dropping voice packet, subscriber is not keeping up", "ssrc", p.SSRC, "seq", p.SequenceNumber)
	}
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.packets)
		s.mu.Unlock()
	})
}
