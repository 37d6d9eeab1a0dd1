// Package voicetest provides in-memory voice connectors for tests.
package voicetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mudler/voxlog/core/voice"
	"github.com/pion/rtp"
)

// Connector is a scriptable voice.Connector.
type Connector struct {
	mu sync.Mutex

	// JoinDelay postpones Join; a Join still pending when ctx expires returns
	// ctx.Err() and the late connection is disconnected.
	JoinDelay time.Duration
	JoinErr   error
	Names     map[string]string

	connections []*Connection
	lateDropped int
}

func NewConnector() *Connector {
	return &Connector{Names: map[string]string{}}
}

func (c *Connector) Join(ctx context.Context, guildID, channelID string) (voice.Connection, error) {
	c.mu.Lock()
	delay, joinErr := c.JoinDelay, c.JoinErr
	c.mu.Unlock()

	if joinErr != nil {
		return nil, joinErr
	}
	conn := NewConnection(guildID, channelID)
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.mu.Lock()
			c.lateDropped++
			c.mu.Unlock()
			conn.Disconnect()
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	c.connections = append(c.connections, conn)
	c.mu.Unlock()
	return conn, nil
}

func (c *Connector) DisplayName(_ context.Context, _, userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.Names[userID]
	if !ok {
		return "", fmt.Errorf("member %s not found", userID)
	}
	return name, nil
}

// Connections returns every connection handed out so far.
func (c *Connector) Connections() []*Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Connection(nil), c.connections...)
}

// Last returns the most recent connection, or nil.
func (c *Connector) Last() *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.connections) == 0 {
		return nil
	}
	return c.connections[len(c.connections)-1]
}

// LateDropped counts joins abandoned because their context expired.
func (c *Connector) LateDropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lateDropped
}

// Connection is an in-memory voice.Connection driven by the test.
type Connection struct {
	mu sync.Mutex

	guildID, channelID string
	handlers           map[int]func(voice.Event)
	nextHandler        int
	subs               map[string][]*Subscription
	subscribeCalls     map[string]int
	disconnected       bool
	SubscribeErr       error
}

func NewConnection(guildID, channelID string) *Connection {
	return &Connection{
		guildID:        guildID,
		channelID:      channelID,
		handlers:       map[int]func(voice.Event){},
		subs:           map[string][]*Subscription{},
		subscribeCalls: map[string]int{},
	}
}

func (c *Connection) GuildID() string   { return c.guildID }
func (c *Connection) ChannelID() string { return c.channelID }

func (c *Connection) Subscribe(userID string, silence time.Duration) (voice.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return nil, errors.New("connection closed")
	}
	if c.SubscribeErr != nil {
		return nil, c.SubscribeErr
	}
	c.subscribeCalls[userID]++
	sub := &Subscription{packets: make(chan *rtp.Packet, 256), Silence: silence}
	c.subs[userID] = append(c.subs[userID], sub)
	return sub, nil
}

func (c *Connection) AddHandler(h func(voice.Event)) func() {
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

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return nil
	}
	c.disconnected = true
	var subs []*Subscription
	for _, s := range c.subs {
		subs = append(subs, s...)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.End()
	}
	return nil
}

// Emit delivers ev to every registered handler.
func (c *Connection) Emit(ev voice.Event) {
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

// Handlers returns the number of live handler registrations.
func (c *Connection) Handlers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

// SubscribeCalls returns how many subscriptions were opened for userID.
func (c *Connection) SubscribeCalls(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribeCalls[userID]
}

// Subscription returns the latest subscription opened for userID, or nil.
func (c *Connection) Subscription(userID string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subs[userID]
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

func (c *Connection) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// Subscription is a manually fed voice.Subscription.
type Subscription struct {
	packets chan *rtp.Packet
	once    sync.Once
	Silence time.Duration
}

// NewSubscription returns a detached subscription, for recorder tests.
func NewSubscription() *Subscription {
	return &Subscription{packets: make(chan *rtp.Packet, 256)}
}

func (s *Subscription) Packets() <-chan *rtp.Packet { return s.packets }

func (s *Subscription) Close() { s.End() }

// Send pushes one Opus payload with the given RTP sequence and timestamp.
func (s *Subscription) Send(seq uint16, ts uint32, payload []byte) {
	s.packets <- &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 120, SequenceNumber: seq, Timestamp: ts},
		Payload: payload,
	}
}

// End closes the packet stream as the silence timeout would.
func (s *Subscription) End() {
	s.once.Do(func() { close(s.packets) })
}
