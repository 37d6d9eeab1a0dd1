// Package voice describes the live voice capability the recorder consumes:
// joining a channel, per-speaker Opus subscriptions and session events.
package voice

import (
	"context"
	"time"

	"github.com/pion/rtp"
)

// DefaultSilenceDuration is the trailing silence after which a subscription
// ends on its own.
const DefaultSilenceDuration = 1000 * time.Millisecond

// Event is delivered to handlers registered on a Connection.
type Event interface {
	voiceEvent()
}

// SpeakingStart is emitted when a speaker starts sending audio.
type SpeakingStart struct {
	UserID string
}

// SpeakingStop is emitted after a speaker has been silent for a while.
type SpeakingStop struct {
	UserID string
}

// MemberLeft is emitted when a user leaves the connected channel.
type MemberLeft struct {
	UserID string
}

type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateReady
	StateDisconnected
	StateDestroyed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// StateChange is emitted when the underlying connection changes state.
type StateChange struct {
	State ConnectionState
}

func (SpeakingStart) voiceEvent() {}
func (SpeakingStop) voiceEvent()  {}
func (MemberLeft) voiceEvent()    {}
func (StateChange) voiceEvent()   {}

// Subscription is a live stream of one speaker's Opus packets. The packet
// channel is closed after the requested trailing silence, or when the
// connection goes away.
type Subscription interface {
	Packets() <-chan *rtp.Packet
	Close()
}

// Connection is a joined voice channel.
type Connection interface {
	GuildID() string
	ChannelID() string
	Subscribe(userID string, silence time.Duration) (Subscription, error)
	// AddHandler registers h for every Event on this connection and returns a
	// function removing exactly that registration.
	AddHandler(h func(Event)) (remove func())
	Disconnect() error
}

// Connector joins channels and resolves speaker names.
type Connector interface {
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
	DisplayName(ctx context.Context, guildID, userID string) (string, error)
}
