package capture

import (
	"context"
	"strings"
	"time"

	"github.com/mudler/voxlog/core/voice"
	"github.com/mudler/xlog"
)

// nameLookupTimeout bounds a single display-name lookup.
const nameLookupTimeout = 5 * time.Second

// ResolvedSpeaker is the identity a clip is filed under. Fallback is set when
// the display name could not be looked up and Name was derived from ID.
type ResolvedSpeaker struct {
	ID       string
	Name     string
	Fallback bool
}

func KnownSpeaker(id, name string) ResolvedSpeaker {
	return ResolvedSpeaker{ID: id, Name: name}
}

func FallbackSpeaker(id string) ResolvedSpeaker {
	return ResolvedSpeaker{ID: id, Name: "user-" + id, Fallback: true}
}

// ResolveSpeaker never fails: lookup errors and blank names yield a fallback.
func ResolveSpeaker(ctx context.Context, connector voice.Connector, guildID, userID string) ResolvedSpeaker {
	ctx, cancel := context.WithTimeout(ctx, nameLookupTimeout)
	defer cancel()

	name, err := connector.DisplayName(ctx, guildID, userID)
	if err != nil {
		xlog.Warn("Could not resolve speaker name, using fallback", "user", userID, "error", err)
		return FallbackSpeaker(userID)
	}
	if strings.TrimSpace(name) == "" {
		return FallbackSpeaker(userID)
	}
	return KnownSpeaker(userID, name)
}
