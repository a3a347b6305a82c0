// Package identity allocates the short ephemeral identities clients are
// addressed by. Identities are unique among currently live sessions only; a
// reconnecting client gets a fresh one.
package identity

import (
	"time"

	"github.com/xsukax/securechat/api/common"
	xcommon "github.com/xsukax/securechat/common"
	"github.com/xsukax/securechat/util"
)

const (
	// Alphabet is the fixed identity alphabet. Lookups upper-case client
	// input, so lower case letters are excluded here.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// IDLength is the identity length in characters.
	IDLength = 6

	maxAttempts = 64

	cooldownCleanupInterval = time.Minute
)

// namespaceSize is len(Alphabet)^IDLength.
const namespaceSize = 36 * 36 * 36 * 36 * 36 * 36

// Registry is the liveness view the allocator draws uniqueness from. It is
// implemented by session.SessionList.
type Registry interface {
	IsLive(id string) bool
	GetSessionCount() int
}

// Allocator hands out identities not currently assigned to any live session.
// Released identities are additionally held back for a cooldown window so a
// new session is unlikely to inherit a stale friendship addressed to a
// previous owner of the same id.
type Allocator struct {
	registry Registry
	cooldown *xcommon.GoCache
}

func NewAllocator(registry Registry, reuseCooldown time.Duration) *Allocator {
	return &Allocator{
		registry: registry,
		cooldown: xcommon.NewGoCache(reuseCooldown, cooldownCleanupInterval),
	}
}

// Allocate returns an identity that no live session holds. Collisions are
// retried; EXHAUSTED_NAMESPACE is returned if the live session count
// approaches the identifier space or retries run out.
func (a *Allocator) Allocate() (string, error) {
	if a.registry.GetSessionCount() >= namespaceSize/2 {
		return "", common.NewStatusError(common.EXHAUSTED_NAMESPACE)
	}

	for i := 0; i < maxAttempts; i++ {
		id := randomID()
		if a.registry.IsLive(id) {
			continue
		}
		if _, held := a.cooldown.Get(id); held {
			continue
		}
		return id, nil
	}

	return "", common.NewStatusError(common.EXHAUSTED_NAMESPACE)
}

// Release puts an identity into the reuse cooldown. Called when its session
// is torn down.
func (a *Allocator) Release(id string) {
	a.cooldown.Set(id, struct{}{})
}

func randomID() string {
	id := make([]byte, IDLength)
	for i := 0; i < IDLength; i++ {
		// rejection sampling keeps the distribution uniform
		for {
			b := util.RandomBytes(1)[0]
			if int(b) < 256-256%len(Alphabet) {
				id[i] = Alphabet[int(b)%len(Alphabet)]
				break
			}
		}
	}
	return string(id)
}
