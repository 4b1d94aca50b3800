// Package identity is the boundary to the platform's identity provider.
// The matchmaker never stores user records; it only resolves user IDs into
// display profiles when presenting chat members.
package identity

import (
	"context"
	"sync"

	"github.com/koinonia-app/QueueChat/internal/errs"
)

// Profile is the presentation shape of a user.
type Profile struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Provider resolves user IDs to profiles.
type Provider interface {
	// Resolve returns the profile for a user. Returns errs.ErrNotFound for
	// unknown users.
	Resolve(ctx context.Context, userID uint) (*Profile, error)

	// ResolveBatch resolves several users at once. Unknown users are
	// silently skipped; order follows the input.
	ResolveBatch(ctx context.Context, userIDs []uint) ([]Profile, error)
}

// StaticProvider serves profiles from an in-process map. Used in development
// and tests, where the real identity service is not available.
type StaticProvider struct {
	mu       sync.RWMutex
	profiles map[uint]Profile
}

// NewStaticProvider 创建静态身份提供者
func NewStaticProvider(profiles ...Profile) *StaticProvider {
	p := &StaticProvider{profiles: make(map[uint]Profile)}
	for _, profile := range profiles {
		p.profiles[profile.ID] = profile
	}
	return p
}

// Put adds or replaces a profile.
func (p *StaticProvider) Put(profile Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[profile.ID] = profile
}

// Resolve implements Provider.
func (p *StaticProvider) Resolve(_ context.Context, userID uint) (*Profile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	profile, ok := p.profiles[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &profile, nil
}

// ResolveBatch implements Provider.
func (p *StaticProvider) ResolveBatch(_ context.Context, userIDs []uint) ([]Profile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Profile, 0, len(userIDs))
	for _, id := range userIDs {
		if profile, ok := p.profiles[id]; ok {
			out = append(out, profile)
		}
	}
	return out, nil
}
