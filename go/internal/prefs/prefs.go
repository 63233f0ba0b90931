package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Keys used by the typed accessors.
const (
	KeyCredential        = "auth.credential"
	KeyMutedParticipants = "voice.muted_participants"
	KeyMobilePrompt      = "ui.mobile_prompt"
)

var ErrNotFound = errors.New("preference not found")

// KV is a durable string key/value store. Get returns ErrNotFound for
// missing keys.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// MobilePrompt records when the mobile app prompt was last shown.
type MobilePrompt struct {
	LastShown time.Time `json:"lastShown"`
	Count     int       `json:"count"`
}

// Prefs gives typed access to the client's durable local state.
type Prefs struct {
	kv KV
}

// New wraps kv.
func New(kv KV) *Prefs {
	return &Prefs{kv: kv}
}

// Credential returns the stored bearer credential, or "" when logged out.
func (p *Prefs) Credential(ctx context.Context) (string, error) {
	v, err := p.kv.Get(ctx, KeyCredential)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return v, nil
}

// SetCredential stores the bearer credential after login.
func (p *Prefs) SetCredential(ctx context.Context, token string) error {
	if token == "" {
		return p.ClearCredential(ctx)
	}
	if err := p.kv.Set(ctx, KeyCredential, token); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// ClearCredential removes the credential (logout).
func (p *Prefs) ClearCredential(ctx context.Context) error {
	if err := p.kv.Delete(ctx, KeyCredential); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// MutedParticipants returns the set of voice identities the user muted.
func (p *Prefs) MutedParticipants(ctx context.Context) (map[string]bool, error) {
	var ids []string
	if err := p.getJSON(ctx, KeyMutedParticipants, &ids); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// SetParticipantMuted adds or removes identity from the muted set.
func (p *Prefs) SetParticipantMuted(ctx context.Context, identity string, muted bool) error {
	set, err := p.MutedParticipants(ctx)
	if err != nil {
		return err
	}
	if set[identity] == muted {
		return nil
	}
	if muted {
		set[identity] = true
	} else {
		delete(set, identity)
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return p.setJSON(ctx, KeyMutedParticipants, ids)
}

// MobilePrompt returns the mobile prompt bookkeeping.
func (p *Prefs) MobilePrompt(ctx context.Context) (MobilePrompt, error) {
	var mp MobilePrompt
	err := p.getJSON(ctx, KeyMobilePrompt, &mp)
	return mp, err
}

// RecordMobilePrompt notes that the prompt was shown at now.
func (p *Prefs) RecordMobilePrompt(ctx context.Context, now time.Time) (MobilePrompt, error) {
	mp, err := p.MobilePrompt(ctx)
	if err != nil {
		return MobilePrompt{}, err
	}
	mp.LastShown = now.UTC()
	mp.Count++
	return mp, p.setJSON(ctx, KeyMobilePrompt, mp)
}

// Reset wipes every stored preference.
func (p *Prefs) Reset(ctx context.Context) error {
	if err := p.kv.Clear(ctx); err != nil {
		return fmt.Errorf("failed to reset preferences: %w", err)
	}
	log.Info().Msg("preferences reset")
	return nil
}

func (p *Prefs) getJSON(ctx context.Context, key string, v any) error {
	raw, err := p.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		// a corrupt value behaves like an absent one
		log.Warn().Err(err).Str("key", key).Msg("ignoring unreadable preference")
		return nil
	}
	return nil
}

func (p *Prefs) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := p.kv.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
