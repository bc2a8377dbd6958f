// Package audiocache memoizes synthesized audio in a blob store keyed by
// owner, variant, voice and text.
package audiocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"langu/internal/apperr"
	"langu/internal/util"
	"langu/pkg/domain"
	"langu/pkg/speech"
	"langu/pkg/storage"
)

const contentType = "audio/mpeg"

// Owner identifies the record an artifact belongs to.
type Owner struct {
	Kind domain.OwnerKind
	ID   string
}

// Key builds the blob key for an artifact. Two voices that share a language
// code get distinct keys, and so do two texts: audio for a superseded text
// can never be read back under the current text's key.
func Key(owner Owner, variant domain.AudioVariant, voice domain.Voice, text string) string {
	return fmt.Sprintf("%s/%s/%s/%s_%s.mp3", owner.Kind, safe(owner.ID), variant, safe(voice.Slug()), textDigest(text))
}

func textDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:6])
}

func variantPrefix(owner Owner, variant domain.AudioVariant) string {
	return fmt.Sprintf("%s/%s/%s/", owner.Kind, safe(owner.ID), variant)
}

func ownerPrefix(owner Owner) string {
	return fmt.Sprintf("%s/%s/", owner.Kind, safe(owner.ID))
}

func safe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, s)
}

// Manager resolves audio through the cache, synthesizing on a miss.
type Manager struct {
	blobs   storage.BlobStore
	synth   speech.Synthesizer
	timeout time.Duration
	group   singleflight.Group
}

// New builds a Manager. timeout bounds every synthesis call.
func New(blobs storage.BlobStore, synth speech.Synthesizer, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{blobs: blobs, synth: synth, timeout: timeout}
}

// Lookup returns the audio stored under key without synthesizing. ok is
// false on a miss.
func (m *Manager) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := m.blobs.Get(ctx, key)
	if err == nil {
		return data, true, nil
	}
	if errors.Is(err, storage.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, apperr.CacheIO("read cached audio", err)
}

// Resolve returns the audio stored under key, synthesizing text with voice
// and storing the result when the key is absent. Concurrent misses for the
// same key share one synthesis call.
func (m *Manager) Resolve(ctx context.Context, key, text string, voice domain.Voice) ([]byte, error) {
	data, err := m.blobs.Get(ctx, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, storage.ErrNotExist) {
		return nil, apperr.CacheIO("read cached audio", err)
	}

	v, err, shared := m.group.Do(key+"#"+textDigest(text), func() (any, error) {
		return m.fill(context.WithoutCancel(ctx), key, text, voice)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		util.LoggerFromContext(ctx).Debug("audio cache fill shared", "key", key)
	}
	return v.([]byte), nil
}

// ResolveFor is Resolve with the key derived from owner, variant, voice and
// text. The key is returned so callers can record it.
func (m *Manager) ResolveFor(ctx context.Context, owner Owner, variant domain.AudioVariant, text string, voice domain.Voice) ([]byte, string, error) {
	key := Key(owner, variant, voice, text)
	data, err := m.Resolve(ctx, key, text, voice)
	return data, key, err
}

func (m *Manager) fill(ctx context.Context, key, text string, voice domain.Voice) ([]byte, error) {
	// A fill that finished between the first lookup and joining the group
	// already wrote the blob.
	if data, err := m.blobs.Get(ctx, key); err == nil {
		return data, nil
	}

	synthCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()
	audio, err := m.synth.Synthesize(synthCtx, text, voice)
	if err != nil {
		return nil, apperr.Upstream("synthesize", err)
	}
	if len(audio) == 0 {
		return nil, apperr.Upstream("synthesize", speech.ErrEmptyAudio)
	}
	if err := m.blobs.Put(ctx, key, audio, contentType); err != nil {
		return nil, apperr.CacheIO("write cached audio", err)
	}
	util.LoggerFromContext(ctx).Info("audio synthesized",
		"key", key,
		"bytes", len(audio),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return audio, nil
}

// Invalidate drops every voice's artifact for owner and variant. A fill for
// the previous text that is still running afterwards writes under a key no
// current text resolves to.
func (m *Manager) Invalidate(ctx context.Context, owner Owner, variant domain.AudioVariant) error {
	if err := m.blobs.DeletePrefix(ctx, variantPrefix(owner, variant)); err != nil {
		return apperr.CacheIO("invalidate cached audio", err)
	}
	return nil
}

// InvalidateOwner drops every artifact of owner.
func (m *Manager) InvalidateOwner(ctx context.Context, owner Owner) error {
	if err := m.blobs.DeletePrefix(ctx, ownerPrefix(owner)); err != nil {
		return apperr.CacheIO("invalidate cached audio", err)
	}
	return nil
}
