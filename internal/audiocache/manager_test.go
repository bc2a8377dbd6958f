package audiocache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"langu/internal/apperr"
	"langu/pkg/domain"
	"langu/pkg/storage"
)

type fakeSynth struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	empty bool

	// hold blocks synthesis of this text until release is closed.
	hold    string
	started chan struct{}
	release chan struct{}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, voice domain.Voice) ([]byte, error) {
	n := f.calls.Add(1)
	if f.hold != "" && text == f.hold {
		f.started <- struct{}{}
		<-f.release
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	return []byte(fmt.Sprintf("mp3:%s:%s:%d", voice.Slug(), text, n)), nil
}

type failingPutStore struct {
	storage.BlobStore
}

func (failingPutStore) Put(context.Context, string, []byte, string) error {
	return errors.New("disk full")
}

func newManager(t *testing.T, synth *fakeSynth) (*Manager, *storage.FileStore) {
	t.Helper()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return New(blobs, synth, time.Second), blobs
}

var (
	section = Owner{Kind: domain.OwnerSection, ID: "s1"}
	german  = domain.Voice{LanguageCode: "de-DE"}
)

func TestKey(t *testing.T) {
	got := Key(section, domain.VariantForeign, german, "Hallo")
	if !strings.HasPrefix(got, "section/s1/foreign/de-DE_default_") || !strings.HasSuffix(got, ".mp3") {
		t.Fatalf("key = %q", got)
	}
	if again := Key(section, domain.VariantForeign, german, "Hallo"); again != got {
		t.Fatalf("key not deterministic: %q vs %q", got, again)
	}
	a := Key(section, domain.VariantForeign, domain.Voice{LanguageCode: "de-DE", Name: "de-DE-Wavenet-A"}, "Hallo")
	b := Key(section, domain.VariantForeign, domain.Voice{LanguageCode: "de-DE", Name: "de-DE-Wavenet-B"}, "Hallo")
	if a == b || a == got {
		t.Fatalf("voices sharing a language collide: %q %q %q", got, a, b)
	}
	if other := Key(section, domain.VariantForeign, german, "Tschüss"); other == got {
		t.Fatalf("texts collide: %q", other)
	}
	if !strings.HasPrefix(Key(Owner{Kind: domain.OwnerSection, ID: "../x"}, domain.VariantForeign, german, "x"), "section/---x/foreign/") {
		t.Fatalf("owner id not sanitized")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	synth := &fakeSynth{}
	m, _ := newManager(t, synth)
	ctx := context.Background()

	first, key, err := m.ResolveFor(ctx, section, domain.VariantForeign, "Guten Morgen", german)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := m.Resolve(ctx, key, "Guten Morgen", german)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("resolves differ: %q vs %q", first, second)
	}
	if got := synth.calls.Load(); got != 1 {
		t.Fatalf("synthesis calls = %d, want 1", got)
	}
}

func TestResolveAfterInvalidateResynthesizes(t *testing.T) {
	synth := &fakeSynth{}
	m, _ := newManager(t, synth)
	ctx := context.Background()
	named := domain.Voice{LanguageCode: "de-DE", Name: "de-DE-Wavenet-B"}

	if _, _, err := m.ResolveFor(ctx, section, domain.VariantForeign, "alt", german); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, _, err := m.ResolveFor(ctx, section, domain.VariantForeign, "alt", named); err != nil {
		t.Fatalf("resolve named: %v", err)
	}
	if _, _, err := m.ResolveFor(ctx, section, domain.VariantEnglish, "old", domain.Voice{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("resolve english: %v", err)
	}
	if err := m.Invalidate(ctx, section, domain.VariantForeign); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	for _, v := range []domain.Voice{german, named} {
		data, _, err := m.ResolveFor(ctx, section, domain.VariantForeign, "neu", v)
		if err != nil {
			t.Fatalf("resolve after invalidate: %v", err)
		}
		if !bytes.Contains(data, []byte(":neu:")) {
			t.Fatalf("stale audio served for %s: %q", v.Slug(), data)
		}
	}
	if got := synth.calls.Load(); got != 5 {
		t.Fatalf("synthesis calls = %d, want 5", got)
	}

	// The english variant stays cached.
	if _, _, err := m.ResolveFor(ctx, section, domain.VariantEnglish, "old", domain.Voice{LanguageCode: "en-US"}); err != nil {
		t.Fatalf("resolve english: %v", err)
	}
	if got := synth.calls.Load(); got != 5 {
		t.Fatalf("english variant re-synthesized, calls = %d", got)
	}
}

func TestInvalidateDuringFillDoesNotServeOldText(t *testing.T) {
	synth := &fakeSynth{hold: "alter Text", started: make(chan struct{}, 1), release: make(chan struct{})}
	m, _ := newManager(t, synth)
	ctx := context.Background()

	oldDone := make(chan error, 1)
	go func() {
		_, _, err := m.ResolveFor(ctx, section, domain.VariantForeign, "alter Text", german)
		oldDone <- err
	}()
	select {
	case <-synth.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("old fill did not start")
	}

	if err := m.Invalidate(ctx, section, domain.VariantForeign); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	data, _, err := m.ResolveFor(ctx, section, domain.VariantForeign, "neuer Text", german)
	if err != nil {
		t.Fatalf("resolve new text: %v", err)
	}
	if !bytes.Contains(data, []byte(":neuer Text:")) {
		t.Fatalf("resolve after invalidate served %q", data)
	}

	close(synth.release)
	if err := <-oldDone; err != nil {
		t.Fatalf("old fill: %v", err)
	}
	data, _, err = m.ResolveFor(ctx, section, domain.VariantForeign, "neuer Text", german)
	if err != nil {
		t.Fatalf("later resolve: %v", err)
	}
	if !bytes.Contains(data, []byte(":neuer Text:")) {
		t.Fatalf("late fill overwrote current audio: %q", data)
	}
	if got := synth.calls.Load(); got != 2 {
		t.Fatalf("synthesis calls = %d, want 2", got)
	}
}

func TestInvalidateMissingIsNoop(t *testing.T) {
	m, _ := newManager(t, &fakeSynth{})
	if err := m.Invalidate(context.Background(), Owner{Kind: domain.OwnerSection, ID: "nope"}, domain.VariantEnglish); err != nil {
		t.Fatalf("invalidate missing: %v", err)
	}
	if err := m.InvalidateOwner(context.Background(), Owner{Kind: domain.OwnerMessage, ID: "nope"}); err != nil {
		t.Fatalf("invalidate owner missing: %v", err)
	}
}

func TestConcurrentMissesShareSynthesis(t *testing.T) {
	synth := &fakeSynth{delay: 50 * time.Millisecond}
	m, _ := newManager(t, synth)
	key := Key(section, domain.VariantForeign, german, "gleichzeitig")

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Resolve(context.Background(), key, "gleichzeitig", german)
		}(i)
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("resolve %d: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], results[0]) {
			t.Fatalf("resolve %d returned different bytes", i)
		}
	}
	if got := synth.calls.Load(); got != 1 {
		t.Fatalf("synthesis calls = %d, want 1", got)
	}
}

func TestResolveErrorKinds(t *testing.T) {
	ctx := context.Background()

	m, _ := newManager(t, &fakeSynth{err: errors.New("quota exceeded")})
	if _, err := m.Resolve(ctx, "section/s1/foreign/x.mp3", "a", german); apperr.KindOf(err) != apperr.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}

	m, _ = newManager(t, &fakeSynth{empty: true})
	if _, err := m.Resolve(ctx, "section/s1/foreign/x.mp3", "a", german); apperr.KindOf(err) != apperr.KindUpstream {
		t.Fatalf("expected upstream error for empty audio, got %v", err)
	}

	blobs, _ := storage.NewFileStore(t.TempDir())
	synth := &fakeSynth{}
	m = New(failingPutStore{blobs}, synth, time.Second)
	if _, err := m.Resolve(ctx, "section/s1/foreign/x.mp3", "a", german); apperr.KindOf(err) != apperr.KindCacheIO {
		t.Fatalf("expected cache_io error, got %v", err)
	}
}

func TestSynthesisTimeout(t *testing.T) {
	blobs, _ := storage.NewFileStore(t.TempDir())
	m := New(blobs, &fakeSynth{delay: time.Second}, 20*time.Millisecond)
	_, err := m.Resolve(context.Background(), "section/s1/foreign/slow.mp3", "langsam", german)
	if apperr.KindOf(err) != apperr.KindUpstream || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected upstream deadline error, got %v", err)
	}
	if _, err := blobs.Get(context.Background(), "section/s1/foreign/slow.mp3"); !errors.Is(err, storage.ErrNotExist) {
		t.Fatalf("failed synthesis left a blob behind: %v", err)
	}
}
