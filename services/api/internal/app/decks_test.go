package app

import (
	"context"
	"strings"
	"testing"

	"langu/internal/apperr"
	"langu/pkg/domain"
)

func seedAppDeck(t *testing.T, env *testEnv, pairs ...string) (domain.Deck, []domain.Section) {
	t.Helper()
	ctx := context.Background()
	deck, err := env.app.CreateDeck(ctx, DeckInput{Name: "Basics", LanguageCode: "de-DE", LanguageName: "German"})
	if err != nil {
		t.Fatalf("create deck: %v", err)
	}
	var sections []domain.Section
	for i := 0; i+1 < len(pairs); i += 2 {
		section, updated, err := env.app.AddSection(ctx, deck.ID, SectionInput{ForeignText: pairs[i], EnglishText: pairs[i+1]})
		if err != nil {
			t.Fatalf("add section: %v", err)
		}
		sections = append(sections, section)
		deck = updated
	}
	return deck, sections
}

func TestCreateDeckValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.app.CreateDeck(ctx, DeckInput{Name: "  "})
	assertKind(t, err, apperr.KindValidation)
	_, err = env.app.CreateDeck(ctx, DeckInput{Name: "x", LanguageCode: "de_DE"})
	assertKind(t, err, apperr.KindValidation)

	deck, err := env.app.CreateDeck(ctx, DeckInput{Name: "Defaults"})
	if err != nil {
		t.Fatalf("create deck: %v", err)
	}
	if deck.LanguageCode != "de-DE" || deck.LanguageName != "de-DE" || deck.PlayCount != 0 {
		t.Fatalf("unexpected defaults: %+v", deck)
	}
}

func TestRecordPlayKeepsDeckMinimum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, sections := seedAppDeck(t, env, "eins", "one", "zwei", "two")
	s1, s2 := sections[0], sections[1]

	for i := 0; i < 3; i++ {
		if _, _, err := env.app.RecordPlay(ctx, s1.ID); err != nil {
			t.Fatalf("play s1: %v", err)
		}
	}
	if _, _, err := env.app.RecordPlay(ctx, s2.ID); err != nil {
		t.Fatalf("play s2: %v", err)
	}

	section, deck, err := env.app.RecordPlay(ctx, s1.ID)
	if err != nil {
		t.Fatalf("play s1: %v", err)
	}
	if section.PlayCount != 4 || deck.PlayCount != 1 {
		t.Fatalf("after s1: section %d deck %d, want 4 and 1", section.PlayCount, deck.PlayCount)
	}
	section, deck, err = env.app.RecordPlay(ctx, s2.ID)
	if err != nil {
		t.Fatalf("play s2: %v", err)
	}
	if section.PlayCount != 2 || deck.PlayCount != 2 {
		t.Fatalf("after s2: section %d deck %d, want 2 and 2", section.PlayCount, deck.PlayCount)
	}

	_, _, err = env.app.RecordPlay(ctx, "missing")
	assertKind(t, err, apperr.KindNotFound)
}

func TestSectionAudioCachesAndInvalidatesOnEdit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, sections := seedAppDeck(t, env, "Guten Tag", "Good day")
	id := sections[0].ID

	first, err := env.app.SectionAudio(ctx, id, domain.VariantForeign, domain.Voice{})
	if err != nil {
		t.Fatalf("foreign audio: %v", err)
	}
	second, err := env.app.SectionAudio(ctx, id, domain.VariantForeign, domain.Voice{})
	if err != nil {
		t.Fatalf("foreign audio again: %v", err)
	}
	if string(first) != string(second) || env.synth.count() != 1 {
		t.Fatalf("expected one synthesis and identical bytes, got %d calls", env.synth.count())
	}
	if !strings.Contains(string(first), "de-DE_default") {
		t.Fatalf("foreign side should use the deck language, got %q", first)
	}
	section, err := env.app.GetSection(ctx, id)
	if err != nil {
		t.Fatalf("get section: %v", err)
	}
	if section.AudioPath == "" {
		t.Fatalf("expected audio path to be recorded")
	}

	english, err := env.app.SectionAudio(ctx, id, domain.VariantEnglish, domain.Voice{})
	if err != nil {
		t.Fatalf("english audio: %v", err)
	}
	if !strings.Contains(string(english), "en-US") {
		t.Fatalf("english side should use the english voice, got %q", english)
	}

	text := "Guten Abend"
	updated, err := env.app.UpdateSection(ctx, id, SectionPatch{ForeignText: &text})
	if err != nil {
		t.Fatalf("update section: %v", err)
	}
	if updated.AudioPath != "" {
		t.Fatalf("foreign edit should clear audio path")
	}
	calls := env.synth.count()
	fresh, err := env.app.SectionAudio(ctx, id, domain.VariantForeign, domain.Voice{})
	if err != nil {
		t.Fatalf("foreign audio after edit: %v", err)
	}
	if env.synth.count() != calls+1 || !strings.Contains(string(fresh), "Guten Abend") {
		t.Fatalf("expected re-synthesis of the new text, got %q", fresh)
	}
	if _, err := env.app.SectionAudio(ctx, id, domain.VariantEnglish, domain.Voice{}); err != nil {
		t.Fatalf("english audio after edit: %v", err)
	}
	if env.synth.count() != calls+1 {
		t.Fatalf("english side was not edited and should stay cached")
	}

	_, err = env.app.SectionAudio(ctx, id, domain.VariantMessage, domain.Voice{})
	assertKind(t, err, apperr.KindValidation)
	_, err = env.app.SectionAudio(ctx, "missing", domain.VariantForeign, domain.Voice{})
	assertKind(t, err, apperr.KindNotFound)
}

func TestDeleteMiddleSectionRenumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deck, sections := seedAppDeck(t, env, "a", "A", "b", "B", "c", "C")
	if _, _, err := env.app.RecordPlay(ctx, sections[0].ID); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, _, err := env.app.RecordPlay(ctx, sections[2].ID); err != nil {
		t.Fatalf("play: %v", err)
	}

	updated, err := env.app.DeleteSection(ctx, sections[1].ID)
	if err != nil {
		t.Fatalf("delete section: %v", err)
	}
	if updated.PlayCount != 1 {
		t.Fatalf("deck play count %d, want 1", updated.PlayCount)
	}
	detail, err := env.app.GetDeck(ctx, deck.ID)
	if err != nil {
		t.Fatalf("get deck: %v", err)
	}
	if len(detail.Sections) != 2 || detail.Sections[0].Position != 0 || detail.Sections[1].Position != 1 {
		t.Fatalf("unexpected sections after delete: %+v", detail.Sections)
	}
	if detail.Sections[1].ID != sections[2].ID {
		t.Fatalf("order not preserved")
	}
}

func TestReorderSections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deck, sections := seedAppDeck(t, env, "a", "A", "b", "B")

	_, err := env.app.ReorderSections(ctx, deck.ID, []string{sections[0].ID})
	assertKind(t, err, apperr.KindValidation)
	_, err = env.app.ReorderSections(ctx, "missing", nil)
	assertKind(t, err, apperr.KindNotFound)

	reordered, err := env.app.ReorderSections(ctx, deck.ID, []string{sections[1].ID, sections[0].ID})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if reordered[0].ID != sections[1].ID || reordered[0].Position != 0 || reordered[1].Position != 1 {
		t.Fatalf("unexpected order %+v", reordered)
	}

	items, err := env.app.Playlist(ctx, deck.ID)
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if len(items) != 2 || items[0].SectionID != sections[1].ID {
		t.Fatalf("playlist should follow positions: %+v", items)
	}
	if items[0].ForeignURL != "/api/sections/"+sections[1].ID+"/audio?variant=foreign" {
		t.Fatalf("unexpected foreign url %q", items[0].ForeignURL)
	}
}

func TestDeleteDeckCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deck, sections := seedAppDeck(t, env, "a", "A")
	if _, err := env.app.SectionAudio(ctx, sections[0].ID, domain.VariantForeign, domain.Voice{}); err != nil {
		t.Fatalf("audio: %v", err)
	}
	if err := env.app.DeleteDeck(ctx, deck.ID); err != nil {
		t.Fatalf("delete deck: %v", err)
	}
	_, err := env.app.GetSection(ctx, sections[0].ID)
	assertKind(t, err, apperr.KindNotFound)
	err = env.app.DeleteDeck(ctx, deck.ID)
	assertKind(t, err, apperr.KindNotFound)
}

func TestImportSectionsFromCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deck, _ := seedAppDeck(t, env, "vorher", "before")

	data := "foreign,english\nHallo,Hello\n,\nTschüss,\nDanke,Thanks\n"
	report, err := env.app.ImportSections(ctx, deck.ID, "phrases.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.Created) != 2 {
		t.Fatalf("expected 2 sections, got %+v", report)
	}
	if report.Created[0].Position != 1 || report.Created[1].ForeignText != "Danke" {
		t.Fatalf("sections should be appended in file order: %+v", report.Created)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected one row error, got %v", report.Errors)
	}

	_, err = env.app.ImportSections(ctx, deck.ID, "phrases.pdf", strings.NewReader(data))
	assertKind(t, err, apperr.KindValidation)
	_, err = env.app.ImportSections(ctx, "missing", "phrases.csv", strings.NewReader(data))
	assertKind(t, err, apperr.KindNotFound)
}

func TestCachedSectionAudioNeverSynthesizes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, sections := seedAppDeck(t, env, "Danke", "Thanks")
	id := sections[0].ID

	if _, ok, err := env.app.CachedSectionAudio(ctx, id, domain.VariantEnglish, domain.Voice{}); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if env.synth.count() != 0 {
		t.Fatalf("lookup synthesized audio")
	}
	want, err := env.app.SectionAudio(ctx, id, domain.VariantEnglish, domain.Voice{})
	if err != nil {
		t.Fatalf("english audio: %v", err)
	}
	got, ok, err := env.app.CachedSectionAudio(ctx, id, domain.VariantEnglish, domain.Voice{})
	if err != nil || !ok || string(got) != string(want) {
		t.Fatalf("expected cached hit, got ok=%v err=%v", ok, err)
	}

	text := "Thank you"
	if _, err := env.app.UpdateSection(ctx, id, SectionPatch{EnglishText: &text}); err != nil {
		t.Fatalf("update section: %v", err)
	}
	if _, ok, _ := env.app.CachedSectionAudio(ctx, id, domain.VariantEnglish, domain.Voice{}); ok {
		t.Fatalf("edited text still reported as cached")
	}
	if env.synth.count() != 1 {
		t.Fatalf("synthesis calls = %d, want 1", env.synth.count())
	}
}
