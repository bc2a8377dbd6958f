package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"langu/internal/apperr"
	"langu/internal/audiocache"
	"langu/internal/deckimport"
	"langu/internal/util"
	"langu/pkg/domain"
	"langu/pkg/store"
)

const (
	maxDeckNameLen = 200
	maxTextLen     = 2000
)

// DeckInput is the payload for creating a deck.
type DeckInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	LanguageCode string `json:"languageCode"`
	LanguageName string `json:"languageName"`
}

// DeckPatch carries optional deck fields.
type DeckPatch struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	LanguageCode *string `json:"languageCode"`
	LanguageName *string `json:"languageName"`
}

// SectionInput is the payload for appending a section.
type SectionInput struct {
	ForeignText string `json:"foreignText"`
	EnglishText string `json:"englishText"`
}

// SectionPatch carries optional section texts.
type SectionPatch struct {
	ForeignText *string `json:"foreignText"`
	EnglishText *string `json:"englishText"`
}

// DeckDetail is a deck with its sections in position order.
type DeckDetail struct {
	domain.Deck
	Sections []domain.Section `json:"sections"`
}

// ImportReport summarizes a deck import.
type ImportReport struct {
	Deck    domain.Deck      `json:"deck"`
	Created []domain.Section `json:"created"`
	Skipped int              `json:"skipped"`
	Errors  []string         `json:"errors,omitempty"`
}

// CreateDeck stores a new, empty deck.
func (a *App) CreateDeck(ctx context.Context, in DeckInput) (domain.Deck, error) {
	const op = "create deck"
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Deck{}, apperr.Validation(op, "name required")
	}
	if utf8.RuneCountInString(name) > maxDeckNameLen {
		return domain.Deck{}, apperr.Validation(op, "name longer than %d characters", maxDeckNameLen)
	}
	code := strings.TrimSpace(in.LanguageCode)
	if code == "" {
		code = a.defaultLanguage
	}
	if !validLanguageCode(code) {
		return domain.Deck{}, apperr.Validation(op, "invalid language code %q", code)
	}
	langName := strings.TrimSpace(in.LanguageName)
	if langName == "" {
		langName = code
	}
	now := a.timestamp()
	deck := domain.Deck{
		ID:           util.NewID(),
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		LanguageCode: code,
		LanguageName: langName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateDeck(ctx, deck); err != nil {
		return domain.Deck{}, apperr.Internal(op, err)
	}
	return deck, nil
}

func (a *App) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	decks, err := a.store.ListDecks(ctx)
	if err != nil {
		return nil, apperr.Internal("list decks", err)
	}
	return decks, nil
}

// GetDeck returns the deck and its ordered sections.
func (a *App) GetDeck(ctx context.Context, id string) (DeckDetail, error) {
	const op = "get deck"
	deck, err := a.loadDeck(ctx, op, id)
	if err != nil {
		return DeckDetail{}, err
	}
	sections, err := a.store.ListSections(ctx, deck.ID)
	if err != nil {
		return DeckDetail{}, apperr.Internal(op, err)
	}
	return DeckDetail{Deck: deck, Sections: sections}, nil
}

func (a *App) UpdateDeck(ctx context.Context, id string, patch DeckPatch) (domain.Deck, error) {
	const op = "update deck"
	upd := store.DeckUpdate{Description: patch.Description, LanguageName: patch.LanguageName}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Deck{}, apperr.Validation(op, "name must not be empty")
		}
		if utf8.RuneCountInString(name) > maxDeckNameLen {
			return domain.Deck{}, apperr.Validation(op, "name longer than %d characters", maxDeckNameLen)
		}
		upd.Name = &name
	}
	if patch.LanguageCode != nil {
		code := strings.TrimSpace(*patch.LanguageCode)
		if !validLanguageCode(code) {
			return domain.Deck{}, apperr.Validation(op, "invalid language code %q", code)
		}
		upd.LanguageCode = &code
	}
	deck, err := a.store.UpdateDeck(ctx, id, upd)
	if err != nil {
		return domain.Deck{}, storeErr(op, deckEntity, err)
	}
	return deck, nil
}

// DeleteDeck removes the deck with its sections. Cached audio of the removed
// sections is dropped on a best-effort basis.
func (a *App) DeleteDeck(ctx context.Context, id string) error {
	removed, err := a.store.DeleteDeck(ctx, id)
	if err != nil {
		return storeErr("delete deck", deckEntity, err)
	}
	for _, section := range removed {
		a.dropAudio(ctx, audiocache.Owner{Kind: domain.OwnerSection, ID: section.ID})
	}
	return nil
}

// Playlist lists the deck's sections as foreign/english pairs in position
// order, with the URLs that resolve their audio.
func (a *App) Playlist(ctx context.Context, deckID string) ([]domain.PlaylistItem, error) {
	detail, err := a.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	items := make([]domain.PlaylistItem, 0, len(detail.Sections))
	for _, section := range detail.Sections {
		items = append(items, domain.PlaylistItem{
			SectionID:   section.ID,
			Position:    section.Position,
			ForeignText: section.ForeignText,
			EnglishText: section.EnglishText,
			PlayCount:   section.PlayCount,
			ForeignURL:  sectionAudioURL(section.ID, domain.VariantForeign),
			EnglishURL:  sectionAudioURL(section.ID, domain.VariantEnglish),
		})
	}
	return items, nil
}

// AddSection appends a section at the end of the deck.
func (a *App) AddSection(ctx context.Context, deckID string, in SectionInput) (domain.Section, domain.Deck, error) {
	const op = "add section"
	foreign, english, err := sectionTexts(op, in.ForeignText, in.EnglishText)
	if err != nil {
		return domain.Section{}, domain.Deck{}, err
	}
	now := a.timestamp()
	section, deck, err := a.store.CreateSection(ctx, domain.Section{
		ID:          util.NewID(),
		DeckID:      deckID,
		ForeignText: foreign,
		EnglishText: english,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Section{}, domain.Deck{}, storeErr(op, deckEntity, err)
	}
	return section, deck, nil
}

func (a *App) GetSection(ctx context.Context, id string) (domain.Section, error) {
	return a.loadSection(ctx, "get section", id)
}

// UpdateSection edits section texts. Cached audio of every edited side is
// invalidated before returning.
func (a *App) UpdateSection(ctx context.Context, id string, patch SectionPatch) (domain.Section, error) {
	const op = "update section"
	var upd store.SectionUpdate
	if patch.ForeignText != nil {
		text, err := checkText(op, "foreignText", *patch.ForeignText)
		if err != nil {
			return domain.Section{}, err
		}
		upd.ForeignText = &text
	}
	if patch.EnglishText != nil {
		text, err := checkText(op, "englishText", *patch.EnglishText)
		if err != nil {
			return domain.Section{}, err
		}
		upd.EnglishText = &text
	}
	before, err := a.loadSection(ctx, op, id)
	if err != nil {
		return domain.Section{}, err
	}
	after, err := a.store.UpdateSectionText(ctx, id, upd)
	if err != nil {
		return domain.Section{}, storeErr(op, sectionEntity, err)
	}

	owner := audiocache.Owner{Kind: domain.OwnerSection, ID: id}
	if after.ForeignText != before.ForeignText {
		if err := a.audio.Invalidate(ctx, owner, domain.VariantForeign); err != nil {
			return domain.Section{}, err
		}
	}
	if after.EnglishText != before.EnglishText {
		if err := a.audio.Invalidate(ctx, owner, domain.VariantEnglish); err != nil {
			return domain.Section{}, err
		}
	}
	return after, nil
}

// ReorderSections applies orderedIDs as the new position order.
func (a *App) ReorderSections(ctx context.Context, deckID string, orderedIDs []string) ([]domain.Section, error) {
	const op = "reorder sections"
	if _, err := a.loadDeck(ctx, op, deckID); err != nil {
		return nil, err
	}
	sections, err := a.store.ReorderSections(ctx, deckID, orderedIDs)
	if err != nil {
		return nil, storeErr(op, deckEntity, err)
	}
	return sections, nil
}

// DeleteSection removes a section, renumbers the rest and returns the deck
// with its recomputed play count.
func (a *App) DeleteSection(ctx context.Context, id string) (domain.Deck, error) {
	deck, err := a.store.DeleteSection(ctx, id)
	if err != nil {
		return domain.Deck{}, storeErr("delete section", sectionEntity, err)
	}
	a.dropAudio(ctx, audiocache.Owner{Kind: domain.OwnerSection, ID: id})
	return deck, nil
}

// RecordPlay counts one completed playback of a section and returns the
// section and its deck as stored afterwards.
func (a *App) RecordPlay(ctx context.Context, sectionID string) (domain.Section, domain.Deck, error) {
	section, deck, err := a.store.RecordSectionPlay(ctx, sectionID)
	if err != nil {
		return domain.Section{}, domain.Deck{}, storeErr("record play", sectionEntity, err)
	}
	return section, deck, nil
}

// SectionAudio returns the section's audio for variant, synthesizing it on a
// cache miss. An empty voice language falls back to the deck language for
// the foreign variant and to the English voice otherwise.
func (a *App) SectionAudio(ctx context.Context, sectionID string, variant domain.AudioVariant, voice domain.Voice) ([]byte, error) {
	const op = "section audio"
	target, err := a.sectionAudioTarget(ctx, op, sectionID, variant, voice)
	if err != nil {
		return nil, err
	}
	audio, key, err := a.audio.ResolveFor(ctx, target.owner, variant, target.text, target.voice)
	if err != nil {
		return nil, err
	}
	a.recordSectionAudio(ctx, target.section, variant, key)
	return audio, nil
}

// CachedSectionAudio is SectionAudio without synthesis: ok is false when the
// audio is not cached yet.
func (a *App) CachedSectionAudio(ctx context.Context, sectionID string, variant domain.AudioVariant, voice domain.Voice) ([]byte, bool, error) {
	const op = "section audio"
	target, err := a.sectionAudioTarget(ctx, op, sectionID, variant, voice)
	if err != nil {
		return nil, false, err
	}
	key := audiocache.Key(target.owner, variant, target.voice, target.text)
	audio, ok, err := a.audio.Lookup(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	a.recordSectionAudio(ctx, target.section, variant, key)
	return audio, true, nil
}

type sectionAudioTarget struct {
	section domain.Section
	owner   audiocache.Owner
	text    string
	voice   domain.Voice
}

func (a *App) sectionAudioTarget(ctx context.Context, op, sectionID string, variant domain.AudioVariant, voice domain.Voice) (sectionAudioTarget, error) {
	if variant != domain.VariantForeign && variant != domain.VariantEnglish {
		return sectionAudioTarget{}, apperr.Validation(op, "variant must be foreign or english")
	}
	section, err := a.loadSection(ctx, op, sectionID)
	if err != nil {
		return sectionAudioTarget{}, err
	}
	text := section.EnglishText
	if variant == domain.VariantForeign {
		text = section.ForeignText
		if strings.TrimSpace(voice.LanguageCode) == "" {
			deck, err := a.loadDeck(ctx, op, section.DeckID)
			if err != nil {
				return sectionAudioTarget{}, err
			}
			voice.LanguageCode = deck.LanguageCode
		}
	} else if strings.TrimSpace(voice.LanguageCode) == "" {
		voice.LanguageCode = a.englishVoice.LanguageCode
		if voice.Name == "" {
			voice.Name = a.englishVoice.Name
		}
	}
	if !validLanguageCode(voice.LanguageCode) {
		return sectionAudioTarget{}, apperr.Validation(op, "invalid language code %q", voice.LanguageCode)
	}
	return sectionAudioTarget{
		section: section,
		owner:   audiocache.Owner{Kind: domain.OwnerSection, ID: section.ID},
		text:    text,
		voice:   voice,
	}, nil
}

func (a *App) recordSectionAudio(ctx context.Context, section domain.Section, variant domain.AudioVariant, key string) {
	if variant != domain.VariantForeign || section.AudioPath == key {
		return
	}
	if err := a.store.SetSectionAudioPath(ctx, section.ID, key); err != nil {
		util.LoggerFromContext(ctx).Warn("record section audio path failed", "section_id", section.ID, "err", err)
	}
}

// ImportSections appends the phrase pairs found in a spreadsheet or CSV file
// to the deck, in file order.
func (a *App) ImportSections(ctx context.Context, deckID, filename string, r io.Reader) (ImportReport, error) {
	const op = "import sections"
	deck, err := a.loadDeck(ctx, op, deckID)
	if err != nil {
		return ImportReport{}, err
	}
	parsed, err := deckimport.Parse(filename, r, deckimport.DefaultConfig())
	if err != nil {
		return ImportReport{}, apperr.Wrap(apperr.KindValidation, op, err)
	}
	report := ImportReport{Deck: deck, Skipped: parsed.Skipped, Errors: parsed.Errors}
	for _, row := range parsed.Rows {
		foreign, english, err := sectionTexts(op, row.ForeignText, row.EnglishText)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %s", row.Line, apperrMessage(err)))
			continue
		}
		now := a.timestamp()
		section, updated, err := a.store.CreateSection(ctx, domain.Section{
			ID:          util.NewID(),
			DeckID:      deckID,
			ForeignText: foreign,
			EnglishText: english,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return report, storeErr(op, deckEntity, err)
		}
		report.Created = append(report.Created, section)
		report.Deck = updated
	}
	util.LoggerFromContext(ctx).Info("sections imported",
		"deck_id", deckID,
		"created", len(report.Created),
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (a *App) loadDeck(ctx context.Context, op, id string) (domain.Deck, error) {
	deck, ok, err := a.store.GetDeck(ctx, id)
	if err != nil {
		return domain.Deck{}, apperr.Internal(op, err)
	}
	if !ok {
		return domain.Deck{}, apperr.NotFound(op, deckEntity)
	}
	return deck, nil
}

func (a *App) loadSection(ctx context.Context, op, id string) (domain.Section, error) {
	section, ok, err := a.store.GetSection(ctx, id)
	if err != nil {
		return domain.Section{}, apperr.Internal(op, err)
	}
	if !ok {
		return domain.Section{}, apperr.NotFound(op, sectionEntity)
	}
	return section, nil
}

// dropAudio removes every cached artifact of owner. Failures only leave
// orphaned blobs behind, so they are logged.
func (a *App) dropAudio(ctx context.Context, owner audiocache.Owner) {
	if err := a.audio.InvalidateOwner(ctx, owner); err != nil {
		util.LoggerFromContext(ctx).Warn("drop cached audio failed",
			"owner_kind", owner.Kind,
			"owner_id", owner.ID,
			"err", err,
		)
	}
}

func sectionAudioURL(sectionID string, variant domain.AudioVariant) string {
	q := url.Values{"variant": {string(variant)}}
	return "/api/sections/" + url.PathEscape(sectionID) + "/audio?" + q.Encode()
}

func sectionTexts(op, foreign, english string) (string, string, error) {
	f, err := checkText(op, "foreignText", foreign)
	if err != nil {
		return "", "", err
	}
	e, err := checkText(op, "englishText", english)
	if err != nil {
		return "", "", err
	}
	return f, e, nil
}

func checkText(op, field, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.Validation(op, "%s required", field)
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return "", apperr.Validation(op, "%s longer than %d characters", field, maxTextLen)
	}
	return text, nil
}

// validLanguageCode accepts BCP-47 style tags such as "de", "de-DE" or
// "cmn-Hans-CN".
func validLanguageCode(code string) bool {
	if code == "" || len(code) > 35 {
		return false
	}
	for i, part := range strings.Split(code, "-") {
		if part == "" || len(part) > 8 {
			return false
		}
		for _, r := range part {
			isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			if !isLetter && (i == 0 || r < '0' || r > '9') {
				return false
			}
		}
	}
	return true
}

func apperrMessage(err error) string {
	if e, ok := err.(*apperr.Error); ok {
		return e.Message()
	}
	return err.Error()
}
