package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"langu/pkg/domain"
)

const migrateLockID int64 = 51868133

// GormStore implements Store using GORM on Postgres or SQLite.
type GormStore struct {
	db       *gorm.DB
	postgres bool
}

// NewGormStore opens the DB named by dsn and runs auto-migrations. DSNs
// starting with "sqlite:" or "file:" select SQLite, everything else is
// handed to the Postgres driver.
func NewGormStore(dsn string) (*GormStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database dsn required")
	}
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector, isPostgres := openDialector(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &GormStore{db: db, postgres: isPostgres}

	if !isPostgres {
		// A single connection serialises writers and keeps shared-cache
		// in-memory databases alive.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		if err := migrate(db); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := migrate(tx); err != nil {
			return err
		}
		return ensureForeignKeys(tx)
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func openDialector(dsn string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), false
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), false
	default:
		return postgres.Open(dsn), true
	}
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&DeckModel{}, &SectionModel{}, &ConversationModel{}, &MessageModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func ensureForeignKeys(tx *gorm.DB) error {
	if err := tx.Exec(`
		DO $$
		BEGIN
			DELETE FROM section_models s
			WHERE NOT EXISTS (SELECT 1 FROM deck_models d WHERE d.id = s.deck_id);
			DELETE FROM message_models m
			WHERE NOT EXISTS (SELECT 1 FROM conversation_models c WHERE c.id = m.conversation_id);
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'section_models'
				AND constraint_name = 'section_models_deck_id_fkey'
			) THEN
				ALTER TABLE section_models
				ADD CONSTRAINT section_models_deck_id_fkey
				FOREIGN KEY (deck_id) REFERENCES deck_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'message_models'
				AND constraint_name = 'message_models_conversation_id_fkey'
			) THEN
				ALTER TABLE message_models
				ADD CONSTRAINT message_models_conversation_id_fkey
				FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("ensure foreign keys: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateDeck inserts a new deck.
func (s *GormStore) CreateDeck(ctx context.Context, deck domain.Deck) error {
	model := deckToModel(deck)
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetDeck retrieves a deck.
func (s *GormStore) GetDeck(ctx context.Context, id string) (domain.Deck, bool, error) {
	var model DeckModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Deck{}, false, nil
		}
		return domain.Deck{}, false, err
	}
	return deckFromModel(model), true, nil
}

// ListDecks returns all decks ordered by created_at.
func (s *GormStore) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	var models []DeckModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Deck, 0, len(models))
	for _, m := range models {
		res = append(res, deckFromModel(m))
	}
	return res, nil
}

// UpdateDeck applies the non-nil fields of upd.
func (s *GormStore) UpdateDeck(ctx context.Context, id string, upd DeckUpdate) (domain.Deck, error) {
	var out DeckModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"updated_at": time.Now().UTC()}
		if upd.Name != nil {
			updates["name"] = *upd.Name
		}
		if upd.Description != nil {
			updates["description"] = *upd.Description
		}
		if upd.LanguageCode != nil {
			updates["language_code"] = *upd.LanguageCode
		}
		if upd.LanguageName != nil {
			updates["language_name"] = *upd.LanguageName
		}
		res := tx.Model(&DeckModel{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return deckFromModel(out), nil
}

// DeleteDeck removes the deck and its sections in one transaction.
func (s *GormStore) DeleteDeck(ctx context.Context, id string) ([]domain.Section, error) {
	var removed []SectionModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deck_id = ?", id).Order("position ASC").Find(&removed).Error; err != nil {
			return err
		}
		if err := tx.Delete(&SectionModel{}, "deck_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&DeckModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sectionsFromModels(removed), nil
}

// CreateSection appends a section at the end of its deck and recomputes the
// deck play count.
func (s *GormStore) CreateSection(ctx context.Context, section domain.Section) (domain.Section, domain.Deck, error) {
	var (
		model SectionModel
		deck  DeckModel
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDeck(tx, section.DeckID, &deck); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&SectionModel{}).Where("deck_id = ?", section.DeckID).Count(&count).Error; err != nil {
			return err
		}
		model = sectionToModel(section)
		model.Position = int(count)
		model.PlayCount = 0
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		var err error
		deck, err = recomputeDeck(tx, section.DeckID)
		return err
	})
	if err != nil {
		return domain.Section{}, domain.Deck{}, err
	}
	return sectionFromModel(model), deckFromModel(deck), nil
}

// GetSection retrieves a section.
func (s *GormStore) GetSection(ctx context.Context, id string) (domain.Section, bool, error) {
	var model SectionModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Section{}, false, nil
		}
		return domain.Section{}, false, err
	}
	return sectionFromModel(model), true, nil
}

// ListSections returns a deck's sections ordered by position.
func (s *GormStore) ListSections(ctx context.Context, deckID string) ([]domain.Section, error) {
	var models []SectionModel
	if err := s.db.WithContext(ctx).Where("deck_id = ?", deckID).Order("position ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return sectionsFromModels(models), nil
}

// UpdateSectionText applies the non-nil texts of upd.
func (s *GormStore) UpdateSectionText(ctx context.Context, id string, upd SectionUpdate) (domain.Section, error) {
	var out SectionModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&out, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		updates := map[string]any{"updated_at": time.Now().UTC()}
		if upd.ForeignText != nil && *upd.ForeignText != out.ForeignText {
			updates["foreign_text"] = *upd.ForeignText
			updates["audio_path"] = ""
		}
		if upd.EnglishText != nil && *upd.EnglishText != out.EnglishText {
			updates["english_text"] = *upd.EnglishText
		}
		if err := tx.Model(&SectionModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return domain.Section{}, err
	}
	return sectionFromModel(out), nil
}

// SetSectionAudioPath records the last resolved foreign cache key.
func (s *GormStore) SetSectionAudioPath(ctx context.Context, id, audioPath string) error {
	res := s.db.WithContext(ctx).Model(&SectionModel{}).Where("id = ?", id).
		Update("audio_path", audioPath)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderSections assigns positions 0..N-1 following orderedIDs.
func (s *GormStore) ReorderSections(ctx context.Context, deckID string, orderedIDs []string) ([]domain.Section, error) {
	var out []SectionModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deck DeckModel
		if err := lockDeck(tx, deckID, &deck); err != nil {
			return err
		}
		var current []SectionModel
		if err := tx.Where("deck_id = ?", deckID).Find(&current).Error; err != nil {
			return err
		}
		if !isPermutation(current, orderedIDs) {
			return ErrInvalidOrder
		}
		now := time.Now().UTC()
		for pos, id := range orderedIDs {
			if err := tx.Model(&SectionModel{}).Where("id = ?", id).
				Updates(map[string]any{"position": pos, "updated_at": now}).Error; err != nil {
				return err
			}
		}
		return tx.Where("deck_id = ?", deckID).Order("position ASC").Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return sectionsFromModels(out), nil
}

func isPermutation(current []SectionModel, ids []string) bool {
	if len(current) != len(ids) {
		return false
	}
	want := make(map[string]struct{}, len(current))
	for _, m := range current {
		want[m.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := want[id]; !ok {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}

// DeleteSection removes a section, closes the position gap and recomputes
// the deck play count.
func (s *GormStore) DeleteSection(ctx context.Context, id string) (domain.Deck, error) {
	var deck DeckModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var section SectionModel
		if err := tx.First(&section, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := lockDeck(tx, section.DeckID, &deck); err != nil {
			return err
		}
		if err := tx.Delete(&SectionModel{}, "id = ?", id).Error; err != nil {
			return err
		}
		if err := renumber(tx, section.DeckID); err != nil {
			return err
		}
		var err error
		deck, err = recomputeDeck(tx, section.DeckID)
		return err
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return deckFromModel(deck), nil
}

// RecordSectionPlay increments the section play count and writes the new
// minimum to the deck, returning both rows as stored.
func (s *GormStore) RecordSectionPlay(ctx context.Context, id string) (domain.Section, domain.Deck, error) {
	var (
		section SectionModel
		deck    DeckModel
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&section, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := lockDeck(tx, section.DeckID, &deck); err != nil {
			return err
		}
		if err := tx.Model(&SectionModel{}).Where("id = ?", id).Updates(map[string]any{
			"play_count": gorm.Expr("play_count + 1"),
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		if err := tx.First(&section, "id = ?", id).Error; err != nil {
			return err
		}
		var err error
		deck, err = recomputeDeck(tx, section.DeckID)
		return err
	})
	if err != nil {
		return domain.Section{}, domain.Deck{}, err
	}
	return sectionFromModel(section), deckFromModel(deck), nil
}

// lockDeck loads the deck row FOR UPDATE so aggregate writes on one deck are
// serialised. SQLite ignores the locking clause.
func lockDeck(tx *gorm.DB, deckID string, out *DeckModel) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(out, "id = ?", deckID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func recomputeDeck(tx *gorm.DB, deckID string) (DeckModel, error) {
	var minCount sql.NullInt64
	if err := tx.Model(&SectionModel{}).Where("deck_id = ?", deckID).
		Select("MIN(play_count)").Row().Scan(&minCount); err != nil {
		return DeckModel{}, fmt.Errorf("min play count: %w", err)
	}
	playCount := 0
	if minCount.Valid {
		playCount = int(minCount.Int64)
	}
	if err := tx.Model(&DeckModel{}).Where("id = ?", deckID).Updates(map[string]any{
		"play_count": playCount,
		"updated_at": time.Now().UTC(),
	}).Error; err != nil {
		return DeckModel{}, err
	}
	var deck DeckModel
	if err := tx.First(&deck, "id = ?", deckID).Error; err != nil {
		return DeckModel{}, err
	}
	return deck, nil
}

func renumber(tx *gorm.DB, deckID string) error {
	var models []SectionModel
	if err := tx.Where("deck_id = ?", deckID).Order("position ASC").Find(&models).Error; err != nil {
		return err
	}
	for i, m := range models {
		if m.Position == i {
			continue
		}
		if err := tx.Model(&SectionModel{}).Where("id = ?", m.ID).Update("position", i).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateConversation creates a new conversation record.
func (s *GormStore) CreateConversation(ctx context.Context, conversation domain.Conversation) error {
	model := conversationToModel(conversation)
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetConversation returns one conversation by ID.
func (s *GormStore) GetConversation(ctx context.Context, id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversations returns conversations, most recently active first.
func (s *GormStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var models []ConversationModel
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(models))
	for _, model := range models {
		items = append(items, conversationFromModel(model))
	}
	return items, nil
}

// UpdateConversation applies the non-nil fields of upd.
func (s *GormStore) UpdateConversation(ctx context.Context, id string, upd ConversationUpdate) (domain.Conversation, error) {
	var out ConversationModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"updated_at": time.Now().UTC()}
		if upd.Title != nil {
			updates["title"] = *upd.Title
		}
		if upd.WordsFile != nil {
			updates["words_file"] = *upd.WordsFile
		}
		res := tx.Model(&ConversationModel{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conversationFromModel(out), nil
}

// TouchConversation bumps updated_at.
func (s *GormStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	res := s.db.WithContext(ctx).Model(&ConversationModel{}).Where("id = ?", id).
		Update("updated_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and its messages.
func (s *GormStore) DeleteConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&MessageModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&ConversationModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendMessage records a message.
func (s *GormStore) AppendMessage(ctx context.Context, msg domain.Message) error {
	model, err := messageToModel(msg)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetMessage returns one message by ID.
func (s *GormStore) GetMessage(ctx context.Context, id string) (domain.Message, bool, error) {
	var model MessageModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	msg, err := messageFromModel(model)
	if err != nil {
		return domain.Message{}, false, err
	}
	return msg, true, nil
}

// ListMessages returns a conversation's messages in chronological order.
// With limit > 0 only the most recent limit messages are returned (queried
// newest first, then reversed).
func (s *GormStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	var models []MessageModel
	if limit <= 0 {
		if err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
			Order("created_at ASC").
			Find(&models).Error; err != nil {
			return nil, err
		}
		msgs := make([]domain.Message, 0, len(models))
		for _, m := range models {
			msg, err := messageFromModel(m)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
		return msgs, nil
	}
	if err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msg, err := messageFromModel(models[i])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// SetMessageTranslation stores a translation unless one already exists.
func (s *GormStore) SetMessageTranslation(ctx context.Context, id, translation string) (domain.Message, error) {
	return s.fillMessage(ctx, id, "translation = ''", map[string]any{"translation": translation})
}

// SetMessageAudio stores the audio identity unless one already exists.
func (s *GormStore) SetMessageAudio(ctx context.Context, id, audioUUID, audioPath string) (domain.Message, error) {
	return s.fillMessage(ctx, id, "audio_path = ''", map[string]any{
		"audio_uuid": audioUUID,
		"audio_path": audioPath,
	})
}

func (s *GormStore) fillMessage(ctx context.Context, id, emptyCond string, updates map[string]any) (domain.Message, error) {
	var out MessageModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&MessageModel{}).Where("id = ?", id).Where(emptyCond).
			Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	return messageFromModel(out)
}

func deckToModel(d domain.Deck) DeckModel {
	return DeckModel{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		PlayCount:    d.PlayCount,
		LanguageCode: d.LanguageCode,
		LanguageName: d.LanguageName,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func deckFromModel(m DeckModel) domain.Deck {
	return domain.Deck{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		PlayCount:    m.PlayCount,
		LanguageCode: m.LanguageCode,
		LanguageName: m.LanguageName,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func sectionToModel(sec domain.Section) SectionModel {
	return SectionModel{
		ID:          sec.ID,
		DeckID:      sec.DeckID,
		ForeignText: sec.ForeignText,
		EnglishText: sec.EnglishText,
		AudioPath:   sec.AudioPath,
		Position:    sec.Position,
		PlayCount:   sec.PlayCount,
		CreatedAt:   sec.CreatedAt,
		UpdatedAt:   sec.UpdatedAt,
	}
}

func sectionFromModel(m SectionModel) domain.Section {
	return domain.Section{
		ID:          m.ID,
		DeckID:      m.DeckID,
		ForeignText: m.ForeignText,
		EnglishText: m.EnglishText,
		AudioPath:   m.AudioPath,
		Position:    m.Position,
		PlayCount:   m.PlayCount,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func sectionsFromModels(models []SectionModel) []domain.Section {
	res := make([]domain.Section, 0, len(models))
	for _, m := range models {
		res = append(res, sectionFromModel(m))
	}
	return res
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:        c.ID,
		Title:     c.Title,
		WordsFile: strings.TrimSpace(c.WordsFile),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:        m.ID,
		Title:     m.Title,
		WordsFile: m.WordsFile,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) (MessageModel, error) {
	var vocab []byte
	if len(msg.Vocabulary) > 0 {
		var err error
		if vocab, err = json.Marshal(msg.Vocabulary); err != nil {
			return MessageModel{}, fmt.Errorf("encode vocabulary of message %s: %w", msg.ID, err)
		}
	}
	var confidence *float64
	if msg.ConfidenceLevel != nil && msg.Role == domain.RoleAssistant {
		value := *msg.ConfidenceLevel
		confidence = &value
	}
	return MessageModel{
		ID:              msg.ID,
		ConversationID:  msg.ConversationID,
		Role:            string(msg.Role),
		Content:         msg.Content,
		ConfidenceLevel: confidence,
		Translation:     msg.Translation,
		AudioPath:       msg.AudioPath,
		AudioUUID:       msg.AudioUUID,
		Vocabulary:      vocab,
		CreatedAt:       msg.CreatedAt,
	}, nil
}

func messageFromModel(m MessageModel) (domain.Message, error) {
	var vocab []string
	if len(m.Vocabulary) > 0 {
		if err := json.Unmarshal(m.Vocabulary, &vocab); err != nil {
			return domain.Message{}, fmt.Errorf("decode vocabulary of message %s: %w", m.ID, err)
		}
	}
	return domain.Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		Role:            domain.Role(m.Role),
		Content:         m.Content,
		ConfidenceLevel: m.ConfidenceLevel,
		Translation:     m.Translation,
		AudioPath:       m.AudioPath,
		AudioUUID:       m.AudioUUID,
		Vocabulary:      vocab,
		CreatedAt:       m.CreatedAt,
	}, nil
}
