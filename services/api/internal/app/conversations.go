package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"langu/internal/apperr"
	"langu/internal/audiocache"
	"langu/internal/util"
	"langu/pkg/ai"
	"langu/pkg/domain"
	"langu/pkg/store"
	"langu/pkg/words"
)

const (
	maxTitleLen     = 200
	maxUtteranceLen = 4000
	maxTopics       = 20
)

const defaultInstruction = `You are a patient conversation partner for a beginner (CEFR A1-A2) practising %s.
Reply only in %s with short, simple sentences and everyday vocabulary from the most common 1000 words.
Ask one follow-up question per reply to keep the conversation going.
If the learner makes a mistake, repeat the corrected phrase naturally in your reply without lecturing.`

const relevantWordsInstruction = `You are a patient conversation partner for a beginner (CEFR A1-A2) practising %s.
Reply only in %s with short, simple sentences.
Prefer words from this list whenever they fit the conversation:
%s
Ask one follow-up question per reply to keep the conversation going.
If the learner makes a mistake, repeat the corrected phrase naturally in your reply without lecturing.`

const translationInstruction = `Translate the user's text into English.
Return only the translation, without quotes, notes or explanations.`

// ConversationInput is the payload for starting a conversation.
type ConversationInput struct {
	Title     string `json:"title"`
	WordsFile string `json:"wordsFile"`
}

type ConversationPatch struct {
	Title     *string `json:"title"`
	WordsFile *string `json:"wordsFile"`
}

// ConversationDetail is a conversation with its messages in chronological
// order.
type ConversationDetail struct {
	domain.Conversation
	Messages []domain.Message `json:"messages"`
}

// PhraseScore is the vocabulary coverage of a phrase.
type PhraseScore struct {
	Phrase     string  `json:"phrase"`
	Percentage float64 `json:"percentage"`
	Score      string  `json:"score"`
}

// StartConversation creates an empty conversation.
func (a *App) StartConversation(ctx context.Context, in ConversationInput) (domain.Conversation, error) {
	const op = "start conversation"
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultConversationTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return domain.Conversation{}, apperr.Validation(op, "title longer than %d characters", maxTitleLen)
	}
	wordsFile, err := a.checkWordsFile(op, in.WordsFile)
	if err != nil {
		return domain.Conversation{}, err
	}
	now := a.timestamp()
	conversation := domain.Conversation{
		ID:        util.NewID(),
		Title:     title,
		WordsFile: wordsFile,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateConversation(ctx, conversation); err != nil {
		return domain.Conversation{}, apperr.Internal(op, err)
	}
	return conversation, nil
}

// ListConversations returns conversations, most recently active first.
func (a *App) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	items, err := a.store.ListConversations(ctx)
	if err != nil {
		return nil, apperr.Internal("list conversations", err)
	}
	return items, nil
}

func (a *App) GetConversation(ctx context.Context, id string) (ConversationDetail, error) {
	const op = "get conversation"
	conversation, err := a.loadConversation(ctx, op, id)
	if err != nil {
		return ConversationDetail{}, err
	}
	messages, err := a.store.ListMessages(ctx, id, 0)
	if err != nil {
		return ConversationDetail{}, apperr.Internal(op, err)
	}
	return ConversationDetail{Conversation: conversation, Messages: messages}, nil
}

func (a *App) UpdateConversation(ctx context.Context, id string, patch ConversationPatch) (domain.Conversation, error) {
	const op = "update conversation"
	var upd store.ConversationUpdate
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domain.Conversation{}, apperr.Validation(op, "title must not be empty")
		}
		if utf8.RuneCountInString(title) > maxTitleLen {
			return domain.Conversation{}, apperr.Validation(op, "title longer than %d characters", maxTitleLen)
		}
		upd.Title = &title
	}
	if patch.WordsFile != nil {
		wordsFile, err := a.checkWordsFile(op, *patch.WordsFile)
		if err != nil {
			return domain.Conversation{}, err
		}
		upd.WordsFile = &wordsFile
	}
	conversation, err := a.store.UpdateConversation(ctx, id, upd)
	if err != nil {
		return domain.Conversation{}, storeErr(op, conversationEntity, err)
	}
	return conversation, nil
}

// DeleteConversation removes the conversation, its messages and their
// cached audio.
func (a *App) DeleteConversation(ctx context.Context, id string) error {
	const op = "delete conversation"
	if _, err := a.loadConversation(ctx, op, id); err != nil {
		return err
	}
	messages, err := a.store.ListMessages(ctx, id, 0)
	if err != nil {
		return apperr.Internal(op, err)
	}
	if err := a.store.DeleteConversation(ctx, id); err != nil {
		return storeErr(op, conversationEntity, err)
	}
	for _, msg := range messages {
		if msg.AudioPath != "" {
			a.dropAudio(ctx, audiocache.Owner{Kind: domain.OwnerMessage, ID: msg.ID})
		}
	}
	return nil
}

// AdvanceConversation runs one turn: the utterance is stored, the bounded
// history and an instruction are sent to the completion provider, and the
// scored reply is stored. When the provider fails the user message stays and
// no assistant message is written.
func (a *App) AdvanceConversation(ctx context.Context, conversationID, utterance string) (domain.Turn, error) {
	const op = "advance conversation"
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return domain.Turn{}, apperr.Validation(op, "message content required")
	}
	if utf8.RuneCountInString(utterance) > maxUtteranceLen {
		return domain.Turn{}, apperr.Validation(op, "message longer than %d characters", maxUtteranceLen)
	}
	conversation, err := a.loadConversation(ctx, op, conversationID)
	if err != nil {
		return domain.Turn{}, err
	}

	logger := util.LoggerFromContext(ctx).With("conversation_id", conversationID)
	userMsg := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        utterance,
		CreatedAt:      a.timestamp(),
	}
	if err := a.store.AppendMessage(ctx, userMsg); err != nil {
		return domain.Turn{}, apperr.Internal(op, fmt.Errorf("save user message: %w", err))
	}
	if err := a.store.TouchConversation(ctx, conversationID, userMsg.CreatedAt); err != nil {
		return domain.Turn{}, apperr.Internal(op, fmt.Errorf("touch conversation: %w", err))
	}
	logger = logger.With("turn_id", userMsg.ID)
	logger.Debug("turn created")

	history, err := a.recentHistory(ctx, conversationID, userMsg.ID)
	if err != nil {
		return domain.Turn{}, apperr.Internal(op, fmt.Errorf("load history: %w", err))
	}
	instruction, vocabulary := a.buildInstruction(ctx, conversation, history, utterance)
	logger.Debug("turn context built", "history", len(history), "vocabulary", len(vocabulary))

	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: instruction})
	for _, msg := range history {
		messages = append(messages, ai.ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: string(domain.RoleUser), Content: utterance})

	logger.Debug("turn completion requested")
	reply, err := a.completer.Complete(ctx, messages, ai.Options{Temperature: a.temperature})
	if err != nil {
		logger.Debug("turn failed", "err", err)
		logger.Warn("completion failed", "err", err)
		return domain.Turn{}, apperr.Upstream(op, err)
	}
	reply = strings.TrimSpace(reply)
	logger.Debug("turn succeeded", "reply_len", len(reply))

	confidence := a.scoreReply(ctx, reply, conversation.WordsFile)
	logger.Debug("turn scored", "scored", confidence != nil)

	assistantAt := a.timestamp()
	assistantMsg := domain.Message{
		ID:              util.NewID(),
		ConversationID:  conversationID,
		Role:            domain.RoleAssistant,
		Content:         reply,
		ConfidenceLevel: confidence,
		Vocabulary:      vocabulary,
		CreatedAt:       assistantAt,
	}
	if err := a.store.AppendMessage(ctx, assistantMsg); err != nil {
		return domain.Turn{}, apperr.Internal(op, fmt.Errorf("save assistant message: %w", err))
	}
	if err := a.store.TouchConversation(ctx, conversationID, assistantAt); err != nil {
		return domain.Turn{}, apperr.Internal(op, fmt.Errorf("touch conversation: %w", err))
	}
	logger.Debug("turn persisted")
	return domain.Turn{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// recentHistory returns up to historyWindow messages before excludeID in
// chronological order.
func (a *App) recentHistory(ctx context.Context, conversationID, excludeID string) ([]domain.Message, error) {
	recent, err := a.store.ListMessages(ctx, conversationID, a.historyWindow+1)
	if err != nil {
		return nil, err
	}
	history := make([]domain.Message, 0, len(recent))
	for _, msg := range recent {
		if msg.ID != excludeID {
			history = append(history, msg)
		}
	}
	if len(history) > a.historyWindow {
		history = history[len(history)-a.historyWindow:]
	}
	return history, nil
}

// buildInstruction asks the word service for vocabulary related to the
// conversation. Any failure falls back to the default instruction.
func (a *App) buildInstruction(ctx context.Context, conversation domain.Conversation, history []domain.Message, utterance string) (string, []string) {
	language := a.defaultLanguage
	fallback := fmt.Sprintf(defaultInstruction, language, language)

	parts := make([]string, 0, len(history)+2)
	if conversation.Title != "" && conversation.Title != defaultConversationTitle {
		parts = append(parts, conversation.Title)
	}
	for _, msg := range history {
		parts = append(parts, msg.Content)
	}
	if len(parts) == 0 {
		return fallback, nil
	}
	parts = append(parts, utterance)

	relevant, err := a.words.RelevantWords(ctx, strings.Join(parts, "\n"), a.topK, conversation.WordsFile)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("relevant words unavailable, using default instruction",
			"conversation_id", conversation.ID,
			"err", err,
		)
		return fallback, nil
	}
	if len(relevant) == 0 {
		return fallback, nil
	}
	return fmt.Sprintf(relevantWordsInstruction, language, language, strings.Join(relevant, ", ")), relevant
}

func (a *App) scoreReply(ctx context.Context, reply, wordsFile string) *float64 {
	result, err := a.words.ValidatePhrase(ctx, reply, wordsFile)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("phrase validation unavailable", "err", err)
		return nil
	}
	pct := result.Percentage
	return &pct
}

// TranslateMessage returns the message with an English translation, asking
// the completion provider only the first time.
func (a *App) TranslateMessage(ctx context.Context, id string) (domain.Message, error) {
	const op = "translate message"
	msg, err := a.loadMessage(ctx, op, id)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.Translation != "" {
		return msg, nil
	}
	translation, err := a.completer.Complete(ctx, []ai.ChatMessage{
		{Role: "system", Content: translationInstruction},
		{Role: "user", Content: msg.Content},
	}, ai.Options{Temperature: 0})
	if err != nil {
		return domain.Message{}, apperr.Upstream(op, err)
	}
	translation = strings.TrimSpace(translation)
	if translation == "" {
		return domain.Message{}, apperr.Upstream(op, ai.ErrEmptyReply)
	}
	stored, err := a.store.SetMessageTranslation(ctx, id, translation)
	if err != nil {
		return domain.Message{}, storeErr(op, messageEntity, err)
	}
	return stored, nil
}

// MessageAudio resolves spoken audio for a message. The first call assigns
// the message its audio id and records where the artifact lives.
func (a *App) MessageAudio(ctx context.Context, id string, voice domain.Voice) ([]byte, domain.Message, error) {
	const op = "message audio"
	msg, err := a.loadMessage(ctx, op, id)
	if err != nil {
		return nil, domain.Message{}, err
	}
	if strings.TrimSpace(voice.LanguageCode) == "" {
		voice.LanguageCode = a.defaultLanguage
	}
	if !validLanguageCode(voice.LanguageCode) {
		return nil, domain.Message{}, apperr.Validation(op, "invalid language code %q", voice.LanguageCode)
	}
	owner := audiocache.Owner{Kind: domain.OwnerMessage, ID: msg.ID}
	audio, key, err := a.audio.ResolveFor(ctx, owner, domain.VariantMessage, msg.Content, voice)
	if err != nil {
		return nil, domain.Message{}, err
	}
	if msg.AudioUUID == "" {
		msg, err = a.store.SetMessageAudio(ctx, msg.ID, uuid.NewString(), key)
		if err != nil {
			return nil, domain.Message{}, storeErr(op, messageEntity, err)
		}
	}
	return audio, msg, nil
}

// ListWordsFiles lists the curated word lists a conversation can use.
func (a *App) ListWordsFiles(ctx context.Context) ([]string, error) {
	if a.wordsDir == "" {
		return []string{}, nil
	}
	files, err := words.ListFiles(a.wordsDir)
	if err != nil {
		return nil, apperr.Internal("list words files", err)
	}
	return files, nil
}

// SuggestWords returns curated words grouped under the given topics.
func (a *App) SuggestWords(ctx context.Context, topics []string, perTopic int, wordsFile string) ([]string, error) {
	const op = "suggest words"
	cleaned := make([]string, 0, len(topics))
	for _, topic := range topics {
		if topic = strings.TrimSpace(topic); topic != "" {
			cleaned = append(cleaned, topic)
		}
	}
	if len(cleaned) == 0 {
		return nil, apperr.Validation(op, "at least one topic required")
	}
	if len(cleaned) > maxTopics {
		return nil, apperr.Validation(op, "at most %d topics allowed", maxTopics)
	}
	if perTopic <= 0 {
		perTopic = words.DefaultWordsPerTopic
	}
	wordsFile, err := a.checkWordsFile(op, wordsFile)
	if err != nil {
		return nil, err
	}
	suggestions, err := a.words.WordsByTopics(ctx, cleaned, perTopic, wordsFile)
	if err != nil {
		return nil, apperr.Upstream(op, err)
	}
	return suggestions, nil
}

// ValidatePhrase scores how much of phrase is covered by the curated list.
func (a *App) ValidatePhrase(ctx context.Context, phrase, wordsFile string) (PhraseScore, error) {
	const op = "validate phrase"
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return PhraseScore{}, apperr.Validation(op, "phrase required")
	}
	wordsFile, err := a.checkWordsFile(op, wordsFile)
	if err != nil {
		return PhraseScore{}, err
	}
	result, err := a.words.ValidatePhrase(ctx, phrase, wordsFile)
	if err != nil {
		return PhraseScore{}, apperr.Upstream(op, err)
	}
	score := result.Score
	if score == "" {
		score = words.ScoreLabel(result.Percentage)
	}
	return PhraseScore{Phrase: phrase, Percentage: result.Percentage, Score: score}, nil
}

func (a *App) loadConversation(ctx context.Context, op, id string) (domain.Conversation, error) {
	conversation, ok, err := a.store.GetConversation(ctx, id)
	if err != nil {
		return domain.Conversation{}, apperr.Internal(op, err)
	}
	if !ok {
		return domain.Conversation{}, apperr.NotFound(op, conversationEntity)
	}
	return conversation, nil
}

func (a *App) loadMessage(ctx context.Context, op, id string) (domain.Message, error) {
	msg, ok, err := a.store.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, apperr.Internal(op, err)
	}
	if !ok {
		return domain.Message{}, apperr.NotFound(op, messageEntity)
	}
	return msg, nil
}

// checkWordsFile trims name and, when a words directory is configured,
// requires the list to exist there.
func (a *App) checkWordsFile(op, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || a.wordsDir == "" {
		return name, nil
	}
	ok, err := words.HasFile(a.wordsDir, name)
	if err != nil {
		return "", apperr.Internal(op, err)
	}
	if !ok {
		return "", apperr.Validation(op, "unknown words file %q", name)
	}
	return name, nil
}
