package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hoot-im/hoot/internal/auth"
	"github.com/hoot-im/hoot/internal/contacts"
	"github.com/hoot-im/hoot/internal/docstore"
	"go.uber.org/zap"
)

// ErrNoSession is returned when a mutation is attempted while signed
// out.
var ErrNoSession = errors.New("no active session")

// Mutator performs all writes against the remote store: conversation
// creation, sends, like toggles, and batched deletes. It never mutates
// local view models ahead of store confirmation; failures leave state
// unchanged and are reported to the caller.
type Mutator struct {
	store  docstore.Store
	sess   *auth.Session
	logger *zap.Logger
}

// NewMutator creates a mutator bound to the given session.
func NewMutator(store docstore.Store, sess *auth.Session, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{store: store, sess: sess, logger: logger}
}

// GetOrCreateConversation resolves the deterministic conversation id
// for two participants, creating the conversation document on first
// contact. Idempotent: racing creators write identical content, so
// last-writer-wins is harmless.
func (m *Mutator) GetOrCreateConversation(ctx context.Context, participantA, participantB string) (string, error) {
	a := contacts.Normalize(participantA)
	b := contacts.Normalize(participantB)
	if a == "" || b == "" {
		return "", fmt.Errorf("participant has no digits: %q / %q", participantA, participantB)
	}

	id := ConversationID(a, b)
	doc, err := m.store.GetDocument(ctx, ConversationPath(id))
	if err != nil {
		return "", fmt.Errorf("look up conversation: %w", err)
	}
	if doc != nil {
		return id, nil
	}

	pair := []string{a, b}
	if pair[0] > pair[1] {
		pair[0], pair[1] = pair[1], pair[0]
	}
	if err := m.store.SetDocument(ctx, ConversationPath(id), map[string]any{
		"participants": pair,
	}); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	m.logger.Info("conversation created", zap.String("conversation_id", id))
	return id, nil
}

// SendMessage appends a message to the conversation. Text that is empty
// after trimming is dropped without touching the store. The timestamp
// is assigned by the store, liked starts false.
func (m *Mutator) SendMessage(ctx context.Context, conversationID, text string) error {
	if m.sess == nil {
		return ErrNoSession
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := m.store.AddDocument(ctx, MessagesCollection(conversationID), map[string]any{
		"text":      text,
		"senderId":  m.sess.UserID,
		"timestamp": docstore.ServerTimestamp,
		"liked":     false,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// ToggleLike flips a message's liked flag to the negation of the state
// the caller observed. If the message was deleted in the meantime the
// update lands on nothing and that is fine: delete wins the race.
func (m *Mutator) ToggleLike(ctx context.Context, conversationID, messageID string, currentLiked bool) error {
	if err := m.store.UpdateDocument(ctx, MessagePath(conversationID, messageID), map[string]any{
		"liked": !currentLiked,
	}); err != nil {
		return fmt.Errorf("toggle like: %w", err)
	}
	return nil
}

// DeleteSelected deletes the caller's own messages from the selection
// in a single all-or-nothing batch. Messages sent by someone else are
// silently skipped, not an error. Returns how many messages were
// actually deleted.
func (m *Mutator) DeleteSelected(ctx context.Context, conversationID string, messageIDs []string) (int, error) {
	if m.sess == nil {
		return 0, ErrNoSession
	}

	batch := m.store.Batch()
	owned := 0
	for _, id := range messageIDs {
		doc, err := m.store.GetDocument(ctx, MessagePath(conversationID, id))
		if err != nil {
			return 0, fmt.Errorf("read message %q: %w", id, err)
		}
		if doc == nil {
			// Already gone; nothing to delete.
			continue
		}
		if doc.String("senderId") != m.sess.UserID {
			m.logger.Debug("skipping delete of foreign message",
				zap.String("conversation_id", conversationID),
				zap.String("message_id", id))
			continue
		}
		batch.Delete(doc.Path)
		owned++
	}

	if owned == 0 {
		return 0, nil
	}
	if err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("delete selected: %w", err)
	}
	return owned, nil
}
