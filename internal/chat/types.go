// Package chat holds the conversation domain model and the mutator
// that writes it to the remote store.
package chat

import (
	"sort"

	"github.com/hoot-im/hoot/internal/contacts"
	"github.com/hoot-im/hoot/internal/docstore"
)

// ConversationsCollection is the root collection holding conversation
// documents.
const ConversationsCollection = "chats"

// Conversation is a two-participant thread. Participants are normalized
// phone numbers.
type Conversation struct {
	ID           string
	Participants []string
}

// Message is one entry in a conversation's append-only log.
type Message struct {
	ID        string
	Text      string
	SenderID  string
	Timestamp int64
	Liked     bool
}

// ConversationID derives the deterministic conversation key for two
// participants: both numbers normalized, sorted, joined with "_". The
// same pair always yields the same id regardless of who initiates.
func ConversationID(a, b string) string {
	pair := []string{contacts.Normalize(a), contacts.Normalize(b)}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}

// ConversationPath returns the document path for a conversation.
func ConversationPath(conversationID string) string {
	return ConversationsCollection + "/" + conversationID
}

// MessagesCollection returns the message subcollection path for a
// conversation.
func MessagesCollection(conversationID string) string {
	return ConversationPath(conversationID) + "/messages"
}

// MessagePath returns the document path for a message.
func MessagePath(conversationID, messageID string) string {
	return MessagesCollection(conversationID) + "/" + messageID
}

// ConversationFromDoc decodes a conversation document.
func ConversationFromDoc(d *docstore.Document) Conversation {
	return Conversation{
		ID:           d.ID,
		Participants: d.Strings("participants"),
	}
}

// MessageFromDoc decodes a message document.
func MessageFromDoc(d *docstore.Document) Message {
	return Message{
		ID:        d.ID,
		Text:      d.String("text"),
		SenderID:  d.String("senderId"),
		Timestamp: d.Int64("timestamp"),
		Liked:     d.Bool("liked"),
	}
}

// HasParticipant reports whether the conversation includes the given
// normalized identifier.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID, in stored
// order.
func (c Conversation) OtherParticipants(userID string) []string {
	var others []string
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}
