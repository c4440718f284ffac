// Package stream exposes one conversation's message log as a live,
// time-ordered sequence.
package stream

import (
	"fmt"

	"github.com/hoot-im/hoot/internal/chat"
	"github.com/hoot-im/hoot/internal/docstore"
	"go.uber.org/zap"
)

// Order selects the display ordering of a message stream.
type Order int

const (
	// Ascending is oldest-first, the natural reading order.
	Ascending Order = iota
	// Descending is most-recent-first rendering.
	Descending
)

// Adapter turns store subscriptions into message sequences.
type Adapter struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewAdapter creates a stream adapter.
func NewAdapter(store docstore.Store, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{store: store, logger: logger}
}

// Subscribe opens one live subscription to a conversation's message
// log. Every remote change (insert, like update, delete) re-delivers
// the complete current sequence to onUpdate in the requested order.
// A failing resnapshot degrades that one stream to empty instead of
// propagating. The returned disposer must be called exactly once;
// leaking it leaves a standing subscription behind.
func (a *Adapter) Subscribe(conversationID string, order Order, onUpdate func([]chat.Message)) (func(), error) {
	dir := docstore.Asc
	if order == Descending {
		dir = docstore.Desc
	}
	q := docstore.Collection(chat.MessagesCollection(conversationID)).OrderBy("timestamp", dir)

	unsub, err := a.store.Subscribe(q,
		func(snap docstore.Snapshot) {
			msgs := make([]chat.Message, 0, len(snap.Docs))
			for i := range snap.Docs {
				msgs = append(msgs, chat.MessageFromDoc(&snap.Docs[i]))
			}
			onUpdate(msgs)
		},
		func(err error) {
			a.logger.Warn("message stream degraded",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
			onUpdate(nil)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe to conversation %q: %w", conversationID, err)
	}
	return unsub, nil
}
