// Package chatlist aggregates the conversation collection and each
// conversation's latest message into the sorted, searchable chat-list
// view model.
package chatlist

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/hoot-im/hoot/internal/auth"
	"github.com/hoot-im/hoot/internal/chat"
	"github.com/hoot-im/hoot/internal/contacts"
	"github.com/hoot-im/hoot/internal/docstore"
	"go.uber.org/zap"
)

// NoMessagesPlaceholder is rendered for a conversation whose last
// message is still pending or missing.
const NoMessagesPlaceholder = "No messages yet."

// ErrAlreadySubscribed is returned when SubscribeList is called while a
// previous subscription is still live.
var ErrAlreadySubscribed = errors.New("chat list already subscribed")

// Entry is one derived chat-list row. Never persisted; recomputed on
// every change of the underlying collection or a tracked last message.
type Entry struct {
	ConversationID       string
	ParticipantNames     []string
	LastMessageText      string
	LastMessageTimestamp int64
	HasMessages          bool
}

// innerSub is one nested last-message subscription, keyed by
// conversation id in the registry and reconciled against every outer
// snapshot.
type innerSub struct {
	unsub     func()
	last      *chat.Message
	delivered bool
	failed    bool
}

// Aggregator joins conversation metadata with nested last-message
// subscriptions for the current user's conversations.
type Aggregator struct {
	store  docstore.Store
	dir    *contacts.Directory
	sess   *auth.Session
	logger *zap.Logger

	mu         sync.Mutex
	convs      map[string]chat.Conversation
	inner      map[string]*innerSub
	onUpdate   func([]Entry)
	search     string
	outerUnsub func()
	active     bool
}

// New creates an aggregator bound to a session and identity directory.
func New(store docstore.Store, dir *contacts.Directory, sess *auth.Session, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		store:  store,
		dir:    dir,
		sess:   sess,
		logger: logger,
	}
}

// SubscribeList opens the outer subscription to the conversation
// collection and starts delivering chat-list snapshots to onUpdate.
// The returned disposer releases the outer subscription and every
// nested one; it must be called exactly once when the owning scope
// ends.
func (a *Aggregator) SubscribeList(onUpdate func([]Entry)) (func(), error) {
	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	a.active = true
	a.convs = make(map[string]chat.Conversation)
	a.inner = make(map[string]*innerSub)
	a.onUpdate = onUpdate
	a.mu.Unlock()

	unsub, err := a.store.Subscribe(docstore.Collection(chat.ConversationsCollection),
		a.handleOuter, a.handleOuterError)
	if err != nil {
		a.mu.Lock()
		a.active = false
		a.mu.Unlock()
		return nil, err
	}

	a.mu.Lock()
	a.outerUnsub = unsub
	a.mu.Unlock()

	var once sync.Once
	return func() { once.Do(a.teardown) }, nil
}

// Search installs a case-insensitive substring filter over participant
// display names and re-emits the filtered list. No subscriptions are
// touched; an empty term clears the filter.
func (a *Aggregator) Search(term string) {
	a.mu.Lock()
	a.search = term
	entries, deliver := a.snapshotLocked()
	a.mu.Unlock()
	if deliver != nil {
		deliver(entries)
	}
}

// Snapshot returns the current filtered chat list without waiting for
// the next delivery.
func (a *Aggregator) Snapshot() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	entries, _ := a.snapshotLocked()
	return entries
}

// handleOuter reconciles the nested-subscription registry against a new
// outer snapshot: open handles for newly seen conversations, close
// handles for conversations no longer retained, leave the rest alone.
func (a *Aggregator) handleOuter(snap docstore.Snapshot) {
	a.mu.Lock()

	next := make(map[string]chat.Conversation)
	for i := range snap.Docs {
		conv := chat.ConversationFromDoc(&snap.Docs[i])
		if a.sess == nil || !conv.HasParticipant(a.sess.UserID) {
			continue
		}
		next[conv.ID] = conv
	}

	for id, sub := range a.inner {
		if _, keep := next[id]; keep {
			continue
		}
		if sub.unsub != nil {
			sub.unsub()
		}
		delete(a.inner, id)
	}

	for id := range next {
		if _, open := a.inner[id]; open {
			continue
		}
		a.openInnerLocked(id)
	}

	a.convs = next
	entries, deliver := a.snapshotLocked()
	a.mu.Unlock()

	if deliver != nil {
		deliver(entries)
	}
}

func (a *Aggregator) handleOuterError(err error) {
	a.logger.Warn("chat list subscription degraded", zap.Error(err))
}

// openInnerLocked opens the nested last-message subscription for one
// conversation. The registry entry is installed before the subscription
// so its first asynchronous delivery always finds it.
func (a *Aggregator) openInnerLocked(id string) {
	sub := &innerSub{}
	a.inner[id] = sub

	q := docstore.Collection(chat.MessagesCollection(id)).
		OrderBy("timestamp", docstore.Desc).
		Limit(1)
	unsub, err := a.store.Subscribe(q,
		func(snap docstore.Snapshot) { a.handleInner(id, snap) },
		func(err error) { a.handleInnerError(id, err) },
	)
	if err != nil {
		a.logger.Warn("last-message subscription failed",
			zap.String("conversation_id", id), zap.Error(err))
		sub.failed = true
		return
	}
	sub.unsub = unsub
}

func (a *Aggregator) handleInner(id string, snap docstore.Snapshot) {
	a.mu.Lock()
	sub, open := a.inner[id]
	if !open {
		// Stale delivery for a conversation already reconciled away.
		a.mu.Unlock()
		return
	}
	sub.delivered = true
	sub.failed = false
	sub.last = nil
	if len(snap.Docs) > 0 {
		m := chat.MessageFromDoc(&snap.Docs[0])
		sub.last = &m
	}
	entries, deliver := a.snapshotLocked()
	a.mu.Unlock()

	if deliver != nil {
		deliver(entries)
	}
}

// handleInnerError degrades one entry to its placeholder; siblings and
// the outer subscription are untouched.
func (a *Aggregator) handleInnerError(id string, err error) {
	a.logger.Warn("last-message subscription degraded",
		zap.String("conversation_id", id), zap.Error(err))

	a.mu.Lock()
	sub, open := a.inner[id]
	if !open {
		a.mu.Unlock()
		return
	}
	sub.failed = true
	sub.last = nil
	entries, deliver := a.snapshotLocked()
	a.mu.Unlock()

	if deliver != nil {
		deliver(entries)
	}
}

// snapshotLocked recomputes the filtered, sorted view model. Caller
// holds the mutex; delivery happens after release via the returned
// callback.
func (a *Aggregator) snapshotLocked() ([]Entry, func([]Entry)) {
	entries := make([]Entry, 0, len(a.convs))
	for id, conv := range a.convs {
		names := make([]string, 0, 1)
		for _, p := range conv.OtherParticipants(a.sess.UserID) {
			names = append(names, a.dir.Resolve(p))
		}
		if len(names) == 0 {
			names = append(names, contacts.Unknown)
		}

		e := Entry{
			ConversationID:   id,
			ParticipantNames: names,
			LastMessageText:  NoMessagesPlaceholder,
		}
		if sub := a.inner[id]; sub != nil && sub.delivered && !sub.failed && sub.last != nil {
			e.LastMessageText = sub.last.Text
			e.LastMessageTimestamp = sub.last.Timestamp
			e.HasMessages = true
		}
		if a.matchesSearch(e) {
			entries = append(entries, e)
		}
	}

	// Newest conversation first; placeholder entries carry the minimum
	// timestamp and land after every conversation with real messages.
	// Id ascending on ties keeps the order deterministic.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastMessageTimestamp != entries[j].LastMessageTimestamp {
			return entries[i].LastMessageTimestamp > entries[j].LastMessageTimestamp
		}
		return entries[i].ConversationID < entries[j].ConversationID
	})

	return entries, a.onUpdate
}

func (a *Aggregator) matchesSearch(e Entry) bool {
	if a.search == "" {
		return true
	}
	needle := strings.ToLower(a.search)
	for _, name := range e.ParticipantNames {
		if strings.Contains(strings.ToLower(name), needle) {
			return true
		}
	}
	return false
}

// teardown releases the outer subscription and every nested one.
func (a *Aggregator) teardown() {
	a.mu.Lock()
	outer := a.outerUnsub
	inners := make([]func(), 0, len(a.inner))
	for _, sub := range a.inner {
		if sub.unsub != nil {
			inners = append(inners, sub.unsub)
		}
	}
	a.convs = nil
	a.inner = map[string]*innerSub{}
	a.onUpdate = nil
	a.outerUnsub = nil
	a.active = false
	a.mu.Unlock()

	if outer != nil {
		outer()
	}
	for _, unsub := range inners {
		unsub()
	}
}
