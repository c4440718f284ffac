// Package docstore defines the remote document-store contract the sync
// core consumes: path-addressed documents in collections, one-shot
// queries, live full-snapshot subscriptions, and batched deletes. The
// SQLite-backed DB in this package is the concrete collaborator used by
// the daemon; the core only depends on the Store interface.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for paths that do not address a document
// or collection (wrong segment parity, empty segments).
var ErrInvalidPath = errors.New("invalid document path")

// serverTimestamp is the sentinel type behind ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp is a sentinel field value replaced with the store's
// own clock (unix milliseconds) at write time. Clients never assign
// message timestamps themselves.
var ServerTimestamp = serverTimestamp{}

// Store is the consumed remote-service contract. All authoritative
// state lives behind it; the client holds only derived view models.
type Store interface {
	// Fetch runs a one-shot query and returns the full result snapshot.
	Fetch(ctx context.Context, q Query) (Snapshot, error)

	// Subscribe opens a live subscription for a query. Every remote
	// change to the queried collection re-delivers the complete current
	// snapshot to onSnapshot; delivery is asynchronous and unordered
	// across subscriptions. Query failures go to onError without
	// tearing the subscription down. The returned disposer must be
	// called exactly once when the subscriber's scope ends.
	Subscribe(q Query, onSnapshot func(Snapshot), onError func(error)) (func(), error)

	// AddDocument appends a document with a generated id and returns it.
	AddDocument(ctx context.Context, collection string, fields map[string]any) (string, error)

	// SetDocument writes a document at an explicit path, replacing any
	// existing content.
	SetDocument(ctx context.Context, path string, fields map[string]any) error

	// UpdateDocument merges partial fields into an existing document.
	// Updating a document that no longer exists is a silent no-op, so a
	// late like-toggle racing a delete cannot fail.
	UpdateDocument(ctx context.Context, path string, fields map[string]any) error

	// DeleteDocument removes a document.
	DeleteDocument(ctx context.Context, path string) error

	// GetDocument returns a document by path, or nil if absent.
	GetDocument(ctx context.Context, path string) (*Document, error)

	// Batch starts a write batch; its deletes commit all-or-nothing.
	Batch() WriteBatch
}

// WriteBatch accumulates deletes applied atomically on Commit.
type WriteBatch interface {
	Delete(path string)
	Commit(ctx context.Context) error
}

// splitDocPath splits a document path into its collection path and
// document id. Document paths have an even number of segments
// ("chats/<id>", "chats/<id>/messages/<id>").
func splitDocPath(path string) (collection, id string, err error) {
	segs := strings.Split(path, "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// validCollection reports whether path addresses a collection (odd
// number of non-empty segments).
func validCollection(path string) bool {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 1 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}
