package docstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hoot-im/hoot/internal/bus"
)

func testStore(t *testing.T) (*DB, *bus.Bus) {
	t.Helper()
	b := bus.New()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, b
}

func TestAddAndGetDocument(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	id, err := db.AddDocument(ctx, "chats/c1/messages", map[string]any{
		"text":      "hello",
		"senderId":  "5551234567",
		"timestamp": ServerTimestamp,
		"liked":     false,
	})
	if err != nil {
		t.Fatal(err)
	}

	doc, err := db.GetDocument(ctx, "chats/c1/messages/"+id)
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil {
		t.Fatal("document not found after add")
	}
	if doc.String("text") != "hello" || doc.Bool("liked") {
		t.Errorf("fields = %#v, want text=hello liked=false", doc.Fields)
	}
	if doc.Int64("timestamp") == 0 {
		t.Error("server timestamp was not assigned")
	}
}

func TestGetDocumentAbsent(t *testing.T) {
	db, _ := testStore(t)
	doc, err := db.GetDocument(context.Background(), "chats/nope")
	if err != nil {
		t.Fatal(err)
	}
	if doc != nil {
		t.Errorf("got %#v, want nil for absent document", doc)
	}
}

func TestSetDocumentReplaces(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	if err := db.SetDocument(ctx, "chats/c1", map[string]any{"participants": []string{"111", "222"}, "extra": true}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetDocument(ctx, "chats/c1", map[string]any{"participants": []string{"111", "222"}}); err != nil {
		t.Fatal(err)
	}

	doc, err := db.GetDocument(ctx, "chats/c1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Fields["extra"]; ok {
		t.Error("set did not replace previous content")
	}
	if got := doc.Strings("participants"); len(got) != 2 || got[0] != "111" {
		t.Errorf("participants = %v", got)
	}
}

func TestUpdateDocumentMerges(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	if err := db.SetDocument(ctx, "chats/c1/messages/m1", map[string]any{"text": "hi", "liked": false}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateDocument(ctx, "chats/c1/messages/m1", map[string]any{"liked": true}); err != nil {
		t.Fatal(err)
	}

	doc, _ := db.GetDocument(ctx, "chats/c1/messages/m1")
	if !doc.Bool("liked") || doc.String("text") != "hi" {
		t.Errorf("fields = %#v, want liked=true text=hi", doc.Fields)
	}
}

func TestUpdateAbsentDocumentIsNoOp(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	// A like-toggle losing a race against delete must not error and
	// must not resurrect the document.
	if err := db.UpdateDocument(ctx, "chats/c1/messages/gone", map[string]any{"liked": true}); err != nil {
		t.Fatalf("update of absent document: %v", err)
	}
	doc, _ := db.GetDocument(ctx, "chats/c1/messages/gone")
	if doc != nil {
		t.Error("update resurrected a deleted document")
	}
}

func TestFetchOrderLimit(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	for i, ts := range []int64{300, 100, 200} {
		path := "chats/c1/messages/m" + string(rune('a'+i))
		if err := db.SetDocument(ctx, path, map[string]any{"timestamp": ts}); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := db.Fetch(ctx, Collection("chats/c1/messages").OrderBy("timestamp", Desc).Limit(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(snap.Docs))
	}
	if snap.Docs[0].Int64("timestamp") != 300 || snap.Docs[1].Int64("timestamp") != 200 {
		t.Errorf("order = %d,%d, want 300,200",
			snap.Docs[0].Int64("timestamp"), snap.Docs[1].Int64("timestamp"))
	}
}

func TestFetchWhereEquality(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	_ = db.SetDocument(ctx, "chats/c1/messages/m1", map[string]any{"senderId": "111", "timestamp": int64(1)})
	_ = db.SetDocument(ctx, "chats/c1/messages/m2", map[string]any{"senderId": "222", "timestamp": int64(2)})

	snap, err := db.Fetch(ctx, Collection("chats/c1/messages").Where("senderId", "111"))
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Docs) != 1 || snap.Docs[0].String("senderId") != "111" {
		t.Errorf("filter result = %+v, want single doc from 111", snap.Docs)
	}
}

func TestSubscribeDeliversResnapshots(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	snaps := make(chan Snapshot, 16)
	unsub, err := db.Subscribe(Collection("chats/c1/messages").OrderBy("timestamp", Asc),
		func(s Snapshot) { snaps <- s }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	// Initial snapshot, before any writes.
	select {
	case s := <-snaps:
		if len(s.Docs) != 0 {
			t.Fatalf("initial snapshot has %d docs, want 0", len(s.Docs))
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for initial snapshot")
	}

	if _, err := db.AddDocument(ctx, "chats/c1/messages", map[string]any{"text": "hello", "timestamp": ServerTimestamp}); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-snaps:
		if len(s.Docs) != 1 || s.Docs[0].String("text") != "hello" {
			t.Fatalf("snapshot = %+v, want one doc text=hello", s.Docs)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for resnapshot after add")
	}
}

func TestSubscribeIgnoresOtherCollections(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	snaps := make(chan Snapshot, 16)
	unsub, err := db.Subscribe(Collection("chats/c1/messages"), func(s Snapshot) { snaps <- s }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	<-snaps // initial

	if _, err := db.AddDocument(ctx, "chats/c2/messages", map[string]any{"text": "elsewhere"}); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-snaps:
		t.Errorf("unexpected snapshot for unrelated collection: %+v", s.Docs)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	snaps := make(chan Snapshot, 16)
	unsub, err := db.Subscribe(Collection("chats/c1/messages"), func(s Snapshot) { snaps <- s }, nil)
	if err != nil {
		t.Fatal(err)
	}
	<-snaps // initial
	unsub()
	unsub() // second call must be harmless

	if _, err := db.AddDocument(ctx, "chats/c1/messages", map[string]any{"text": "late"}); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-snaps:
		t.Errorf("snapshot delivered after unsubscribe: %+v", s.Docs)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBatchDeleteAtomic(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	_ = db.SetDocument(ctx, "chats/c1/messages/m1", map[string]any{"text": "one"})
	_ = db.SetDocument(ctx, "chats/c1/messages/m2", map[string]any{"text": "two"})

	batch := db.Batch()
	batch.Delete("chats/c1/messages/m1")
	batch.Delete("chats/c1/messages/m2")
	if err := batch.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	snap, _ := db.Fetch(ctx, Collection("chats/c1/messages"))
	if len(snap.Docs) != 0 {
		t.Errorf("got %d docs after batch delete, want 0", len(snap.Docs))
	}
}

func TestBatchRejectsBadPathBeforeDeleting(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	_ = db.SetDocument(ctx, "chats/c1/messages/m1", map[string]any{"text": "one"})

	batch := db.Batch()
	batch.Delete("chats/c1/messages/m1")
	batch.Delete("not-a-doc-path/") // invalid: empty segment
	if err := batch.Commit(ctx); err == nil {
		t.Fatal("commit with invalid path succeeded")
	}

	// All-or-nothing: the valid delete must not have been applied.
	doc, _ := db.GetDocument(ctx, "chats/c1/messages/m1")
	if doc == nil {
		t.Error("batch was partially applied")
	}
}

func TestInvalidPaths(t *testing.T) {
	db, _ := testStore(t)
	ctx := context.Background()

	if err := db.SetDocument(ctx, "chats", nil); err == nil {
		t.Error("set on collection path succeeded")
	}
	if _, err := db.AddDocument(ctx, "chats/c1", nil); err == nil {
		t.Error("add on document path succeeded")
	}
	if _, err := db.Fetch(ctx, Collection("chats/c1")); err == nil {
		t.Error("fetch on document path succeeded")
	}
}
