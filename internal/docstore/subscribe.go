package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hoot-im/hoot/internal/bus"
)

var errNoBus = errors.New("store opened without a notification bus")

// Subscribe opens a live subscription for a query. The initial snapshot
// and every subsequent change to the queried collection are delivered
// to onSnapshot asynchronously from a dedicated goroutine, so callbacks
// for one subscription never interleave. Failures to re-run the query
// are reported to onError and the subscription stays alive.
func (db *DB) Subscribe(q Query, onSnapshot func(Snapshot), onError func(error)) (func(), error) {
	if !validCollection(q.Path) {
		return nil, fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, q.Path)
	}
	if db.bus == nil {
		return nil, errNoBus
	}

	events, unsub := db.bus.Subscribe("doc.changed", 64)
	done := make(chan struct{})

	go func() {
		deliver := func() {
			snap, err := db.Fetch(context.Background(), q)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onSnapshot(snap)
		}

		deliver()
		for {
			select {
			case evt := <-events:
				if chg, ok := evt.Payload.(bus.DocChange); ok && chg.Collection != q.Path {
					continue
				}
				deliver()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			close(done)
		})
	}, nil
}
