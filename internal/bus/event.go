package bus

import "time"

// Event is a notification published on the bus. Kind is a dot-separated
// name ("doc.changed", "auth.signed_in"); subscribers match on a prefix.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// DocChange is the payload for "doc.changed" events. It names the
// collection whose contents changed; subscribers re-query and deliver a
// full snapshot rather than interpreting the change itself.
type DocChange struct {
	Collection string
}
