package realtime

// Notifier builds change events and pushes them through the registry to the
// gents a change affects.
type Notifier struct {
	reg *Registry
}

// NewNotifier constructs a Notifier over the given registry.
func NewNotifier(reg *Registry) *Notifier {
	return &Notifier{reg: reg}
}

// GigsChanged broadcasts a gigs_changed event for gigID to every open
// connection of each affected gent. Best effort; it never blocks the caller
// on delivery and never reports failure.
func (n *Notifier) GigsChanged(gigID string, gentIDs ...string) {
	ev := Event{Type: EventGigsChanged, GigID: gigID}
	for _, id := range gentIDs {
		n.reg.Broadcast(id, ev)
	}
}
