package realtime

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/vigia-social/vigia/models"
)

// Registry maps a user identity to the set of its live connections. A user
// may hold several connections at once (multi-device); a user with none has
// no entry at all. All mutation goes through Compute on the underlying
// concurrent map, so register/unregister are safe under arbitrary
// interleaving of connection lifecycles.
type Registry struct {
	conns *xsync.MapOf[models.Uid, []Connection]
}

func NewRegistry() *Registry {
	return &Registry{
		conns: xsync.NewMapOf[models.Uid, []Connection](),
	}
}

// Register adds the connection to its user's set, creating the entry if
// needed. No limit is enforced on concurrent connections per user.
func (r *Registry) Register(conn Connection) {
	r.conns.Compute(conn.UserID(), func(old []Connection, _ bool) ([]Connection, bool) {
		set := make([]Connection, 0, len(old)+1)
		set = append(set, old...)
		set = append(set, conn)
		return set, false
	})
	liveConnections.Inc()
}

// Unregister removes the connection from its user's set, dropping the entry
// entirely when the set empties. Unregistering a connection that was never
// registered, or was already removed, is a no-op.
func (r *Registry) Unregister(conn Connection) {
	removed := false
	r.conns.Compute(conn.UserID(), func(old []Connection, loaded bool) ([]Connection, bool) {
		if !loaded {
			return nil, true
		}
		set := make([]Connection, 0, len(old))
		for _, c := range old {
			if c.ID() == conn.ID() {
				removed = true
				continue
			}
			set = append(set, c)
		}
		if len(set) == 0 {
			return nil, true
		}
		return set, false
	})
	if removed {
		liveConnections.Dec()
	}
}

// ConnectionsFor returns a snapshot of the user's live connections. Callers
// iterate over the copy, never the live set. Unknown users yield an empty
// result.
func (r *Registry) ConnectionsFor(uid models.Uid) []Connection {
	set, ok := r.conns.Load(uid)
	if !ok {
		return nil
	}
	out := make([]Connection, len(set))
	copy(out, set)
	return out
}

// ConnectedUsers returns the identities that currently hold at least one
// connection.
func (r *Registry) ConnectedUsers() []models.Uid {
	var uids []models.Uid
	r.conns.Range(func(uid models.Uid, _ []Connection) bool {
		uids = append(uids, uid)
		return true
	})
	return uids
}

// TotalConnections counts live connections across all users.
func (r *Registry) TotalConnections() int {
	total := 0
	r.conns.Range(func(_ models.Uid, set []Connection) bool {
		total += len(set)
		return true
	})
	return total
}
