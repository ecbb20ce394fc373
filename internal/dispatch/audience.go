package dispatch

type audienceKind int

const (
	toConn audienceKind = iota
	toRoom
	toAll
	toUser
	toModerators
)

// Audience names the recipients of an outbound event. It is resolved to
// connections against the session registry at delivery time.
type Audience struct {
	kind   audienceKind
	id     string
	except string
}

// Conn targets a single connection.
func Conn(connID string) Audience { return Audience{kind: toConn, id: connID} }

// Room targets every connection in a channel, optionally skipping one.
func Room(channelID, except string) Audience {
	return Audience{kind: toRoom, id: channelID, except: except}
}

// All targets every authenticated connection.
func All() Audience { return Audience{kind: toAll} }

// User targets every connection of one user.
func User(userID string) Audience { return Audience{kind: toUser, id: userID} }

// Moderators targets every moderator connection.
func Moderators() Audience { return Audience{kind: toModerators} }

func (d *Dispatcher) resolve(a Audience) []string {
	var conns []string
	switch a.kind {
	case toConn:
		return []string{a.id}
	case toRoom:
		conns = d.registry.ConnectionsIn(a.id)
	case toAll:
		conns = d.registry.All()
	case toUser:
		conns = d.registry.ConnectionsOf(a.id)
	case toModerators:
		conns = d.registry.Moderators()
	}
	if a.except == "" {
		return conns
	}
	out := conns[:0]
	for _, c := range conns {
		if c != a.except {
			out = append(out, c)
		}
	}
	return out
}
