package signaling

// Participant is one member of a room: the connection it arrived on plus
// the identity it announced in its join message.
type Participant struct {
	// Client is the websocket connection wrapper for this participant.
	Client *Client

	// ID is the client-supplied user id, unique within the room.
	ID string

	// Name is the display name ("Anonymous" when the join omitted one).
	Name string

	// IsBroadcaster records the role the participant joined with. A
	// replaced broadcaster keeps this flag even after losing the room's
	// broadcaster slot.
	IsBroadcaster bool
}

// Room represents a single signaling namespace: one broadcaster streaming
// to any number of listeners.
type Room struct {
	// ID is the unique identifier for the room.
	ID string

	// Participants maps user id to participant. Rejoining with an
	// existing id overwrites the previous entry.
	Participants map[string]*Participant

	// Broadcaster points at the room's current broadcaster, or nil. It is
	// always an entry of Participants; the last participant to join with
	// isBroadcaster=true holds the slot.
	Broadcaster *Participant
}

func newRoom(id string) *Room {
	return &Room{
		ID:           id,
		Participants: make(map[string]*Participant),
	}
}

// snapshot returns the membership list sent in participants-list messages.
// Order follows map iteration and is not guaranteed.
func (r *Room) snapshot() []ParticipantInfo {
	list := make([]ParticipantInfo, 0, len(r.Participants))
	for _, p := range r.Participants {
		list = append(list, ParticipantInfo{
			ID:            p.ID,
			Name:          p.Name,
			IsBroadcaster: p.IsBroadcaster,
		})
	}
	return list
}

// isBroadcasterID reports whether id holds the room's broadcaster slot.
func (r *Room) isBroadcasterID(id string) bool {
	return r.Broadcaster != nil && r.Broadcaster.ID == id
}
