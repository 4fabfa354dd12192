package signaling

import (
	"log/slog"
	"time"
)

// defaultReapInterval matches the hourly empty-room sweep of the original
// deployment.
const defaultReapInterval = time.Hour

// Hub is the central brain of the signaling relay.
// It owns all room state; every mutation and every routing decision
// happens on the single goroutine running Run, so no locks are needed.
type Hub struct {
	// Rooms maps room IDs to Room instances.
	Rooms map[string]*Room

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Inbound is the channel clients push parsed messages onto.
	// The hub dispatches them by type.
	Inbound chan *Message

	stats        chan chan Stats
	reapInterval time.Duration
}

// Stats is a point-in-time view of the registry, served by /stats.
type Stats struct {
	Rooms        int            `json:"rooms"`
	Participants int            `json:"participants"`
	RoomSizes    map[string]int `json:"roomSizes"`
}

// NewHub creates a new Hub instance. A non-positive reapEvery falls back
// to the hourly default.
func NewHub(reapEvery time.Duration) *Hub {
	if reapEvery <= 0 {
		reapEvery = defaultReapInterval
	}
	return &Hub{
		Rooms:        make(map[string]*Room),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		Inbound:      make(chan *Message),
		stats:        make(chan chan Stats),
		reapInterval: reapEvery,
	}
}

// Run starts the hub's main processing loop.
// This is the single goroutine that safely manages all state (rooms, clients).
func (h *Hub) Run() {
	reaper := time.NewTicker(h.reapInterval)
	defer reaper.Stop()

	for {
		select {
		// --- Client Register ---
		case client := <-h.Register:
			// The client is not in a room yet. They need to send a
			// "join" message first.
			slog.Info("client connected", "conn", client.ID)

		// --- Client Unregister ---
		case client := <-h.Unregister:
			h.disconnect(client)

		// --- Inbound Message ---
		case msg := <-h.Inbound:
			h.dispatch(msg)

		// --- Stats request ---
		case reply := <-h.stats:
			reply <- h.snapshotStats()

		// --- Empty-room sweep ---
		case <-reaper.C:
			h.reapEmptyRooms()
		}
	}
}

// Snapshot asks the hub goroutine for current registry counts. It blocks
// until Run services the request.
func (h *Hub) Snapshot() Stats {
	reply := make(chan Stats, 1)
	h.stats <- reply
	return <-reply
}

// dispatch is the core signaling logic: route one parsed client message.
func (h *Hub) dispatch(msg *Message) {
	slog.Debug("message received",
		"type", msg.Type, "room", msg.RoomID, "user", msg.UserID)

	switch msg.Type {
	case TypeJoin:
		h.handleJoin(msg)
	case TypeOffer:
		h.handleOffer(msg)
	case TypeAnswer:
		h.handleAnswer(msg)
	case TypeICECandidate:
		h.handleICECandidate(msg)
	case TypeLeave:
		h.handleLeave(msg.RoomID, msg.UserID)
	default:
		// Unknown (or missing) type: log and drop, never error back.
		slog.Warn("unknown message type", "type", msg.Type)
	}
}

// handleJoin registers a participant, creating the room on first use.
// Joining again with the same user id overwrites the old entry.
func (h *Hub) handleJoin(msg *Message) {
	room, ok := h.Rooms[msg.RoomID]
	if !ok {
		room = newRoom(msg.RoomID)
		h.Rooms[msg.RoomID] = room
		slog.Info("room created", "room", msg.RoomID)
	}

	name := msg.UserName
	if name == "" {
		name = "Anonymous"
	}

	p := &Participant{
		Client:        msg.client,
		ID:            msg.UserID,
		Name:          name,
		IsBroadcaster: msg.IsBroadcaster,
	}
	room.Participants[msg.UserID] = p

	if msg.IsBroadcaster {
		// The newest broadcaster takes the slot. A previous broadcaster
		// stays in the room and is not told about the replacement.
		room.Broadcaster = p

		// Tell everyone already in the room that a broadcaster arrived.
		for id, other := range room.Participants {
			if id == msg.UserID {
				continue
			}
			other.Client.queue(&Message{
				Type:   TypeBroadcasterJoined,
				RoomID: room.ID,
				UserID: msg.UserID,
			})
		}
	} else if room.Broadcaster != nil {
		// Tell the broadcaster so it can open a peer connection toward
		// the new listener.
		room.Broadcaster.Client.queue(&Message{
			Type:     TypeUserJoined,
			RoomID:   room.ID,
			UserID:   msg.UserID,
			UserName: name,
		})
	}

	// Everyone, joiner included, gets the authoritative membership list.
	list := room.snapshot()
	for _, member := range room.Participants {
		member.Client.queue(&Message{
			Type:         TypeParticipantsList,
			RoomID:       room.ID,
			Participants: list,
		})
	}

	// Remember where this connection lives so a disconnect can be turned
	// into a leave.
	msg.client.RoomID = msg.RoomID
	msg.client.UserID = msg.UserID

	slog.Info("user joined room",
		"room", room.ID, "user", msg.UserID, "broadcaster", msg.IsBroadcaster)
}

// handleOffer forwards a session description to the participant named by
// the envelope's userId.
func (h *Hub) handleOffer(msg *Message) {
	room, ok := h.Rooms[msg.RoomID]
	if !ok {
		return
	}

	target, ok := room.Participants[msg.UserID]
	if !ok {
		return
	}

	target.Client.queue(&Message{
		Type:    TypeOffer,
		RoomID:  msg.RoomID,
		UserID:  msg.UserID,
		Payload: msg.Payload,
	})
}

// handleAnswer forwards a session description to the room's broadcaster.
func (h *Hub) handleAnswer(msg *Message) {
	room, ok := h.Rooms[msg.RoomID]
	if !ok || room.Broadcaster == nil {
		return
	}

	room.Broadcaster.Client.queue(&Message{
		Type:    TypeAnswer,
		RoomID:  msg.RoomID,
		UserID:  msg.UserID,
		Payload: msg.Payload,
	})
}

// handleICECandidate routes a candidate by role: the broadcaster's
// candidates fan out to every listener, a listener's go to the broadcaster.
func (h *Hub) handleICECandidate(msg *Message) {
	room, ok := h.Rooms[msg.RoomID]
	if !ok {
		return
	}

	out := &Message{
		Type:    TypeICECandidate,
		RoomID:  msg.RoomID,
		UserID:  msg.UserID,
		Payload: msg.Payload,
	}

	if room.isBroadcasterID(msg.UserID) {
		for _, p := range room.Participants {
			if p.IsBroadcaster {
				continue
			}
			p.Client.queue(out)
		}
		return
	}

	if room.Broadcaster != nil {
		room.Broadcaster.Client.queue(out)
	}
}

// handleLeave removes a participant, explicit or synthesized from a
// disconnect. Unknown room or user is a no-op.
func (h *Hub) handleLeave(roomID, userID string) {
	room, ok := h.Rooms[roomID]
	if !ok {
		return
	}

	p, ok := room.Participants[userID]
	if !ok {
		return
	}

	delete(room.Participants, userID)

	// The active broadcaster leaving ends the session for everyone and
	// tears the room down. A replaced broadcaster is treated as a
	// listener here.
	if p.IsBroadcaster && room.isBroadcasterID(userID) {
		for _, rest := range room.Participants {
			rest.Client.queue(&Message{
				Type:   TypeSessionEnded,
				RoomID: roomID,
			})
		}
		delete(h.Rooms, roomID)
		slog.Info("session ended, room deleted", "room", roomID, "user", userID)
		return
	}

	if room.Broadcaster != nil {
		room.Broadcaster.Client.queue(&Message{
			Type:   TypeUserLeft,
			RoomID: roomID,
			UserID: userID,
		})
	}

	if len(room.Participants) == 0 {
		delete(h.Rooms, roomID)
		slog.Info("room deleted", "room", roomID)
	}

	slog.Info("user left room", "room", roomID, "user", userID)
}

// disconnect turns an abrupt connection close into a leave for whatever
// room the client last joined, then shuts down its write pump.
func (h *Hub) disconnect(client *Client) {
	slog.Info("client disconnected", "conn", client.ID)

	if client.RoomID != "" && client.UserID != "" {
		h.handleLeave(client.RoomID, client.UserID)
	}

	// Close the client's send channel to stop its WritePump. Mark it
	// first so any stale membership entry can no longer be routed to.
	client.closed = true
	close(client.Send)
}

// reapEmptyRooms sweeps the registry for rooms every path already tried
// to delete. Rooms with members are never aged out.
func (h *Hub) reapEmptyRooms() {
	for id, room := range h.Rooms {
		if len(room.Participants) == 0 {
			delete(h.Rooms, id)
			slog.Info("reaped empty room", "room", id)
		}
	}
}

func (h *Hub) snapshotStats() Stats {
	s := Stats{RoomSizes: make(map[string]int, len(h.Rooms))}
	for id, room := range h.Rooms {
		s.Rooms++
		s.Participants += len(room.Participants)
		s.RoomSizes[id] = len(room.Participants)
	}
	return s
}
