package signaling

import "encoding/json"

// Message types understood by the relay. Clients send the first five;
// the rest are server-to-client notifications.
const (
	TypeJoin         = "join"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeLeave        = "leave"

	TypeBroadcasterJoined = "broadcaster-joined"
	TypeUserJoined        = "user-joined"
	TypeParticipantsList  = "participants-list"
	TypeUserLeft          = "user-left"
	TypeSessionEnded      = "session-ended"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages. Every frame is a flat
// JSON object discriminated by Type; which other fields are present
// depends on the type.
type Message struct {
	Type          string `json:"type"`
	RoomID        string `json:"roomId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	UserName      string `json:"userName,omitempty"`
	IsBroadcaster bool   `json:"isBroadcaster,omitempty"`

	// Payload carries session descriptions and ICE candidates. The relay
	// never inspects it; it is forwarded byte-for-byte.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Participants is only set on participants-list messages.
	Participants []ParticipantInfo `json:"participants,omitempty"`

	// client is the client that sent the message.
	// It's used internally by the Hub and not sent over JSON.
	client *Client `json:"-"`
}

// ParticipantInfo is the membership snapshot entry sent in
// participants-list messages.
type ParticipantInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	IsBroadcaster bool   `json:"isBroadcaster"`
}
