package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/devXcant/lecture-learning-sphere/internal/config"
	"github.com/devXcant/lecture-learning-sphere/internal/signaling"
)

func newTestServer(t *testing.T) (*httptest.Server, *signaling.Hub) {
	t.Helper()

	cfg := config.Config{
		Addr:           ":0",
		AllowedOrigins: []string{"*"},
		ReapInterval:   time.Hour,
	}
	hub := signaling.NewHub(cfg.ReapInterval)
	go hub.Run()

	ts := httptest.NewServer(New(cfg, hub).Routes())
	t.Cleanup(ts.Close)
	return ts, hub
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) signaling.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg signaling.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

// expectMsg reads the next message and fails unless it has the wanted type.
func expectMsg(t *testing.T, conn *websocket.Conn, msgType string) signaling.Message {
	t.Helper()

	msg := readMsg(t, conn)
	if msg.Type != msgType {
		t.Fatalf("expected %s, got %s (%+v)", msgType, msg.Type, msg)
	}
	return msg
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg signaling.Message) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func waitForRooms(t *testing.T, hub *signaling.Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Snapshot().Rooms == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registry never reached %d rooms", want)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/ws", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Fatalf("allow-methods = %q", got)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "authorization") {
		t.Fatalf("allow-headers = %q", resp.Header.Get("Access-Control-Allow-Headers"))
	}
}

func TestNonUpgradeRequestRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("expected a JSON error body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected an error field, got %v", body)
	}
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// The connection must survive and still process a valid join.
	sendMsg(t, conn, signaling.Message{
		Type: signaling.TypeJoin, RoomID: "r1", UserID: "u1",
	})
	list := expectMsg(t, conn, signaling.TypeParticipantsList)
	if len(list.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %+v", list.Participants)
	}
}

// TestLectureScenario walks the broadcaster/listener lifecycle end to end
// over real websocket connections.
func TestLectureScenario(t *testing.T) {
	ts, hub := newTestServer(t)

	bcast := dialWS(t, ts)
	sendMsg(t, bcast, signaling.Message{
		Type: signaling.TypeJoin, RoomID: "r1", UserID: "bcast1",
		UserName: "Lecturer", IsBroadcaster: true,
	})
	list := expectMsg(t, bcast, signaling.TypeParticipantsList)
	if len(list.Participants) != 1 {
		t.Fatalf("expected 1 entry, got %+v", list.Participants)
	}

	stu := dialWS(t, ts)
	sendMsg(t, stu, signaling.Message{
		Type: signaling.TypeJoin, RoomID: "r1", UserID: "stu1", UserName: "Student",
	})

	joined := expectMsg(t, bcast, signaling.TypeUserJoined)
	if joined.UserID != "stu1" || joined.UserName != "Student" {
		t.Fatalf("unexpected user-joined: %+v", joined)
	}
	if list = expectMsg(t, bcast, signaling.TypeParticipantsList); len(list.Participants) != 2 {
		t.Fatalf("broadcaster expected 2 entries, got %+v", list.Participants)
	}
	if list = expectMsg(t, stu, signaling.TypeParticipantsList); len(list.Participants) != 2 {
		t.Fatalf("listener expected 2 entries, got %+v", list.Participants)
	}

	// An answer sent by the broadcaster routes to the broadcaster itself.
	sendMsg(t, bcast, signaling.Message{
		Type: signaling.TypeAnswer, RoomID: "r1", UserID: "bcast1",
		Payload: json.RawMessage(`{"type":"answer","sdp":""}`),
	})
	if msg := expectMsg(t, bcast, signaling.TypeAnswer); msg.UserID != "bcast1" {
		t.Fatalf("unexpected answer envelope: %+v", msg)
	}

	// Student disconnects abruptly; the broadcaster learns via user-left.
	stu.Close()
	left := expectMsg(t, bcast, signaling.TypeUserLeft)
	if left.UserID != "stu1" {
		t.Fatalf("user-left names %s, want stu1", left.UserID)
	}
	if s := hub.Snapshot(); s.Rooms != 1 || s.Participants != 1 {
		t.Fatalf("unexpected stats after student left: %+v", s)
	}

	// Broadcaster disconnects; the room disappears.
	bcast.Close()
	waitForRooms(t, hub, 0)
}

// TestSignalRoundTrip relays a real SDP negotiation generated by pion
// through the server: offer to the listener, answer back to the
// broadcaster, candidate fan-out.
func TestSignalRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	bcast := dialWS(t, ts)
	sendMsg(t, bcast, signaling.Message{
		Type: signaling.TypeJoin, RoomID: "lecture", UserID: "bcast1", IsBroadcaster: true,
	})
	expectMsg(t, bcast, signaling.TypeParticipantsList)

	stu := dialWS(t, ts)
	sendMsg(t, stu, signaling.Message{
		Type: signaling.TypeJoin, RoomID: "lecture", UserID: "stu1",
	})
	expectMsg(t, bcast, signaling.TypeUserJoined)
	expectMsg(t, bcast, signaling.TypeParticipantsList)
	expectMsg(t, stu, signaling.TypeParticipantsList)

	offerPC, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("peer connection: %v", err)
	}
	defer offerPC.Close()
	if _, err := offerPC.CreateDataChannel("signal", nil); err != nil {
		t.Fatalf("data channel: %v", err)
	}
	offer, err := offerPC.CreateOffer(nil)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	offerJSON, err := json.Marshal(offer)
	if err != nil {
		t.Fatalf("marshal offer: %v", err)
	}

	// The broadcaster targets the listener by putting its id in the
	// envelope (the relay forwards to the userId it carries).
	sendMsg(t, bcast, signaling.Message{
		Type: signaling.TypeOffer, RoomID: "lecture", UserID: "stu1",
		Payload: offerJSON,
	})

	got := expectMsg(t, stu, signaling.TypeOffer)
	var relayedOffer webrtc.SessionDescription
	if err := json.Unmarshal(got.Payload, &relayedOffer); err != nil {
		t.Fatalf("relayed offer is not a session description: %v", err)
	}
	if relayedOffer.SDP != offer.SDP {
		t.Fatal("offer SDP was not passed through unmodified")
	}

	answerPC, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("peer connection: %v", err)
	}
	defer answerPC.Close()
	if err := answerPC.SetRemoteDescription(relayedOffer); err != nil {
		t.Fatalf("set remote description: %v", err)
	}
	answer, err := answerPC.CreateAnswer(nil)
	if err != nil {
		t.Fatalf("create answer: %v", err)
	}
	answerJSON, err := json.Marshal(answer)
	if err != nil {
		t.Fatalf("marshal answer: %v", err)
	}

	sendMsg(t, stu, signaling.Message{
		Type: signaling.TypeAnswer, RoomID: "lecture", UserID: "stu1",
		Payload: answerJSON,
	})
	got = expectMsg(t, bcast, signaling.TypeAnswer)
	var relayedAnswer webrtc.SessionDescription
	if err := json.Unmarshal(got.Payload, &relayedAnswer); err != nil {
		t.Fatalf("relayed answer is not a session description: %v", err)
	}
	if relayedAnswer.SDP != answer.SDP {
		t.Fatal("answer SDP was not passed through unmodified")
	}

	// Broadcaster candidate fans out to the listener.
	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 192.0.2.1 54321 typ host","sdpMid":"0"}`)
	sendMsg(t, bcast, signaling.Message{
		Type: signaling.TypeICECandidate, RoomID: "lecture", UserID: "bcast1",
		Payload: candidate,
	})
	got = expectMsg(t, stu, signaling.TypeICECandidate)
	if string(got.Payload) != string(candidate) {
		t.Fatal("candidate payload was not passed through unmodified")
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	conn := dialWS(t, ts)
	sendMsg(t, conn, signaling.Message{
		Type: signaling.TypeJoin, RoomID: "r1", UserID: "u1",
	})
	expectMsg(t, conn, signaling.TypeParticipantsList)

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var stats signaling.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if stats.Rooms != 1 || stats.Participants != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.RoomSizes["r1"] != 1 {
		t.Fatalf("unexpected room sizes: %+v", stats.RoomSizes)
	}
}
