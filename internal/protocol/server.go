package protocol

import "encoding/json"

// ServerMessage is any message the server sends. stamped returns a copy with
// its type discriminator filled in.
type ServerMessage interface {
	stamped() any
}

type State struct {
	Type    string        `json:"type" jsonschema:"enum=state"`
	Payload WorldSnapshot `json:"payload"`
}

type Joined struct {
	Type     string `json:"type" jsonschema:"enum=joined"`
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
	Round    int    `json:"round"`
	Seed     uint32 `json:"seed"`
}

type Left struct {
	Type     string `json:"type" jsonschema:"enum=left"`
	PlayerID string `json:"playerId"`
}

type GameStart struct {
	Type string `json:"type" jsonschema:"enum=gameStart"`
}

type GameEnd struct {
	Type   string         `json:"type" jsonschema:"enum=gameEnd"`
	Scores map[string]int `json:"scores"`
	Reason string         `json:"reason,omitempty"`
}

type Error struct {
	Type    string `json:"type" jsonschema:"enum=error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Pong struct {
	Type       string  `json:"type" jsonschema:"enum=pong"`
	T          float64 `json:"t"`
	ServerTime int64   `json:"serverTime"`
}

func (m State) stamped() any     { m.Type = TypeState; return m }
func (m Joined) stamped() any    { m.Type = TypeJoined; return m }
func (m Left) stamped() any      { m.Type = TypeLeft; return m }
func (m GameStart) stamped() any { m.Type = TypeGameStart; return m }
func (m Error) stamped() any     { m.Type = TypeError; return m }
func (m Pong) stamped() any      { m.Type = TypePong; return m }

func (m GameEnd) stamped() any {
	m.Type = TypeGameEnd
	if m.Scores == nil {
		m.Scores = map[string]int{}
	}
	return m
}

var encodeFailure = []byte(`{"type":"error","code":"INTERNAL","message":"encode failed"}`)

// Encode serializes a server message. It always returns a frame: a value
// that cannot be marshaled (a NaN coordinate, say) becomes an INTERNAL error
// message instead.
func Encode(m ServerMessage) []byte {
	b, err := json.Marshal(m.stamped())
	if err != nil {
		return encodeFailure
	}
	return b
}
