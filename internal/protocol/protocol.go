// Package protocol defines the messages exchanged over a game connection.
// Frames are binary websocket messages carrying UTF-8 JSON objects with a
// "type" discriminator.
package protocol

// Client -> server message types.
const (
	TypeInput = "input"
	TypePing  = "ping"
	TypeStart = "start"
)

// Server -> client message types.
const (
	TypeState     = "state"
	TypeJoined    = "joined"
	TypeLeft      = "left"
	TypeGameStart = "gameStart"
	TypeGameEnd   = "gameEnd"
	TypeError     = "error"
	TypePong      = "pong"
)

// Error codes carried by Error messages.
const (
	CodeRoomFull       = "ROOM_FULL"
	CodeRoundStale     = "ROUND_STALE"
	CodeServerShutdown = "SERVER_SHUTDOWN"
	CodeInternal       = "INTERNAL"
)

// MaxShotIDLen bounds the client correlation id of a shot, in characters.
const MaxShotIDLen = 80
