package room

import (
	"errors"
	"log/slog"
	"time"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/game"
)

var (
	ErrRoomFull     = errors.New("room is full")
	ErrNotJoinable  = errors.New("room is not accepting players")
	ErrRoundStale   = errors.New("round already superseded")
	ErrClosed       = errors.New("room closed")
	ErrShuttingDown = errors.New("server shutting down")
)

type Status int32

const (
	StatusLobby Status = iota
	StatusRunning
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusLobby:
		return "lobby"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Conn is the room's view of a player connection. Send must not block; a
// false return means the frame was dropped.
type Conn interface {
	Send(frame []byte) bool
	Close(reason string)
}

// Observer is told about room lifecycle changes. Calls come from the room's
// loop and must return quickly. A rematch reuses the room id, so observers
// must tell rooms apart by id and round: the old round's RoomClosed can
// arrive after the new round's first RoomUpdated.
type Observer interface {
	RoomUpdated(info Info)
	RoomClosed(info Info)
}

// Observers fans every notification out to each observer in order.
type Observers []Observer

func (o Observers) RoomUpdated(info Info) {
	for _, ob := range o {
		ob.RoomUpdated(info)
	}
}

func (o Observers) RoomClosed(info Info) {
	for _, ob := range o {
		ob.RoomClosed(info)
	}
}

// Info is a point-in-time summary of a room.
type Info struct {
	ID      string
	Round   int
	Status  Status
	Players int
	Seed    uint32
}

type JoinRequest struct {
	RoomID   string
	PlayerID string
	Name     string
	Color    string
	Round    int
	Conn     Conn
}

type Options struct {
	Game         config.Game
	TickInterval time.Duration
	MaxPlayers   int
	EmptyGrace   time.Duration
	FinishedTTL  time.Duration
	Start        StartPolicy
	End          EndPolicy
	Logger       *slog.Logger
	Observer     Observer
	Now          func() time.Time
}

// OptionsFromConfig maps process configuration onto room options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	start := StartOnFirstRequest
	if cfg.StartPolicy == "all" {
		start = StartWhenAllReady
	}
	return Options{
		Game:         cfg.Game,
		TickInterval: cfg.TickInterval(),
		MaxPlayers:   cfg.MaxPlayers,
		EmptyGrace:   cfg.EmptyGrace,
		FinishedTTL:  cfg.FinishedTTL,
		Start:        start,
		End:          EndWhenAllDead(cfg.MatchDuration),
		Logger:       logger,
	}
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second / 30
	}
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = 8
	}
	if o.Start == nil {
		o.Start = StartOnFirstRequest
	}
	if o.End == nil {
		o.End = EndWhenAllDead(0)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Game.ViewportSize == 0 {
		o.Game = config.DefaultGame()
	}
	return o
}

// member is a player slot inside a room: the simulated ship plus its
// connection and the latest input.
type member struct {
	player *game.Player
	conn   Conn
	ready  bool

	input         game.Input
	pendingShot   bool
	pendingShotID string
}
