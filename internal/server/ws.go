package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/driftline/driftline/internal/protocol"
	"github.com/driftline/driftline/internal/room"
	"github.com/driftline/driftline/internal/session"
)

var errRoomMismatch = errors.New("room does not match token")

// handleWS admits a connection and runs it until either side closes.
// Admission failures are answered with a plain HTTP status; no websocket is
// created for them.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if err := s.origins.Check(r.Header.Get("Origin")); err != nil {
		s.reject(w, r, RejectOrigin, http.StatusForbidden, err)
		return
	}
	claims, err := s.verifier.VerifyToken(q.Get("token"))
	if err != nil {
		s.reject(w, r, RejectToken, http.StatusUnauthorized, err)
		return
	}
	roomID := q.Get("room")
	if roomID == "" || roomID != claims.RoomID {
		s.reject(w, r, RejectRoom, http.StatusBadRequest, errRoomMismatch)
		return
	}
	round := parseRound(q.Get("round"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin already checked against the allow-list
	})
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}
	conn.SetReadLimit(s.cfg.WSReadLimit)

	s.metrics.IncrWSConn()
	defer s.metrics.DecrWSConn()

	connID := uuid.NewString()
	base := s.logger.With("conn", connID, "room", roomID)
	logger := base.With("player", claims.UserID)
	c := newClient(connID, conn, logger, s.metrics.IncrSendDropped)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		c.writePump(ctx, s.cfg.WSPingInterval)
		close(writerDone)
	}()
	defer func() {
		c.Close("")
		<-writerDone
	}()

	rm, err := s.rooms.Join(ctx, room.JoinRequest{
		RoomID:   roomID,
		PlayerID: claims.UserID,
		Name:     claims.DisplayName,
		Color:    claims.Color,
		Round:    round,
		Conn:     c,
	})
	if err != nil {
		code, reason := joinFailure(err)
		s.metrics.IncrRejected(reason)
		logger.Info("join refused", "err", err, "round", round)
		c.Send(protocol.Encode(protocol.Error{Code: code, Message: err.Error()}))
		c.Close(code)
		return
	}
	logger.Info("connected", "round", rm.Round)

	sess := session.New(claims.UserID, rm, c, session.Options{
		ShotCooldown: s.cfg.Game.ShotCooldown,
		Logger:       base,
		OnDrop:       func(error) { s.metrics.IncrFrameDropped() },
	})
	go s.watchIdle(ctx, sess, c)

	c.readLoop(ctx, sess.HandleFrame)
	rm.Leave(claims.UserID, c)
	logger.Info("disconnected")
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, reason string, status int, err error) {
	s.metrics.IncrRejected(reason)
	s.logger.Info("upgrade rejected", "reason", reason, "status", status, "err", err, "remote", clientIP(r))
	http.Error(w, http.StatusText(status), status)
}

// watchIdle closes c once no valid message has arrived for IdleTimeout.
func (s *Server) watchIdle(ctx context.Context, sess *session.Session, c *Client) {
	timeout := s.cfg.IdleTimeout
	if timeout <= 0 {
		return
	}
	every := min(timeout/4, time.Second)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case now := <-t.C:
			if sess.Idle(now, timeout) {
				c.Close("idle timeout")
				return
			}
		}
	}
}

// parseRound reads the round query parameter: default 1, never below 1.
func parseRound(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func joinFailure(err error) (code, reason string) {
	switch {
	case errors.Is(err, room.ErrRoomFull), errors.Is(err, room.ErrNotJoinable):
		return protocol.CodeRoomFull, RejectFull
	case errors.Is(err, room.ErrRoundStale):
		return protocol.CodeRoundStale, RejectStale
	case errors.Is(err, room.ErrShuttingDown):
		return protocol.CodeServerShutdown, RejectShutdown
	default:
		return protocol.CodeInternal, "internal"
	}
}
