package session

import (
	"time"

	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session/chat"
	"github.com/mcdev12/priceguess/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// roomScoped reports whether an event only makes sense inside the room it
// was sent for.
func roomScoped(t events.EventType) bool {
	switch t {
	case events.EventTypeError, events.EventTypeRoomFull, events.EventTypeBanned:
		return false
	}
	return true
}

// forCurrentRoom reports whether ev belongs to the active room.
func (s *Store) forCurrentRoom(ev events.Event) bool {
	if s.room.RoomID == "" {
		return false
	}
	return ev.RoomID == "" || ev.RoomID == s.room.RoomID
}

// staleLocked reports whether a round-tagged event refers to a round other
// than the current one.
func (s *Store) staleLocked(ev events.Event, payloadRound string) bool {
	token := ev.Round
	if token == "" {
		token = payloadRound
	}
	if s.round.IsStale(token) {
		log.Debug().
			Str("event_type", string(ev.Type)).
			Str("round", token).
			Str("current_round", s.round.Token()).
			Msg("discarding stale event")
		return true
	}
	return false
}

// reduceLocked applies a parsed event. Must be called with mu held.
func (s *Store) reduceLocked(ev events.Event, payload interface{}, c *change) {
	if roomScoped(ev.Type) && !s.forCurrentRoom(ev) {
		log.Debug().
			Str("event_type", string(ev.Type)).
			Str("room_id", ev.RoomID).
			Str("current_room", s.room.RoomID).
			Msg("dropping event for inactive room")
		return
	}

	switch ev.Type {
	case events.EventTypeGameState:
		p := payload.(events.GameStatePayload)
		prevToken := s.round.Token()
		s.round.ApplyGameState(p, ev.Round)
		if token := s.round.Token(); token == "" || token != prevToken {
			s.guesses.Reset()
			stopTimer(&s.guessTimer)
			c.touch(SliceGuesses)
		}
		s.restartTickerLocked()
		s.confirmJoinLocked(c)
		c.touch(SliceRound, SliceCountdown)

	case events.EventTypeIntermissionStart:
		p := payload.(events.IntermissionStartPayload)
		s.round.StartIntermission(p, ev.ReceivedAt)
		s.restartTickerLocked()
		c.touch(SliceRound, SliceCountdown)

	case events.EventTypeOnlinePlayers:
		p := payload.(events.OnlinePlayersPayload)
		s.presence.Replace(p.Players)
		s.confirmJoinLocked(c)
		c.touch(SlicePresence)

	case events.EventTypeRoundStart:
		p := payload.(events.RoundStartPayload)
		token := s.round.StartRound(p, ev.Round, ev.ReceivedAt)
		s.guesses.Reset()
		stopTimer(&s.guessTimer)
		s.restartTickerLocked()
		s.confirmJoinLocked(c)
		c.touch(SliceRound, SliceGuesses, SliceCountdown)
		log.Debug().Str("round", token).Str("room_id", s.room.RoomID).Msg("round started")

	case events.EventTypeRoundEnd:
		p := payload.(events.RoundEndPayload)
		if !s.round.EndRound(p, ev.Round) {
			return
		}
		s.presence.ApplyScores(p.Scores)
		c.touch(SliceRound, SlicePresence)

	case events.EventTypeGuessResult:
		p := payload.(events.GuessResultPayload)
		if s.staleLocked(ev, p.RoundID) {
			return
		}
		if !s.guesses.ApplyResult(s.round.Token(), p.Direction) {
			log.Debug().
				Str("round", s.round.Token()).
				Str("direction", string(p.Direction)).
				Msg("discarding guess result with no pending guess")
			return
		}
		stopTimer(&s.guessTimer)
		c.touch(SliceGuesses)

	case events.EventTypeCorrectGuess, events.EventTypeIncorrectGuess:
		p := payload.(events.GuessBroadcastPayload)
		if s.staleLocked(ev, p.RoundID) {
			return
		}
		s.guesses.Record(models.GuessResult{
			UserID:    p.UserID,
			PlayerID:  p.PlayerID,
			Username:  p.Username,
			IsCorrect: ev.Type == events.EventTypeCorrectGuess,
		})
		if cel, ok := s.guesses.TakeCelebration(); ok {
			c.celebration = &cel
		}
		c.touch(SliceGuesses)

	case events.EventTypeChatMessage:
		p := payload.(events.ChatMessagePayload)
		msg := newChatMessage(p, ev.ReceivedAt)
		s.chat.Append(msg)
		if s.user != nil && chat.MentionsUser(msg, s.user.Username) {
			c.mention = &msg
		}
		c.touch(SliceChat)

	case events.EventTypePlayerJoined:
		p := payload.(events.PlayerPresencePayload)
		if s.presence.Join(p.Player()) {
			c.touch(SlicePresence)
		}

	case events.EventTypePlayerLeft:
		p := payload.(events.PlayerPresencePayload)
		if s.presence.Leave(p.PlayerID) {
			c.touch(SlicePresence)
		}

	case events.EventTypeRoomEnd:
		log.Info().Str("room_id", s.room.RoomID).Msg("room ended")
		s.resetRoomLocked(RoomState{}, c)

	case events.EventTypeError:
		p := payload.(events.ErrorPayload)
		message := p.Message
		if message == "" {
			message = p.Code
		}
		c.notice = &Notice{Kind: NoticeToast, Code: CodeServerError, Message: message}

	case events.EventTypeGuessRejected:
		p := payload.(events.GuessRejectedPayload)
		s.guesses.Rollback()
		stopTimer(&s.guessTimer)
		c.touch(SliceGuesses)
		c.notice = &Notice{Kind: NoticeToast, Code: CodeGuessRejected, Message: p.Reason}

	case events.EventTypeRoomFull:
		p := payload.(events.RoomFullPayload)
		s.leaveOnRejectionLocked(ev, c)
		c.notice = &Notice{
			Kind:    NoticeModal,
			Code:    CodeRoomFull,
			Message: "The room is full",
			RetryAt: ev.ReceivedAt.Add(events.Duration(p.RetryAfterMs)),
		}

	case events.EventTypeBanned:
		p := payload.(events.BannedPayload)
		s.leaveOnRejectionLocked(ev, c)
		message := p.Reason
		if message == "" {
			message = "You were removed from the room"
		}
		c.notice = &Notice{
			Kind:    NoticeModal,
			Code:    CodeBanned,
			Message: message,
			RetryAt: ev.ReceivedAt.Add(time.Duration(p.Minutes) * time.Minute),
		}
	}
}

// leaveOnRejectionLocked undoes the optimistic join when the server refuses
// or removes us.
func (s *Store) leaveOnRejectionLocked(ev events.Event, c *change) {
	if s.room.RoomID == "" || (ev.RoomID != "" && ev.RoomID != s.room.RoomID) {
		return
	}
	log.Info().
		Str("room_id", s.room.RoomID).
		Str("event_type", string(ev.Type)).
		Msg("leaving room after server rejection")
	s.resetRoomLocked(RoomState{}, c)
}
