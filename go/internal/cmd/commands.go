package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/mcdev12/priceguess/go/clients/api"
	"github.com/mcdev12/priceguess/go/internal/session"
	"github.com/mcdev12/priceguess/go/internal/session/chat"
)

const (
	cmdChat        = "chat"
	cmdJoin        = "join"
	cmdLeave       = "leave"
	cmdGuess       = "guess"
	cmdBan         = "ban"
	cmdLogin       = "login"
	cmdLogout      = "logout"
	cmdReconnect   = "reconnect"
	cmdState       = "state"
	cmdScores      = "scores"
	cmdLeaderboard = "leaderboard"
	cmdCategories  = "categories"
	cmdCreate      = "create"
	cmdFeedback    = "feedback"
	cmdVoice       = "voice"
	cmdMute        = "mute"
	cmdMuteRoom    = "mute-room"
	cmdMuteUser    = "mute-user"
	cmdHelp        = "help"
	cmdQuit        = "quit"
)

// defaultBanMinutes applies when /ban is given no duration.
const defaultBanMinutes = 10

var errUsage = errors.New("usage")

type command struct {
	name string
	args []string
	text string // everything after the command word, trimmed
}

// parseLine turns one stdin line into a command. Lines that do not start
// with "/" are chat; "//" escapes a leading slash.
func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, errors.New("nothing to do, type /help")
	}
	if strings.HasPrefix(line, "//") {
		return command{name: cmdChat, text: line[1:]}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{name: cmdChat, text: line}, nil
	}

	word, rest, _ := strings.Cut(line[1:], " ")
	cmd := command{name: strings.ToLower(word), text: strings.TrimSpace(rest)}
	cmd.args = strings.Fields(cmd.text)

	switch cmd.name {
	case cmdJoin, cmdLogin, cmdMuteUser:
		if len(cmd.args) != 1 {
			return command{}, fmt.Errorf("%w: /%s <%s>", errUsage, cmd.name, argName(cmd.name))
		}
	case cmdGuess, cmdFeedback:
		if cmd.text == "" {
			return command{}, fmt.Errorf("%w: /%s <text>", errUsage, cmd.name)
		}
	case cmdBan:
		if len(cmd.args) < 1 || len(cmd.args) > 2 {
			return command{}, fmt.Errorf("%w: /ban <username> [minutes]", errUsage)
		}
		if len(cmd.args) == 2 {
			if _, err := strconv.Atoi(cmd.args[1]); err != nil {
				return command{}, fmt.Errorf("%w: ban minutes must be a number", errUsage)
			}
		}
	case cmdCreate:
		if len(cmd.args) < 2 {
			return command{}, fmt.Errorf("%w: /create <category-id> <room name>", errUsage)
		}
	case cmdVoice:
		if len(cmd.args) > 1 || (len(cmd.args) == 1 && cmd.args[0] != "on" && cmd.args[0] != "off") {
			return command{}, fmt.Errorf("%w: /voice [on|off]", errUsage)
		}
	case cmdLeave, cmdLogout, cmdReconnect, cmdState, cmdScores, cmdLeaderboard,
		cmdCategories, cmdMute, cmdMuteRoom, cmdHelp, cmdQuit:
	default:
		return command{}, fmt.Errorf("unknown command /%s, type /help", cmd.name)
	}
	return cmd, nil
}

func argName(name string) string {
	switch name {
	case cmdJoin:
		return "room-id"
	case cmdLogin:
		return "token"
	default:
		return "identity"
	}
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func (a *app) execute(ctx context.Context, cmd command, out io.Writer) error {
	switch cmd.name {
	case cmdChat:
		return a.client.SendMessage(cmd.text)
	case cmdJoin:
		if err := a.client.JoinRoom(cmd.args[0]); err != nil {
			return err
		}
		if room, err := a.api.GetRoom(ctx, cmd.args[0]); err == nil {
			a.store.SetSettings(room.Settings)
		}
		return nil
	case cmdLeave:
		if a.voice != nil {
			a.voice.Disconnect()
		}
		return a.client.LeaveRoom()
	case cmdGuess:
		return a.client.SubmitGuess(cmd.text)
	case cmdBan:
		minutes := defaultBanMinutes
		if len(cmd.args) == 2 {
			minutes, _ = strconv.Atoi(cmd.args[1])
		}
		return a.client.Ban(cmd.args[0], minutes)
	case cmdLogin:
		return a.client.Login(ctx, cmd.args[0])
	case cmdLogout:
		return a.client.Logout(ctx)
	case cmdReconnect:
		return a.client.Reconnect(ctx)
	case cmdState:
		printState(out, a.store.Snapshot())
		return nil
	case cmdScores:
		printScores(out, a.store)
		return nil
	case cmdLeaderboard:
		entries, err := a.api.Leaderboard(ctx, 10)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%d\n", e.Rank, e.Username, e.TotalScore)
		}
		return w.Flush()
	case cmdCategories:
		cats, err := a.api.Categories(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, c := range cats {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d rooms\n", c.ID, c.Name, c.Kind, c.Rooms)
		}
		return w.Flush()
	case cmdCreate:
		return a.createRoom(ctx, cmd, out)
	case cmdFeedback:
		return a.api.SubmitFeedback(ctx, a.store.Snapshot().Room.RoomID, cmd.text)
	case cmdVoice:
		return a.toggleVoice(ctx, cmd)
	case cmdMute:
		if a.voice == nil {
			return errVoiceDisabled
		}
		muted, err := a.voice.ToggleMute()
		if err == nil {
			fmt.Fprintln(out, "microphone muted:", muted)
		}
		return err
	case cmdMuteRoom:
		if a.voice == nil {
			return errVoiceDisabled
		}
		fmt.Fprintln(out, "room muted:", a.voice.ToggleRoomMute())
		return nil
	case cmdMuteUser:
		if a.voice == nil {
			return errVoiceDisabled
		}
		muted, err := a.voice.ToggleParticipantMute(ctx, cmd.args[0])
		if err == nil {
			fmt.Fprintf(out, "%s muted: %t\n", cmd.args[0], muted)
		}
		return err
	case cmdHelp:
		fmt.Fprint(out, helpText)
		return nil
	}
	return nil
}

var errVoiceDisabled = errors.New("voice is disabled, set PRICEGUESS_VOICE=true")

func (a *app) toggleVoice(ctx context.Context, cmd command) error {
	if a.voice == nil {
		return errVoiceDisabled
	}
	if len(cmd.args) == 1 && cmd.args[0] == "off" {
		return a.voice.Disconnect()
	}
	roomID := a.store.Snapshot().Room.RoomID
	if roomID == "" {
		return session.ErrNoRoom
	}
	return a.voice.Connect(ctx, roomID)
}

func (a *app) createRoom(ctx context.Context, cmd command, out io.Writer) error {
	req := api.CreateRoomRequest{
		CategoryID: cmd.args[0],
		Name:       strings.Join(cmd.args[1:], " "),
		Settings:   a.store.Snapshot().Round.Settings,
	}
	if req.Settings.RoundDurationMs == 0 {
		req.Settings.RoundDurationMs = 30_000
		req.Settings.TotalRounds = 10
		req.Settings.MaxPlayers = 8
	}

	room, err := a.api.CreateRoom(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created room %s (%s)\n", room.ID, room.Name)
	return a.client.JoinRoom(room.ID)
}

func printState(out io.Writer, snap session.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "connection\t%s\n", snap.Connection.Status)
	if snap.User != nil {
		fmt.Fprintf(w, "user\t%s\n", snap.User.Username)
	}
	if snap.Room.RoomID == "" {
		fmt.Fprintln(w, "room\t-")
		return
	}
	fmt.Fprintf(w, "room\t%s (pending: %t)\n", snap.Room.RoomID, snap.Room.JoinPending)
	fmt.Fprintf(w, "status\t%s\n", snap.Round.Status)
	if l := snap.Round.Listing; l != nil {
		fmt.Fprintf(w, "listing\t%s [%s]\n", l.Title, l.Kind)
	}
	fmt.Fprintf(w, "countdown\t%ds round, %ds intermission\n", snap.Countdown.Round, snap.Countdown.Intermission)
	if snap.Guesses.Feedback != "" {
		fmt.Fprintf(w, "feedback\t%s\n", snap.Guesses.Feedback)
	}
	if snap.Round.ShowResults && snap.Round.CorrectPrice != nil {
		fmt.Fprintf(w, "price\t%s\n", snap.Round.CorrectPrice.StringFixed(0))
	}
	fmt.Fprintf(w, "players\t%d\n", len(snap.Presence))
	for _, m := range lastMessages(snap, 5) {
		fmt.Fprintf(w, "chat\t%s\n", m)
	}
}

func lastMessages(snap session.Snapshot, n int) []string {
	msgs := snap.Chat
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	viewer := ""
	if snap.User != nil {
		viewer = snap.User.Username
	}

	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		var b strings.Builder
		for _, seg := range chat.Segments(m, viewer) {
			if seg.Self {
				b.WriteString(strings.ToUpper(seg.Text))
				continue
			}
			b.WriteString(seg.Text)
		}
		out = append(out, m.Username+": "+b.String())
	}
	return out
}

func printScores(out io.Writer, store *session.Store) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()
	for i, p := range store.Leaderboard() {
		fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, p.Username, p.RoomScore)
	}
}

const helpText = `commands:
  <text>                      send a chat message (start with // to send a leading slash)
  /join <room-id>             join a room, leaving the current one
  /leave                      leave the room
  /guess <price or answer>    guess the current listing
  /ban <username> [minutes]   moderators only
  /login <token>, /logout     change account
  /reconnect                  reopen the push channel
  /state, /scores             show the session and the room scoreboard
  /leaderboard, /categories   global ranking and lobby categories
  /create <category> <name>   create a room and join it
  /feedback <text>            send feedback
  /voice [on|off]             join or leave the room voice channel
  /mute, /mute-room, /mute-user <identity>
  /quit
`
