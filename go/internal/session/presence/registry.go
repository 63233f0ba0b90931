package presence

import (
	"sort"
	"strings"

	"github.com/mcdev12/priceguess/go/internal/models"
)

// Registry is the deduplicated set of online players in the current room,
// keyed by PlayerID. Order is unspecified; use Leaderboard for a stable one.
// It is not safe for concurrent use.
type Registry struct {
	players []models.OnlinePlayer
	index   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Replace sets the full presence set from a snapshot. Later duplicates of the
// same PlayerID win.
func (r *Registry) Replace(players []models.OnlinePlayer) {
	r.players = r.players[:0]
	r.index = make(map[string]int, len(players))
	for _, p := range players {
		if p.PlayerID == "" {
			continue
		}
		if i, ok := r.index[p.PlayerID]; ok {
			r.players[i] = p
			continue
		}
		r.index[p.PlayerID] = len(r.players)
		r.players = append(r.players, p)
	}
}

// Join adds p unless its PlayerID is already present. It reports whether the
// set changed.
func (r *Registry) Join(p models.OnlinePlayer) bool {
	if p.PlayerID == "" {
		return false
	}
	if _, ok := r.index[p.PlayerID]; ok {
		return false
	}
	r.index[p.PlayerID] = len(r.players)
	r.players = append(r.players, p)
	return true
}

// Leave removes the player with playerID and reports whether it was present.
func (r *Registry) Leave(playerID string) bool {
	i, ok := r.index[playerID]
	if !ok {
		return false
	}

	last := len(r.players) - 1
	if i != last {
		r.players[i] = r.players[last]
		r.index[r.players[i].PlayerID] = i
	}
	r.players = r.players[:last]
	delete(r.index, playerID)
	return true
}

// ApplyScores updates room and total scores from an end-of-round score list.
func (r *Registry) ApplyScores(scores []models.Score) {
	for _, s := range scores {
		i, ok := r.index[s.PlayerID]
		if !ok {
			continue
		}
		r.players[i].TotalScore += s.RoundScore
		r.players[i].RoomScore = s.Score
	}
}

// Get returns the player with playerID.
func (r *Registry) Get(playerID string) (models.OnlinePlayer, bool) {
	i, ok := r.index[playerID]
	if !ok {
		return models.OnlinePlayer{}, false
	}
	return r.players[i], true
}

// ByUserID returns every membership of an account; a reconnecting user may
// briefly hold two.
func (r *Registry) ByUserID(userID string) []models.OnlinePlayer {
	var out []models.OnlinePlayer
	for _, p := range r.players {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of online players.
func (r *Registry) Len() int { return len(r.players) }

// Players returns a copy of the set in unspecified order.
func (r *Registry) Players() []models.OnlinePlayer {
	return append([]models.OnlinePlayer(nil), r.players...)
}

// Leaderboard returns players by room score, highest first, ties by username.
func (r *Registry) Leaderboard() []models.OnlinePlayer {
	out := r.Players()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoomScore != out[j].RoomScore {
			return out[i].RoomScore > out[j].RoomScore
		}
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out
}

// Reset empties the registry.
func (r *Registry) Reset() {
	r.players = nil
	r.index = make(map[string]int)
}
