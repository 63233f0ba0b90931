package presence

import (
	"testing"

	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func player(id string, score int) models.OnlinePlayer {
	return models.OnlinePlayer{PlayerID: id, UserID: "u-" + id, Username: id, RoomScore: score}
}

func ids(players []models.OnlinePlayer) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.PlayerID)
	}
	return out
}

func TestJoin_Idempotent(t *testing.T) {
	once := NewRegistry()
	once.Join(player("p1", 0))

	twice := NewRegistry()
	assert.True(t, twice.Join(player("p1", 0)))
	assert.False(t, twice.Join(player("p1", 10)))

	assert.Equal(t, once.Players(), twice.Players())
}

func TestPresenceChurn(t *testing.T) {
	r := NewRegistry()
	r.Replace([]models.OnlinePlayer{player("P1", 0), player("P2", 0)})
	r.Leave("P1")
	r.Join(player("P1", 0))

	assert.ElementsMatch(t, []string{"P1", "P2"}, ids(r.Players()))
}

func TestReplace_DedupesAndSkipsEmpty(t *testing.T) {
	r := NewRegistry()
	r.Join(player("old", 0))
	r.Replace([]models.OnlinePlayer{player("p1", 1), player("p1", 5), {Username: "ghost"}})

	require.Equal(t, 1, r.Len())
	p, ok := r.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 5, p.RoomScore)
	_, ok = r.Get("old")
	assert.False(t, ok)
}

func TestLeave(t *testing.T) {
	r := NewRegistry()
	r.Replace([]models.OnlinePlayer{player("a", 0), player("b", 0), player("c", 0)})

	assert.True(t, r.Leave("a"))
	assert.False(t, r.Leave("a"))
	assert.ElementsMatch(t, []string{"b", "c"}, ids(r.Players()))

	// index stays consistent after swap-remove
	assert.True(t, r.Leave("c"))
	_, ok := r.Get("b")
	assert.True(t, ok)
}

func TestByUserID_Reconnect(t *testing.T) {
	r := NewRegistry()
	r.Join(models.OnlinePlayer{PlayerID: "p1", UserID: "u1"})
	r.Join(models.OnlinePlayer{PlayerID: "p2", UserID: "u1"})

	assert.Len(t, r.ByUserID("u1"), 2)
}

func TestLeaderboard(t *testing.T) {
	r := NewRegistry()
	r.Replace([]models.OnlinePlayer{player("carol", 10), player("Bob", 30), player("alice", 10)})

	assert.Equal(t, []string{"Bob", "alice", "carol"}, ids(r.Leaderboard()))
}

func TestApplyScores(t *testing.T) {
	r := NewRegistry()
	r.Replace([]models.OnlinePlayer{{PlayerID: "p1", RoomScore: 10, TotalScore: 100}})
	r.ApplyScores([]models.Score{{PlayerID: "p1", Score: 25, RoundScore: 15}, {PlayerID: "gone", Score: 3}})

	p, _ := r.Get("p1")
	assert.Equal(t, 25, p.RoomScore)
	assert.Equal(t, 115, p.TotalScore)
}
