package bot

import "okey/internal/game/okey"

// Weights of the keep score. A tile with no partners scores zero and is thrown first.
const (
	ScoreNeighbor     = 3 // same color, one number away
	ScoreNearNeighbor = 1 // same color, two numbers away
	ScoreSameNumber   = 2 // per other color holding the number
	ScoreDuplicate    = -1
)

// Keep scores how much tile is worth holding given the rest of hand.
func Keep(hand []okey.Tile, okeyFace okey.Face, tile okey.Tile) int {
	faces := realFaces(hand, okeyFace)
	f := tile.Face()
	faces[f]--

	score := 0
	near := func(d int) bool {
		n := f.Number + d
		return n >= okey.MinNumber && n <= okey.MaxNumber && faces[okey.Face{Number: n, Color: f.Color}] > 0
	}
	for _, d := range []int{-1, 1} {
		if near(d) {
			score += ScoreNeighbor
		}
		if near(2 * d) {
			score += ScoreNearNeighbor
		}
	}
	for _, c := range okey.Colors {
		if c != f.Color && faces[okey.Face{Number: f.Number, Color: c}] > 0 {
			score += ScoreSameNumber
		}
	}
	if faces[f] > 0 {
		score += ScoreDuplicate
	}
	return score
}

// worstTile picks the discard: the lowest keep score, ties going to the higher
// number, then the higher id. Wildcards are only thrown when nothing else is left.
func worstTile(hand []okey.Tile, okeyFace okey.Face) okey.Tile {
	best := -1
	bestScore := 0
	for i, t := range hand {
		if t.IsWildcard(okeyFace) {
			continue
		}
		sc := Keep(hand, okeyFace, t)
		if best < 0 || sc < bestScore ||
			(sc == bestScore && (t.Number > hand[best].Number ||
				(t.Number == hand[best].Number && t.ID > hand[best].ID))) {
			best, bestScore = i, sc
		}
	}
	if best < 0 {
		return hand[len(hand)-1]
	}
	return hand[best]
}
