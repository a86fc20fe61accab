package okey

import (
	"fmt"
	"math/rand/v2"
)

const (
	// HandSize is what every seat holds between turns.
	HandSize = 14
	// DealerHandSize is the dealer's opening hand; the dealer skips the first draw.
	DealerHandSize = HandSize + 1
)

// Shuffle permutes tiles in place with a PCG source seeded by seed.
func Shuffle(tiles []Tile, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })
}

// BuildDeck shuffles the full set and takes the indicator from the bottom of the pile.
// Jokers cannot indicate, so the bottom-most numbered tile is used. The returned pile
// holds the other 105 tiles, top first.
func BuildDeck(seed uint64) (pile []Tile, indicator Tile, okey Face) {
	tiles := NewTileSet()
	Shuffle(tiles, seed)

	i := len(tiles) - 1
	for tiles[i].IsJoker() {
		i--
	}
	indicator = tiles[i]
	pile = removeAt(tiles, i)
	return pile, indicator, OkeyFor(indicator.Face())
}

// Deal hands out tiles from the top of pile one at a time, dealer (seat 0) first,
// for HandSize rounds, then one extra tile to the dealer.
func Deal(pile []Tile, players int) (hands [][]Tile, rest []Tile, err error) {
	if players < MinPlayers || players > MaxPlayers {
		return nil, nil, fmt.Errorf("deal: %d players out of range", players)
	}
	need := HandSize*players + 1
	if len(pile) < need {
		return nil, nil, fmt.Errorf("deal: pile has %d tiles, need %d", len(pile), need)
	}
	hands = make([][]Tile, players)
	for seat := range hands {
		hands[seat] = make([]Tile, 0, DealerHandSize)
	}
	next := 0
	for round := 0; round < HandSize; round++ {
		for seat := 0; seat < players; seat++ {
			hands[seat] = append(hands[seat], pile[next])
			next++
		}
	}
	hands[0] = append(hands[0], pile[next])
	next++

	rest = make([]Tile, len(pile)-next)
	copy(rest, pile[next:])
	return hands, rest, nil
}
