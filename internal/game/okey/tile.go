package okey

import "fmt"

// Color is one of the four tile colors.
type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
	Blue   Color = "blue"
	Black  Color = "black"
)

// Colors lists the colors in evaluation order.
var Colors = [4]Color{Red, Yellow, Blue, Black}

func (c Color) index() int {
	for i, cc := range Colors {
		if cc == c {
			return i
		}
	}
	return -1
}

// Kind separates the two dedicated jokers from numbered tiles.
type Kind string

const (
	KindNormal Kind = "normal"
	KindJoker  Kind = "joker"
)

const (
	MinNumber = 1
	MaxNumber = 13
	// TotalTiles is the size of the full set: 4 colors × 13 numbers × 2 copies + 2 jokers.
	TotalTiles = 106
)

// Face is what a tile matches on: number and color.
type Face struct {
	Number int   `json:"number"`
	Color  Color `json:"color"`
}

func (f Face) String() string {
	return fmt.Sprintf("%s-%02d", f.Color, f.Number)
}

// Valid reports whether f names a real numbered face.
func (f Face) Valid() bool {
	return f.Number >= MinNumber && f.Number <= MaxNumber && f.Color.index() >= 0
}

// Tile is a single physical tile. Identity is ID.
type Tile struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Color  Color  `json:"color,omitempty"`
	Kind   Kind   `json:"kind"`
}

// Face returns the matching face of a numbered tile.
func (t Tile) Face() Face {
	return Face{Number: t.Number, Color: t.Color}
}

// IsJoker reports whether t is one of the two dedicated jokers.
func (t Tile) IsJoker() bool {
	return t.Kind == KindJoker
}

// IsWildcard reports whether t substitutes for any tile given the okey face.
func (t Tile) IsWildcard(okey Face) bool {
	return t.IsJoker() || t.Face() == okey
}

func (t Tile) String() string {
	return t.ID
}

// NewTile builds a numbered tile with the given copy (1 or 2).
func NewTile(n int, c Color, copyNo int) Tile {
	return Tile{
		ID:     fmt.Sprintf("%s-%02d-%d", c, n, copyNo),
		Number: n,
		Color:  c,
		Kind:   KindNormal,
	}
}

// NewJoker builds a dedicated joker tile (copy 1 or 2).
func NewJoker(copyNo int) Tile {
	return Tile{ID: fmt.Sprintf("joker-%d", copyNo), Kind: KindJoker}
}

// NewTileSet returns all 106 tiles in canonical order.
func NewTileSet() []Tile {
	tiles := make([]Tile, 0, TotalTiles)
	for _, c := range Colors {
		for n := MinNumber; n <= MaxNumber; n++ {
			tiles = append(tiles, NewTile(n, c, 1), NewTile(n, c, 2))
		}
	}
	return append(tiles, NewJoker(1), NewJoker(2))
}

// OkeyFor derives the wildcard face from the indicator: next number, same color, 13 wraps to 1.
func OkeyFor(indicator Face) Face {
	n := indicator.Number + 1
	if n > MaxNumber {
		n = MinNumber
	}
	return Face{Number: n, Color: indicator.Color}
}

func indexOfTile(tiles []Tile, id string) int {
	for i, t := range tiles {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func removeAt(tiles []Tile, i int) []Tile {
	out := make([]Tile, 0, len(tiles)-1)
	out = append(out, tiles[:i]...)
	return append(out, tiles[i+1:]...)
}
