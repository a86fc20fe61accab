package okey

import "sort"

// Reason explains why a hand does not validate.
type Reason string

const (
	ReasonWrongTileCount   Reason = "WrongTileCount"
	ReasonNoValidPartition Reason = "NoValidPartition"
	ReasonTileNotOwned     Reason = "TileNotOwned"
)

// GroupKind is the shape of one group in a winning partition.
type GroupKind string

const (
	GroupRun  GroupKind = "run"
	GroupSet  GroupKind = "set"
	GroupPair GroupKind = "pair"
)

// WinKind is the shape of a whole winning hand.
type WinKind string

const (
	WinStandard WinKind = "standard"
	WinPairs    WinKind = "pairs"
)

// Group is one run, set or pair. Run tiles are in number order with wildcards in
// the slots they fill.
type Group struct {
	Kind  GroupKind `json:"kind"`
	Tiles []Tile    `json:"tiles"`
}

// Verdict is the result of evaluating a hand.
type Verdict struct {
	Valid  bool    `json:"valid"`
	Kind   WinKind `json:"kind,omitempty"`
	Groups []Group `json:"groups,omitempty"`
	Reason Reason  `json:"reason,omitempty"`
}

// HandRules holds the winning-hand options that vary between tables.
type HandRules struct {
	// AllowPairs accepts seven identical pairs as a win.
	AllowPairs bool `json:"allowPairs" yaml:"allow_pairs"`
	// WildcardPairs lets a wildcard complete a pair with any tile. When false a
	// wildcard only pairs with its own twin.
	WildcardPairs bool `json:"wildcardPairs" yaml:"wildcard_pairs"`
}

// DefaultHandRules allows the pairs hand with wildcards.
func DefaultHandRules() HandRules {
	return HandRules{AllowPairs: true, WildcardPairs: true}
}

// Evaluate checks hand with the default rules.
func Evaluate(hand []Tile, okey Face, discardID string) Verdict {
	return DefaultHandRules().Evaluate(hand, okey, discardID)
}

// Evaluate reports whether hand forms a winning partition. With discardID set the
// hand must hold 15 tiles and the named one is set aside; otherwise it must hold 14.
// Evaluate does not modify hand.
func (r HandRules) Evaluate(hand []Tile, okey Face, discardID string) Verdict {
	tiles := hand
	if discardID != "" {
		if len(hand) != DealerHandSize {
			return Verdict{Reason: ReasonWrongTileCount}
		}
		i := indexOfTile(hand, discardID)
		if i < 0 {
			return Verdict{Reason: ReasonTileNotOwned}
		}
		tiles = removeAt(hand, i)
	}
	if len(tiles) != HandSize {
		return Verdict{Reason: ReasonWrongTileCount}
	}

	if groups, ok := newSolver(tiles, okey).partition(); ok {
		return Verdict{Valid: true, Kind: WinStandard, Groups: groups}
	}
	if r.AllowPairs {
		if groups, ok := pairUp(tiles, okey, r.WildcardPairs); ok {
			return Verdict{Valid: true, Kind: WinPairs, Groups: groups}
		}
	}
	return Verdict{Reason: ReasonNoValidPartition}
}

// CanFinish reports whether some tile of a 15-tile hand can be discarded to win,
// and which one. Non-wildcard discards are tried first.
func (r HandRules) CanFinish(hand []Tile, okey Face) (string, Verdict, bool) {
	var wild []Tile
	seen := make(map[string]bool, len(hand))
	for _, t := range hand {
		if t.IsWildcard(okey) {
			wild = append(wild, t)
			continue
		}
		if seen[t.Face().String()] {
			continue
		}
		seen[t.Face().String()] = true
		if v := r.Evaluate(hand, okey, t.ID); v.Valid {
			return t.ID, v, true
		}
	}
	for _, t := range wild {
		if v := r.Evaluate(hand, okey, t.ID); v.Valid {
			return t.ID, v, true
		}
	}
	return "", Verdict{Reason: ReasonNoValidPartition}, false
}

const slots = len(Colors) * MaxNumber

func slotOf(f Face) int {
	return f.Color.index()*MaxNumber + f.Number - 1
}

// sortTiles orders by color, number, then id; jokers last.
func sortTiles(tiles []Tile) {
	sort.SliceStable(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.IsJoker() != b.IsJoker() {
			return b.IsJoker()
		}
		if !a.IsJoker() {
			if sa, sb := slotOf(a.Face()), slotOf(b.Face()); sa != sb {
				return sa < sb
			}
		}
		return a.ID < b.ID
	})
}

type solverKey [slots + 1]uint8

// solver partitions 14 tiles into runs and sets by depth-first search, always
// placing the lowest remaining numbered tile first. Failed remainders are memoized.
type solver struct {
	stacks [slots][]Tile
	used   [slots]int
	wild   []Tile
	wUsed  int
	groups []Group
	failed map[solverKey]struct{}
}

func newSolver(tiles []Tile, okey Face) *solver {
	s := &solver{failed: make(map[solverKey]struct{})}
	sorted := append([]Tile(nil), tiles...)
	sortTiles(sorted)
	for _, t := range sorted {
		if t.IsWildcard(okey) {
			s.wild = append(s.wild, t)
			continue
		}
		i := slotOf(t.Face())
		s.stacks[i] = append(s.stacks[i], t)
	}
	return s
}

func (s *solver) left(slot int) int {
	return len(s.stacks[slot]) - s.used[slot]
}

func (s *solver) wildLeft() int {
	return len(s.wild) - s.wUsed
}

func (s *solver) key() solverKey {
	var k solverKey
	for i := 0; i < slots; i++ {
		k[i] = uint8(s.left(i))
	}
	k[slots] = uint8(s.wildLeft())
	return k
}

func (s *solver) lowest() int {
	for i := 0; i < slots; i++ {
		if s.left(i) > 0 {
			return i
		}
	}
	return -1
}

func (s *solver) partition() ([]Group, bool) {
	if !s.solve() {
		return nil, false
	}
	return s.groups, true
}

func (s *solver) solve() bool {
	first := s.lowest()
	if first < 0 {
		w := s.wildLeft()
		switch {
		case w == 0:
			return true
		case w >= 3:
			s.place(GroupRun, repeatWild(w))
			return true
		}
		return false
	}
	k := s.key()
	if _, dead := s.failed[k]; dead {
		return false
	}
	if s.tryRuns(first) || s.trySets(first) {
		return true
	}
	s.failed[k] = struct{}{}
	return false
}

const wildSlot = -1

func repeatWild(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = wildSlot
	}
	return out
}

// tryRuns enumerates runs holding the tile at first. Lower numbers of the same color
// are already placed, so any slot below it is a wildcard. Above it a real tile is
// always preferred over a wildcard: swapping the two keeps both groups valid.
func (s *solver) tryRuns(first int) bool {
	n := first%MaxNumber + 1
	base := first - (n - 1)
	w := s.wildLeft()
	for lead := 0; lead <= w && n-lead >= MinNumber; lead++ {
		layout := repeatWild(lead)
		layout = append(layout, first)
		needed := lead
		for end := n; end <= MaxNumber; end++ {
			if end > n {
				if slot := base + end - 1; s.left(slot) > 0 {
					layout = append(layout, slot)
				} else {
					layout = append(layout, wildSlot)
					needed++
				}
			}
			if needed > w {
				break
			}
			if len(layout) >= 3 && s.attempt(GroupRun, layout) {
				return true
			}
		}
	}
	return false
}

// trySets enumerates sets holding the tile at first, over every subset of the other
// colors present at that number, padded to 3 or 4 with wildcards.
func (s *solver) trySets(first int) bool {
	n := first%MaxNumber + 1
	own := first / MaxNumber
	var others []int
	for ci := range Colors {
		if ci == own {
			continue
		}
		slot := ci*MaxNumber + n - 1
		if s.left(slot) > 0 {
			others = append(others, slot)
		}
	}
	w := s.wildLeft()
	for mask := 0; mask < 1<<len(others); mask++ {
		layout := []int{first}
		for i, slot := range others {
			if mask&(1<<i) != 0 {
				layout = append(layout, slot)
			}
		}
		sort.Ints(layout)
		for size := 3; size <= len(Colors); size++ {
			pad := size - len(layout)
			if pad < 0 || pad > w {
				continue
			}
			if s.attempt(GroupSet, append(append([]int(nil), layout...), repeatWild(pad)...)) {
				return true
			}
		}
	}
	return false
}

// attempt places a group, recurses and undoes it on failure.
func (s *solver) attempt(kind GroupKind, layout []int) bool {
	s.place(kind, layout)
	if s.solve() {
		return true
	}
	s.unplace(layout)
	return false
}

func (s *solver) place(kind GroupKind, layout []int) {
	g := Group{Kind: kind, Tiles: make([]Tile, 0, len(layout))}
	for _, slot := range layout {
		if slot == wildSlot {
			g.Tiles = append(g.Tiles, s.wild[s.wUsed])
			s.wUsed++
			continue
		}
		g.Tiles = append(g.Tiles, s.stacks[slot][s.used[slot]])
		s.used[slot]++
	}
	s.groups = append(s.groups, g)
}

func (s *solver) unplace(layout []int) {
	for _, slot := range layout {
		if slot == wildSlot {
			s.wUsed--
			continue
		}
		s.used[slot]--
	}
	s.groups = s.groups[:len(s.groups)-1]
}

// pairUp tries the seven-pairs hand.
func pairUp(tiles []Tile, okey Face, wildcardPairs bool) ([]Group, bool) {
	sorted := append([]Tile(nil), tiles...)
	sortTiles(sorted)

	var wild, rest []Tile
	for _, t := range sorted {
		if wildcardPairs && t.IsWildcard(okey) {
			wild = append(wild, t)
		} else {
			rest = append(rest, t)
		}
	}

	var groups []Group
	var singles []Tile
	for i := 0; i < len(rest); i++ {
		if i+1 < len(rest) && samePairKey(rest[i], rest[i+1]) {
			groups = append(groups, Group{Kind: GroupPair, Tiles: []Tile{rest[i], rest[i+1]}})
			i++
			continue
		}
		singles = append(singles, rest[i])
	}
	if len(singles) > len(wild) || (len(wild)-len(singles))%2 != 0 {
		return nil, false
	}
	for i, t := range singles {
		groups = append(groups, Group{Kind: GroupPair, Tiles: []Tile{t, wild[i]}})
	}
	for i := len(singles); i < len(wild); i += 2 {
		groups = append(groups, Group{Kind: GroupPair, Tiles: []Tile{wild[i], wild[i+1]}})
	}
	return groups, true
}

func samePairKey(a, b Tile) bool {
	if a.IsJoker() || b.IsJoker() {
		return a.IsJoker() && b.IsJoker()
	}
	return a.Face() == b.Face()
}
