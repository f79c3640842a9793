package leaderboard

import "math/rand"

// skiplist is an order-statistics skip list ordered by (score desc,
// member asc). Forward pointers carry span counts, so rank lookups and
// rank-indexed traversal are O(log n) alongside O(log n) insert/delete.
// It is not internally synchronized; MemoryStore guards it with a mutex.
type skiplist struct {
	head   *slNode
	tail   *slNode
	length int
	level  int
}

const (
	slMaxLevel = 32
	slP        = 0.25
)

type slLevel struct {
	forward *slNode
	// span is the number of positions crossed when following forward.
	span int
}

type slNode struct {
	member   string
	score    float64
	backward *slNode
	levels   []slLevel
}

func newSkiplist() *skiplist {
	return &skiplist{
		head:  &slNode{levels: make([]slLevel, slMaxLevel)},
		level: 1,
	}
}

// precedes reports whether a node with (aScore, aMember) sorts strictly
// before (bScore, bMember): higher score first, member ascending on ties.
func precedes(aScore float64, aMember string, bScore float64, bMember string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aMember < bMember
}

func randomLevel() int {
	lvl := 1
	for rand.Float64() < slP && lvl < slMaxLevel {
		lvl++
	}
	return lvl
}

// insert adds a node for (member, score). The caller must ensure the
// member is not already present (delete first on score change).
func (sl *skiplist) insert(member string, score float64) {
	var update [slMaxLevel]*slNode
	var rank [slMaxLevel]int

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		if i == sl.level-1 {
			rank[i] = 0
		} else {
			rank[i] = rank[i+1]
		}
		for x.levels[i].forward != nil && precedes(x.levels[i].forward.score, x.levels[i].forward.member, score, member) {
			rank[i] += x.levels[i].span
			x = x.levels[i].forward
		}
		update[i] = x
	}

	lvl := randomLevel()
	if lvl > sl.level {
		for i := sl.level; i < lvl; i++ {
			rank[i] = 0
			update[i] = sl.head
			update[i].levels[i].span = sl.length
		}
		sl.level = lvl
	}

	n := &slNode{member: member, score: score, levels: make([]slLevel, lvl)}
	for i := 0; i < lvl; i++ {
		n.levels[i].forward = update[i].levels[i].forward
		update[i].levels[i].forward = n
		n.levels[i].span = update[i].levels[i].span - (rank[0] - rank[i])
		update[i].levels[i].span = (rank[0] - rank[i]) + 1
	}
	for i := lvl; i < sl.level; i++ {
		update[i].levels[i].span++
	}

	if update[0] != sl.head {
		n.backward = update[0]
	}
	if n.levels[0].forward != nil {
		n.levels[0].forward.backward = n
	} else {
		sl.tail = n
	}
	sl.length++
}

// delete removes the node for (member, score). Reports whether it existed.
func (sl *skiplist) delete(member string, score float64) bool {
	var update [slMaxLevel]*slNode

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && precedes(x.levels[i].forward.score, x.levels[i].forward.member, score, member) {
			x = x.levels[i].forward
		}
		update[i] = x
	}

	x = update[0].levels[0].forward
	if x == nil || x.score != score || x.member != member {
		return false
	}

	for i := 0; i < sl.level; i++ {
		if update[i].levels[i].forward == x {
			update[i].levels[i].span += x.levels[i].span - 1
			update[i].levels[i].forward = x.levels[i].forward
		} else {
			update[i].levels[i].span--
		}
	}
	if x.levels[0].forward != nil {
		x.levels[0].forward.backward = x.backward
	} else {
		sl.tail = x.backward
	}
	for sl.level > 1 && sl.head.levels[sl.level-1].forward == nil {
		sl.level--
	}
	sl.length--
	return true
}

// rank returns the 0-indexed position of (member, score).
func (sl *skiplist) rank(member string, score float64) (int, bool) {
	traversed := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil &&
			(precedes(x.levels[i].forward.score, x.levels[i].forward.member, score, member) ||
				(x.levels[i].forward.score == score && x.levels[i].forward.member == member)) {
			traversed += x.levels[i].span
			x = x.levels[i].forward
		}
		if x != sl.head && x.member == member && x.score == score {
			return traversed - 1, true
		}
	}
	return 0, false
}

// nodeAtRank returns the node at the given 0-indexed rank, or nil when
// the rank is out of bounds.
func (sl *skiplist) nodeAtRank(r int) *slNode {
	if r < 0 || r >= sl.length {
		return nil
	}
	target := r + 1
	traversed := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && traversed+x.levels[i].span <= target {
			traversed += x.levels[i].span
			x = x.levels[i].forward
		}
		if traversed == target {
			return x
		}
	}
	return nil
}
