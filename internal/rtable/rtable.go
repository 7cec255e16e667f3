// Package rtable implements the router's longest-prefix-match routing
// table: an uncompressed binary trie keyed by the most-significant-first
// bits of an IPv4 address, with insert, delete, exact-match, best-match,
// and change-tracked enumeration.
//
// The trie is an arena of nodes addressed by index rather than pointers, so
// deletion never recurses and the backing slice stays contiguous and
// GC-friendly for a long-lived process. Each node owns at most one Entry;
// children are ordered 0-bit before 1-bit so that depth-first enumeration
// is deterministic.
package rtable

// Entry is a single route: addr/nexthop mirror the wire representation in
// network byte order; len/ifIndex/metric are host-native for arithmetic.
type Entry struct {
	Addr    uint32 // network byte order, meaningful in the top Len bits only
	Len     uint8  // prefix length, 0..32
	IfIndex int    // 0..N-1
	NextHop uint32 // network byte order; 0 means directly connected
	Metric  uint8  // 1..16, 16 means unreachable
	Changed bool   // changed since the last triggered report was drained
}

// node is one trie node. children[0]/children[1] are arena indices, or
// noChild if absent. hasEntry reports whether entry is populated; a node
// with no entry and no children is prunable.
type node struct {
	children [2]int
	hasEntry bool
	entry    Entry
}

const noChild = -1

func newNode() node {
	return node{children: [2]int{noChild, noChild}}
}

// Table is a binary trie of Entry values keyed by (Addr, Len). The zero
// value is not usable; construct with New.
type Table struct {
	nodes []node
}

// New returns an empty routing table with its root node allocated.
func New() *Table {
	t := &Table{nodes: make([]node, 0, 64)}
	t.nodes = append(t.nodes, newNode())
	return t
}

const rootIdx = 0

// bit returns the i-th most-significant bit of addr (0-indexed from the
// top), for i in 0..31.
func bit(addr uint32, i uint8) int {
	return int(addr>>(31-i)) & 1
}

// Insert stores entry, walking or creating entry.Len edges from the root.
// If the terminal node already holds an entry, Changed is preserved only
// when the incoming (NextHop, IfIndex, Metric) triple matches the stored
// one exactly; otherwise, and on any new insertion, Changed is forced true
// regardless of what the caller passed in entry.Changed.
func (t *Table) Insert(entry Entry) {
	idx := rootIdx
	for i := uint8(0); i < entry.Len; i++ {
		b := bit(entry.Addr, i)
		if t.nodes[idx].children[b] == noChild {
			t.nodes = append(t.nodes, newNode())
			t.nodes[idx].children[b] = len(t.nodes) - 1
		}
		idx = t.nodes[idx].children[b]
	}

	n := &t.nodes[idx]
	changed := true
	if n.hasEntry {
		prior := n.entry
		changed = prior.NextHop != entry.NextHop ||
			prior.IfIndex != entry.IfIndex ||
			prior.Metric != entry.Metric
	}
	entry.Changed = changed
	n.entry = entry
	n.hasEntry = true
}

// Remove deletes the entry stored at exactly (addr, len), if any, then
// prunes any now-empty internal nodes back up toward the root. Removing a
// key that is not present is a no-op.
func (t *Table) Remove(addr uint32, length uint8) {
	path := make([]int, 0, length+1)
	idx := rootIdx
	path = append(path, idx)
	for i := uint8(0); i < length; i++ {
		b := bit(addr, i)
		next := t.nodes[idx].children[b]
		if next == noChild {
			return
		}
		idx = next
		path = append(path, idx)
	}

	if !t.nodes[idx].hasEntry {
		return
	}
	t.nodes[idx].hasEntry = false
	t.nodes[idx].entry = Entry{}

	// Unwind from the terminal node back to the root, detaching any node
	// that now holds no entry and has no children. The root is never
	// pruned away (it is always path[0] and Remove never detaches it from
	// its own non-existent parent).
	for i := len(path) - 1; i > 0; i-- {
		cur := path[i]
		n := &t.nodes[cur]
		if n.hasEntry || n.children[0] != noChild || n.children[1] != noChild {
			break
		}
		parent := &t.nodes[path[i-1]]
		b := bit(addr, uint8(i-1))
		parent.children[b] = noChild
	}
}

// BestMatch descends from the root along the bits of addr, remembering the
// deepest node that holds a stored entry, and returns that entry (the
// longest matching prefix). The second return value is false if no stored
// entry covers addr, including when the table is empty.
func (t *Table) BestMatch(addr uint32) (Entry, bool) {
	idx := rootIdx
	best := Entry{}
	found := false
	if t.nodes[idx].hasEntry {
		best = t.nodes[idx].entry
		found = true
	}
	for i := uint8(0); i < 32; i++ {
		b := bit(addr, i)
		next := t.nodes[idx].children[b]
		if next == noChild {
			break
		}
		idx = next
		if t.nodes[idx].hasEntry {
			best = t.nodes[idx].entry
			found = true
		}
	}
	return best, found
}

// ExactMatch returns the entry stored at exactly (addr, len), if any.
func (t *Table) ExactMatch(addr uint32, length uint8) (Entry, bool) {
	idx := rootIdx
	for i := uint8(0); i < length; i++ {
		b := bit(addr, i)
		next := t.nodes[idx].children[b]
		if next == noChild {
			return Entry{}, false
		}
		idx = next
	}
	if !t.nodes[idx].hasEntry {
		return Entry{}, false
	}
	return t.nodes[idx].entry, true
}

// All returns every stored entry via a depth-first, 0-child-before-1-child
// traversal, so the result order is deterministic for a given sequence of
// inserts/removes.
func (t *Table) All() []Entry {
	var out []Entry
	t.walk(rootIdx, func(e Entry) bool {
		out = append(out, e)
		return false
	})
	return out
}

// DrainChanged returns every stored entry whose Changed flag is set, in the
// same deterministic depth-first order as All, and clears Changed on each
// one as it is collected.
func (t *Table) DrainChanged() []Entry {
	var out []Entry
	t.walk(rootIdx, func(e Entry) bool {
		if e.Changed {
			out = append(out, e)
			return true
		}
		return false
	})
	return out
}

// walk performs a depth-first, 0-before-1 traversal starting at idx. For
// every node holding an entry it calls clear with a copy of that entry; if
// clear returns true, the node's stored Changed flag is reset to false.
func (t *Table) walk(idx int, clear func(Entry) bool) {
	n := &t.nodes[idx]
	if n.hasEntry {
		if clear(n.entry) {
			n.entry.Changed = false
		}
	}
	for _, b := range [2]int{0, 1} {
		if c := n.children[b]; c != noChild {
			t.walk(c, clear)
		}
	}
}

// MaskLen returns the prefix length implied by a canonical contiguous mask,
// using the same BigEndian-compatible representation as ripwire.MaskLen so
// the two packages agree on the Addr/Len <-> Addr/Mask conversion at the
// boundary between the wire codec and the table.
func MaskLen(mask uint32) uint8 {
	var n uint8
	for i := 31; i >= 0; i-- {
		if mask>>uint(i)&1 == 0 {
			break
		}
		n++
	}
	return n
}
