// Package rbtree implements a red-black tree whose nodes live in an arena and
// are addressed by stable handles.
//
// A node is allocated once with Alloc and may then be inserted into and
// removed from the tree any number of times without losing its identity. This
// is what the scheduler relies on: a thread keeps its handle for its whole
// lifetime while moving in and out of the run queue.
//
// Duplicate keys are allowed. Equal keys are ordered by tree position: an
// insert descends to the right of every equal key already present.
//
// The tree is not safe for concurrent use.
package rbtree

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// Handle addresses a node in the tree arena.
type Handle int32

// Nil is the absent handle.
const Nil Handle = -1

// ErrInvariant is wrapped by every error returned from Verify.
var ErrInvariant = errors.New("rbtree: invariant violated")

type color uint8

const (
	red color = iota
	black
)

type node[K constraints.Ordered, V any] struct {
	key    K
	value  V
	left   Handle
	right  Handle
	parent Handle
	color  color
	used   bool
}

// Tree is an ordered multiset of keyed values.
type Tree[K constraints.Ordered, V any] struct {
	nodes []node[K, V]
	free  []Handle
	root  Handle
	size  int
}

// New returns an empty tree.
func New[K constraints.Ordered, V any]() *Tree[K, V] {
	return &Tree[K, V]{root: Nil}
}

// Alloc reserves a detached node holding key and value.
func (t *Tree[K, V]) Alloc(key K, value V) Handle {
	n := node[K, V]{key: key, value: value, left: Nil, right: Nil, parent: Nil, color: red, used: true}
	if l := len(t.free); l > 0 {
		h := t.free[l-1]
		t.free = t.free[:l-1]
		t.nodes[h] = n
		return h
	}
	t.nodes = append(t.nodes, n)
	return Handle(len(t.nodes) - 1)
}

// Release removes h from the tree if needed and returns its slot to the arena.
// Releasing an unknown handle is a no-op.
func (t *Tree[K, V]) Release(h Handle) {
	if !t.valid(h) {
		return
	}
	t.Remove(h)
	t.nodes[h] = node[K, V]{left: Nil, right: Nil, parent: Nil}
	t.free = append(t.free, h)
}

// Len returns the number of nodes currently in the tree.
func (t *Tree[K, V]) Len() int { return t.size }

// Empty reports whether the tree holds no nodes.
func (t *Tree[K, V]) Empty() bool { return t.root == Nil }

// Contains reports whether h is currently linked into the tree. O(1).
func (t *Tree[K, V]) Contains(h Handle) bool {
	if !t.valid(h) {
		return false
	}
	return t.nodes[h].parent != Nil || t.root == h
}

// Key returns the key stored at h.
func (t *Tree[K, V]) Key(h Handle) K { return t.at(h).key }

// Value returns the value stored at h.
func (t *Tree[K, V]) Value(h Handle) V { return t.at(h).value }

// SetKey changes the key of h, re-keying it (remove then insert) when it is in
// the tree.
func (t *Tree[K, V]) SetKey(h Handle, key K) {
	n := t.at(h)
	if !t.Contains(h) {
		n.key = key
		return
	}
	t.Remove(h)
	t.nodes[h].key = key
	t.Insert(h)
}

// Min returns the leftmost node, or Nil when the tree is empty.
func (t *Tree[K, V]) Min() Handle {
	if t.root == Nil {
		return Nil
	}
	return t.minimum(t.root)
}

// Insert links h into the tree. Inserting a node already present is a no-op.
func (t *Tree[K, V]) Insert(h Handle) {
	n := t.at(h)
	if t.Contains(h) {
		return
	}
	n.left, n.right, n.parent, n.color = Nil, Nil, Nil, red

	parent := Nil
	for cur := t.root; cur != Nil; {
		parent = cur
		if n.key < t.nodes[cur].key {
			cur = t.nodes[cur].left
		} else {
			cur = t.nodes[cur].right
		}
	}

	n.parent = parent
	switch {
	case parent == Nil:
		t.root = h
	case n.key < t.nodes[parent].key:
		t.nodes[parent].left = h
	default:
		t.nodes[parent].right = h
	}
	t.size++
	t.insertFixup(h)
}

func (t *Tree[K, V]) insertFixup(x Handle) {
	for {
		p := t.nodes[x].parent
		if p == Nil {
			t.nodes[x].color = black
			return
		}
		if t.nodes[p].color == black {
			return
		}

		// p is red, so it is not the root and g exists.
		g := t.nodes[p].parent
		u := t.nodes[g].left
		if u == p {
			u = t.nodes[g].right
		}
		if t.isRed(u) {
			t.nodes[p].color = black
			t.nodes[u].color = black
			t.nodes[g].color = red
			x = g
			continue
		}

		// Inner grandchild: rotate it to the outside first.
		if x == t.nodes[p].right && p == t.nodes[g].left {
			t.rotateLeft(p)
			x, p = p, x
		} else if x == t.nodes[p].left && p == t.nodes[g].right {
			t.rotateRight(p)
			x, p = p, x
		}

		if x == t.nodes[p].left {
			t.rotateRight(g)
		} else {
			t.rotateLeft(g)
		}
		t.nodes[p].color = black
		t.nodes[g].color = red
		return
	}
}

// Remove unlinks h from the tree. The node keeps its key and value and can be
// inserted again. Removing a node that is not in the tree is a no-op.
//
// When h has two children its in-order successor is spliced into h's
// position; keys are never exchanged between nodes.
func (t *Tree[K, V]) Remove(z Handle) {
	if !t.Contains(z) {
		return
	}

	removedColor := t.nodes[z].color
	var x, xParent Handle

	switch {
	case t.nodes[z].left == Nil:
		x = t.nodes[z].right
		xParent = t.nodes[z].parent
		t.transplant(z, x)
	case t.nodes[z].right == Nil:
		x = t.nodes[z].left
		xParent = t.nodes[z].parent
		t.transplant(z, x)
	default:
		y := t.minimum(t.nodes[z].right)
		removedColor = t.nodes[y].color
		x = t.nodes[y].right
		if t.nodes[y].parent == z {
			xParent = y
		} else {
			xParent = t.nodes[y].parent
			t.transplant(y, x)
			t.nodes[y].right = t.nodes[z].right
			t.nodes[t.nodes[y].right].parent = y
		}
		t.transplant(z, y)
		t.nodes[y].left = t.nodes[z].left
		t.nodes[t.nodes[y].left].parent = y
		t.nodes[y].color = t.nodes[z].color
	}

	n := &t.nodes[z]
	n.left, n.right, n.parent, n.color = Nil, Nil, Nil, red
	t.size--

	if removedColor == black {
		t.removeFixup(x, xParent)
	}
}

// removeFixup resolves the double-black left at x. x may be Nil, which is why
// its parent is tracked separately.
func (t *Tree[K, V]) removeFixup(x, p Handle) {
	for x != t.root && !t.isRed(x) {
		if x == t.nodes[p].left {
			w := t.nodes[p].right
			if t.isRed(w) {
				t.nodes[w].color = black
				t.nodes[p].color = red
				t.rotateLeft(p)
				w = t.nodes[p].right
			}
			if !t.isRed(t.nodes[w].left) && !t.isRed(t.nodes[w].right) {
				t.nodes[w].color = red
				x = p
				p = t.nodes[x].parent
				continue
			}
			if !t.isRed(t.nodes[w].right) {
				t.nodes[t.nodes[w].left].color = black
				t.nodes[w].color = red
				t.rotateRight(w)
				w = t.nodes[p].right
			}
			t.nodes[w].color = t.nodes[p].color
			t.nodes[p].color = black
			t.nodes[t.nodes[w].right].color = black
			t.rotateLeft(p)
			x = t.root
		} else {
			w := t.nodes[p].left
			if t.isRed(w) {
				t.nodes[w].color = black
				t.nodes[p].color = red
				t.rotateRight(p)
				w = t.nodes[p].left
			}
			if !t.isRed(t.nodes[w].left) && !t.isRed(t.nodes[w].right) {
				t.nodes[w].color = red
				x = p
				p = t.nodes[x].parent
				continue
			}
			if !t.isRed(t.nodes[w].left) {
				t.nodes[t.nodes[w].right].color = black
				t.nodes[w].color = red
				t.rotateLeft(w)
				w = t.nodes[p].left
			}
			t.nodes[w].color = t.nodes[p].color
			t.nodes[p].color = black
			t.nodes[t.nodes[w].left].color = black
			t.rotateRight(p)
			x = t.root
		}
	}
	if x != Nil {
		t.nodes[x].color = black
	}
}

// Ascend calls fn for each node in key order until fn returns false.
func (t *Tree[K, V]) Ascend(fn func(h Handle) bool) {
	var stack []Handle
	cur := t.root
	for cur != Nil || len(stack) > 0 {
		for cur != Nil {
			stack = append(stack, cur)
			cur = t.nodes[cur].left
		}
		cur = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			return
		}
		cur = t.nodes[cur].right
	}
}

// Verify checks every red-black and ordering invariant.
func (t *Tree[K, V]) Verify() error {
	if t.root == Nil {
		if t.size != 0 {
			return fmt.Errorf("%w: empty tree with size %d", ErrInvariant, t.size)
		}
		return nil
	}
	if t.nodes[t.root].parent != Nil {
		return fmt.Errorf("%w: root %d has a parent", ErrInvariant, t.root)
	}
	if t.nodes[t.root].color != black {
		return fmt.Errorf("%w: root %d is red", ErrInvariant, t.root)
	}
	count := 0
	if _, err := t.verify(t.root, &count); err != nil {
		return err
	}
	if count != t.size {
		return fmt.Errorf("%w: counted %d nodes, size is %d", ErrInvariant, count, t.size)
	}

	first := true
	var prev K
	var err error
	t.Ascend(func(h Handle) bool {
		k := t.nodes[h].key
		if !first && k < prev {
			err = fmt.Errorf("%w: key order broken at node %d", ErrInvariant, h)
			return false
		}
		first, prev = false, k
		return true
	})
	return err
}

func (t *Tree[K, V]) verify(h Handle, count *int) (int, error) {
	if h == Nil {
		return 1, nil
	}
	*count++
	n := &t.nodes[h]
	for _, c := range [2]Handle{n.left, n.right} {
		if c == Nil {
			continue
		}
		if t.nodes[c].parent != h {
			return 0, fmt.Errorf("%w: node %d has wrong parent link", ErrInvariant, c)
		}
		if n.color == red && t.nodes[c].color == red {
			return 0, fmt.Errorf("%w: red node %d has red child %d", ErrInvariant, h, c)
		}
	}
	if n.left != Nil && t.nodes[h].key < t.nodes[n.left].key {
		return 0, fmt.Errorf("%w: left child of %d has a larger key", ErrInvariant, h)
	}
	if n.right != Nil && t.nodes[n.right].key < t.nodes[h].key {
		return 0, fmt.Errorf("%w: right child of %d has a smaller key", ErrInvariant, h)
	}

	lh, err := t.verify(n.left, count)
	if err != nil {
		return 0, err
	}
	rh, err := t.verify(n.right, count)
	if err != nil {
		return 0, err
	}
	if lh != rh {
		return 0, fmt.Errorf("%w: black height differs under node %d (%d vs %d)", ErrInvariant, h, lh, rh)
	}
	if n.color == black {
		lh++
	}
	return lh, nil
}

func (t *Tree[K, V]) valid(h Handle) bool {
	return h >= 0 && int(h) < len(t.nodes) && t.nodes[h].used
}

func (t *Tree[K, V]) at(h Handle) *node[K, V] {
	if !t.valid(h) {
		panic(fmt.Sprintf("rbtree: invalid handle %d", h))
	}
	return &t.nodes[h]
}

func (t *Tree[K, V]) isRed(h Handle) bool {
	return h != Nil && t.nodes[h].color == red
}

func (t *Tree[K, V]) minimum(h Handle) Handle {
	for t.nodes[h].left != Nil {
		h = t.nodes[h].left
	}
	return h
}

// transplant puts v where u was in u's parent. v may be Nil.
func (t *Tree[K, V]) transplant(u, v Handle) {
	p := t.nodes[u].parent
	switch {
	case p == Nil:
		t.root = v
	case u == t.nodes[p].left:
		t.nodes[p].left = v
	default:
		t.nodes[p].right = v
	}
	if v != Nil {
		t.nodes[v].parent = p
	}
}

func (t *Tree[K, V]) rotateLeft(x Handle) {
	y := t.nodes[x].right
	t.nodes[x].right = t.nodes[y].left
	if t.nodes[y].left != Nil {
		t.nodes[t.nodes[y].left].parent = x
	}
	t.transplant(x, y)
	t.nodes[y].left = x
	t.nodes[x].parent = y
}

func (t *Tree[K, V]) rotateRight(x Handle) {
	y := t.nodes[x].left
	t.nodes[x].left = t.nodes[y].right
	if t.nodes[y].right != Nil {
		t.nodes[t.nodes[y].right].parent = x
	}
	t.transplant(x, y)
	t.nodes[y].right = x
	t.nodes[x].parent = y
}
