package path

import (
	"container/heap"

	"github.com/kasuganosora/towerdefense/game/grid"
)

// Route is an ordered list of adjacent cells from start to end.
type Route []grid.Cell

// Len returns the number of cells in the route.
func (r Route) Len() int { return len(r) }

// Valid reports whether consecutive cells are adjacent.
func (r Route) Valid() bool {
	for i := 1; i < len(r); i++ {
		if !r[i-1].Adjacent(r[i]) {
			return false
		}
	}
	return true
}

type cacheKey struct {
	start, end grid.Cell
	version    uint64
}

// Finder computes shortest routes over a grid and caches them per grid version.
// It is not safe for concurrent use.
type Finder struct {
	g     *grid.Grid
	cache map[cacheKey]Route
}

// NewFinder creates a Finder bound to g.
func NewFinder(g *grid.Grid) *Finder {
	return &Finder{g: g, cache: make(map[cacheKey]Route)}
}

// FindRoute returns a shortest route from start to end, or an empty route if
// end cannot be reached. The returned slice is a copy.
func (f *Finder) FindRoute(start, end grid.Cell) Route {
	key := cacheKey{start: start, end: end, version: f.g.Version()}
	r, ok := f.cache[key]
	if !ok {
		r = f.dijkstra(start, end)
		f.cache[key] = r
	}
	out := make(Route, len(r))
	copy(out, r)
	return out
}

// Invalidate drops every cached route.
func (f *Finder) Invalidate() {
	f.cache = make(map[cacheKey]Route)
}

// CacheLen returns the number of cached entries.
func (f *Finder) CacheLen() int { return len(f.cache) }

// Distance returns the number of edges on the shortest route, or -1.
func (f *Finder) Distance(start, end grid.Cell) int {
	return len(f.FindRoute(start, end)) - 1
}

type node struct {
	cell grid.Cell
	dist int
	seq  int // insertion order; breaks ties deterministically
}

type queue []node

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x interface{}) { *q = append(*q, x.(node)) }
func (q *queue) Pop() interface{} {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

// dijkstra runs a uniform-weight search. Edge weights are all 1 today but the
// weight function is kept separate so terrain costs can be added.
func (f *Finder) dijkstra(start, end grid.Cell) Route {
	g := f.g
	if !g.Passable(start) || !g.Passable(end) {
		return Route{}
	}
	if start == end {
		return Route{start}
	}

	n := g.Rows() * g.Cols()
	idx := func(c grid.Cell) int { return c.Row*g.Cols() + c.Col }
	dist := make([]int, n)
	prev := make([]int, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = -1
		prev[i] = -1
	}

	seq := 0
	pq := &queue{}
	dist[idx(start)] = 0
	heap.Push(pq, node{cell: start, dist: 0, seq: seq})

	var nb []grid.Cell
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(node)
		ci := idx(cur.cell)
		if done[ci] {
			continue
		}
		done[ci] = true
		if cur.cell == end {
			break
		}
		nb = g.Neighbors(nb[:0], cur.cell)
		for _, next := range nb {
			ni := idx(next)
			if done[ni] || !g.Passable(next) {
				continue
			}
			nd := cur.dist + weight(cur.cell, next)
			if dist[ni] == -1 || nd < dist[ni] {
				dist[ni] = nd
				prev[ni] = ci
				seq++
				heap.Push(pq, node{cell: next, dist: nd, seq: seq})
			}
		}
	}

	ei := idx(end)
	if !done[ei] {
		return Route{}
	}
	var r Route
	for i := ei; i != -1; i = prev[i] {
		r = append(r, grid.Cell{Row: i / g.Cols(), Col: i % g.Cols()})
	}
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return r
}

func weight(_, _ grid.Cell) int { return 1 }
