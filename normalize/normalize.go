// Package normalize implements the GPAC normalization rewrite system
// (spec §4.D): rewriting every Int gate so its differential variable is
// the independent variable t. The rewrite is a work-list algorithm over
// a priority queue of pending Int gates, ordered to prefer rewrites that
// shrink the sub-circuit first (Case 1 before Case 2 before Case 3,
// resolving Open Question (a) of spec §9).
package normalize

import (
	"container/heap"
	"sort"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gate"
	"github.com/mvance/gpac/gpacerr"
)

// caseRank classifies a non-normalized Int gate's rewrite case so the
// work-list can prefer the rewrite that shrinks the graph fastest.
type caseRank int

const (
	rankCase1 caseRank = iota // Y is an already-normalized Int
	rankCase2                 // Y is a Prod
	rankCase3                 // Y is an Add
	rankUnrewritable
)

// Normalize rewrites c in place so every Int gate's differential
// variable is t. Returns a *gpacerr.NormalizationError if some Int gate
// cannot be rewritten by any of the three cases (spec §4.D).
func Normalize(c *circuit.Circuit) error {
	constCache := make(map[gate.Name]bool)

	wl := newWorklist()
	for _, n := range c.SortedNames() {
		if c.Gates[n].Kind == gate.Int && !c.Gates[n].Normalized() {
			wl.push(c, n)
		}
	}

	for wl.Len() > 0 {
		item := heap.Pop(wl).(*wlItem)
		name := item.name
		g, exists := c.Gates[name]
		if !exists || g.Kind != gate.Int || g.Normalized() {
			continue // superseded by an earlier rewrite (e.g. erased by CSE-like in-place edits)
		}

		yGate, yExists := c.Gates[g.Y]
		if !yExists {
			return gpacerr.NewNormalizationError(name, "differential variable does not reference an existing gate")
		}

		switch {
		case yGate.Kind == gate.Int && yGate.Normalized():
			rewriteCase1(c, name, g, yGate)
			requeueIfPending(c, wl, name)

		case yGate.Kind == gate.Prod:
			if _, err := rewriteCase2(c, name, g, yGate, constCache, wl); err != nil {
				return err
			}

		case yGate.Kind == gate.Add:
			if err := rewriteCase3(c, name, g, yGate, constCache, wl); err != nil {
				return err
			}

		default:
			return gpacerr.NewNormalizationError(name,
				"differential variable is not an Int, Prod, or Add gate and cannot be rewritten")
		}
	}
	return nil
}

// rewriteCase1: Y = int U dt (already normalized) -> g becomes
// int (U*W) dt, a fresh product gate feeding the same Int name.
func rewriteCase1(c *circuit.Circuit, name gate.Name, g, yGate gate.Gate) {
	w := g.X
	u := yGate.X
	prod, _ := c.AddProd("", u, w)
	c.Gates[name] = gate.NewInt(prod, gate.T)
}

// requeueIfPending re-enqueues name if, after an in-place rewrite, it is
// still a non-normalized Int (Case 1 can, in principle, chain).
func requeueIfPending(c *circuit.Circuit, wl *worklist, name gate.Name) {
	if g, exists := c.Gates[name]; exists && g.Kind == gate.Int && !g.Normalized() {
		wl.push(c, name)
	}
}

// rewriteCase2 handles Y = U * V (Prod). Sub-case 2a: one of U, V is a
// constant sub-expression c -> rewrite to int (c*W) d(other), reenqueue.
// Sub-case 2b: split g into i1 + i2, each an Int over one factor, each
// inheriting half the original initial value.
func rewriteCase2(c *circuit.Circuit, name gate.Name, g, yGate gate.Gate, constCache map[gate.Name]bool, wl *worklist) (absorbedConstant bool, err error) {
	u, v := yGate.X, yGate.Y
	w := g.X

	if isConstantSubexpr(c, u, constCache) {
		newProd, _ := c.AddProd("", w, u)
		c.Gates[name] = gate.NewInt(newProd, v)
		requeueIfPending(c, wl, name)
		return true, nil
	}
	if isConstantSubexpr(c, v, constCache) {
		newProd, _ := c.AddProd("", w, v)
		c.Gates[name] = gate.NewInt(newProd, u)
		requeueIfPending(c, wl, name)
		return true, nil
	}

	v0 := c.InitValues[name]
	half := v0 / 2

	prod1, _ := c.AddProd("", u, w)
	i1, _ := c.AddInt("", prod1, v, half)

	prod2, _ := c.AddProd("", w, v)
	i2, _ := c.AddInt("", prod2, u, half)

	c.Gates[name] = gate.NewAdd(i1, i2)
	delete(c.InitValues, name)

	requeueIfPending(c, wl, i1)
	requeueIfPending(c, wl, i2)
	return false, nil
}

// rewriteCase3 handles Y = U + V (Add). Sub-case 3a: one of U, V is a
// constant sub-expression -> drop it (d(U+c) = dU), reenqueue. Sub-case
// 3b: split g into (int W dU) + (int W dV), half initial value each.
func rewriteCase3(c *circuit.Circuit, name gate.Name, g, yGate gate.Gate, constCache map[gate.Name]bool, wl *worklist) error {
	u, v := yGate.X, yGate.Y
	w := g.X

	if isConstantSubexpr(c, u, constCache) {
		c.Gates[name] = gate.NewInt(w, v)
		requeueIfPending(c, wl, name)
		return nil
	}
	if isConstantSubexpr(c, v, constCache) {
		c.Gates[name] = gate.NewInt(w, u)
		requeueIfPending(c, wl, name)
		return nil
	}

	v0 := c.InitValues[name]
	half := v0 / 2

	i1, _ := c.AddInt("", w, u, half)
	i2, _ := c.AddInt("", w, v, half)

	c.Gates[name] = gate.NewAdd(i1, i2)
	delete(c.InitValues, name)

	requeueIfPending(c, wl, i1)
	requeueIfPending(c, wl, i2)
	return nil
}

// isConstantSubexpr reports whether the sub-DAG rooted at name contains
// only Constant, Add, and Prod gates (no t, no Int) — spec §4.D
// sub-cases 2a/3a, memoized per-gate per DESIGN NOTES §9.
func isConstantSubexpr(c *circuit.Circuit, name gate.Name, cache map[gate.Name]bool) bool {
	if name == gate.T {
		return false
	}
	if v, ok := cache[name]; ok {
		return v
	}
	g, exists := c.Gates[name]
	if !exists {
		cache[name] = false
		return false
	}
	var result bool
	switch g.Kind {
	case gate.Constant:
		result = true
	case gate.Add, gate.Prod:
		result = isConstantSubexpr(c, g.X, cache) && isConstantSubexpr(c, g.Y, cache)
	case gate.Int:
		result = false
	}
	cache[name] = result
	return result
}

// worklist is a priority queue over pending Int gate names, ordered by
// (caseRank, name) so that Case 1 rewrites drain first, then Case 2
// (Prod), then Case 3 (Add), with lexicographic tie-breaking.
type worklist struct {
	items []*wlItem
}

type wlItem struct {
	name gate.Name
	rank caseRank
}

func newWorklist() *worklist {
	return &worklist{}
}

func (wl *worklist) push(c *circuit.Circuit, name gate.Name) {
	heap.Push(wl, &wlItem{name: name, rank: classify(c, name)})
}

func classify(c *circuit.Circuit, name gate.Name) caseRank {
	g, exists := c.Gates[name]
	if !exists {
		return rankUnrewritable
	}
	yGate, yExists := c.Gates[g.Y]
	if !yExists {
		return rankUnrewritable
	}
	switch {
	case yGate.Kind == gate.Int && yGate.Normalized():
		return rankCase1
	case yGate.Kind == gate.Prod:
		return rankCase2
	case yGate.Kind == gate.Add:
		return rankCase3
	default:
		return rankUnrewritable
	}
}

// heap.Interface implementation.

func (wl *worklist) Len() int { return len(wl.items) }

func (wl *worklist) Less(i, j int) bool {
	a, b := wl.items[i], wl.items[j]
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	return a.name < b.name
}

func (wl *worklist) Swap(i, j int) { wl.items[i], wl.items[j] = wl.items[j], wl.items[i] }

func (wl *worklist) Push(x interface{}) {
	wl.items = append(wl.items, x.(*wlItem))
}

func (wl *worklist) Pop() interface{} {
	old := wl.items
	n := len(old)
	item := old[n-1]
	wl.items = old[:n-1]
	return item
}

var _ sort.Interface = (*worklist)(nil)
