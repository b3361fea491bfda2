package engine

import (
	"context"
	"fmt"
	"sort"

	"family-registry-backend/internal/domains/genealogy/model"
)

// ============================================================
// ANCESTOR / DESCENDANT WALKER
// ============================================================

// walkDepth clamp depth của request vào [1, MaxWalkDepth]
func (e *Engine) walkDepth(depth int) int {
	if depth <= 0 || depth > e.opts.MaxWalkDepth {
		return e.opts.MaxWalkDepth
	}
	return depth
}

// Ancestors walks parent edges breadth-first from memberID. Generation 1 holds
// the parents; at every member the father branch is queued before the mother.
//
// Each member is visited once. Reaching memberID again returns a CycleError.
// Stopping at the depth cap with parents left unexplored sets Truncated.
func (e *Engine) Ancestors(ctx context.Context, g *Graph, memberID int64, depth int) (*model.WalkResult, error) {
	if _, ok := g.Member(memberID); !ok {
		return nil, fmt.Errorf("ancestors of %d: %w", memberID, model.ErrMemberNotFound)
	}
	maxDepth := e.walkDepth(depth)

	result := &model.WalkResult{MemberID: memberID, MaxDepth: maxDepth, Entries: []model.Lineage{}}
	visited := map[int64]bool{memberID: true}

	type item struct {
		id  int64
		gen int
	}
	queue := []item{{memberID, 0}}
	for n := 0; len(queue) > 0; n++ {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]

		for _, l := range g.ParentLinks(cur.id) {
			if l.ParentID == memberID {
				return nil, &model.CycleError{MemberIDs: g.descentPath(cur.id, memberID)}
			}
			if visited[l.ParentID] {
				continue
			}
			if cur.gen == maxDepth {
				result.Truncated = true
				continue
			}
			visited[l.ParentID] = true
			result.Entries = append(result.Entries, e.lineage(g, l.ParentID, cur.gen+1, cur.id, l.Role))
			queue = append(queue, item{l.ParentID, cur.gen + 1})
		}
	}
	return result, nil
}

// Descendants walks child edges of either role generation by generation,
// ascending by member id inside a generation.
func (e *Engine) Descendants(ctx context.Context, g *Graph, memberID int64, depth int) (*model.WalkResult, error) {
	if _, ok := g.Member(memberID); !ok {
		return nil, fmt.Errorf("descendants of %d: %w", memberID, model.ErrMemberNotFound)
	}
	maxDepth := e.walkDepth(depth)

	result := &model.WalkResult{MemberID: memberID, MaxDepth: maxDepth, Entries: []model.Lineage{}}
	visited := map[int64]bool{memberID: true}
	frontier := []int64{memberID}
	processed := 0

	for gen := 1; len(frontier) > 0; gen++ {
		// child id -> parent đã phát hiện ra nó (parent đứng trước trong frontier)
		via := make(map[int64]int64)
		var next []int64
		for _, parent := range frontier {
			if err := checkCancel(ctx, processed); err != nil {
				return nil, err
			}
			processed++
			for _, child := range g.Children(parent) {
				if child == memberID {
					return nil, &model.CycleError{MemberIDs: g.descentPath(memberID, parent)}
				}
				if visited[child] {
					continue
				}
				if gen > maxDepth {
					result.Truncated = true
					continue
				}
				if _, seen := via[child]; !seen {
					via[child] = parent
					next = append(next, child)
				}
			}
		}
		if gen > maxDepth {
			break
		}

		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, child := range next {
			visited[child] = true
			parent := via[child]
			result.Entries = append(result.Entries, e.lineage(g, child, gen, parent, g.childLink(parent, child).Role))
		}
		frontier = next
	}
	return result, nil
}

// DescendantTree lồng kết quả Descendants thành cây theo Via
func (e *Engine) DescendantTree(ctx context.Context, g *Graph, memberID int64, depth int) (*model.TreeNode, bool, error) {
	walk, err := e.Descendants(ctx, g, memberID, depth)
	if err != nil {
		return nil, false, err
	}

	m, _ := g.Member(memberID)
	root := &model.TreeNode{MemberID: m.ID, FullName: m.FullName, Code: m.CodeValue()}
	nodes := map[int64]*model.TreeNode{memberID: root}
	for _, entry := range walk.Entries {
		node := &model.TreeNode{
			MemberID:   entry.MemberID,
			FullName:   entry.FullName,
			Code:       entry.Code,
			Generation: entry.Generation,
		}
		nodes[entry.MemberID] = node
		parent := nodes[entry.Via]
		parent.Children = append(parent.Children, node)
	}
	return root, walk.Truncated, nil
}

func (e *Engine) lineage(g *Graph, id int64, gen int, via int64, role model.Role) model.Lineage {
	m, _ := g.Member(id)
	return model.Lineage{
		MemberID:   id,
		FullName:   m.FullName,
		Code:       m.CodeValue(),
		Sex:        m.Sex,
		Generation: gen,
		Via:        via,
		Role:       role,
	}
}

// descentPath trả về [ancestor, ..., id] theo thứ tự tổ tiên -> con cháu
func (g *Graph) descentPath(ancestor, id int64) []int64 {
	path := g.ancestorPath(ancestor, id)
	if path == nil {
		return []int64{ancestor, id}
	}
	reverse(path)
	return path
}
