// Package engine chứa toàn bộ logic đồ thị gia phả: đánh code, duyệt tổ tiên/con
// cháu, tính quan hệ họ hàng và kiểm tra tính nhất quán của cạnh.
//
// Engine chỉ làm việc trên một Graph snapshot (members + parent links của một
// family group) và không tự đọc/ghi store. Service chịu trách nhiệm load
// snapshot trong transaction phù hợp rồi persist kết quả.
package engine

import (
	"sort"

	"family-registry-backend/internal/domains/genealogy/model"
)

// Graph là snapshot bất biến của một family group.
type Graph struct {
	group   model.FamilyGroup
	members map[int64]*model.Member
	ids     []int64

	// parents[child] = links tới cha/mẹ, father trước mother
	parents map[int64][]model.ParentLink
	// children[parent] = links tới con, sort theo child id
	children map[int64][]model.ParentLink

	// links có endpoint không nằm trong group
	dangling []model.ParentLink
}

// NewGraph indexes members and links of one group. Links whose endpoints are
// not members of the snapshot are kept aside and reported by the integrity check.
func NewGraph(group model.FamilyGroup, members []model.Member, links []model.ParentLink) *Graph {
	g := &Graph{
		group:    group,
		members:  make(map[int64]*model.Member, len(members)),
		ids:      make([]int64, 0, len(members)),
		parents:  make(map[int64][]model.ParentLink),
		children: make(map[int64][]model.ParentLink),
	}

	for i := range members {
		m := members[i]
		g.members[m.ID] = &m
		g.ids = append(g.ids, m.ID)
	}
	sort.Slice(g.ids, func(i, j int) bool { return g.ids[i] < g.ids[j] })

	for _, l := range links {
		_, okParent := g.members[l.ParentID]
		_, okChild := g.members[l.ChildID]
		if !okParent || !okChild {
			g.dangling = append(g.dangling, l)
			continue
		}
		g.parents[l.ChildID] = append(g.parents[l.ChildID], l)
		g.children[l.ParentID] = append(g.children[l.ParentID], l)
	}

	for child := range g.parents {
		ls := g.parents[child]
		sort.SliceStable(ls, func(i, j int) bool {
			if ls[i].Role != ls[j].Role {
				return ls[i].Role == model.RoleFather
			}
			return ls[i].ID < ls[j].ID
		})
	}
	for parent := range g.children {
		ls := g.children[parent]
		sort.SliceStable(ls, func(i, j int) bool {
			if ls[i].ChildID != ls[j].ChildID {
				return ls[i].ChildID < ls[j].ChildID
			}
			return ls[i].Role == model.RoleFather && ls[j].Role != model.RoleFather
		})
	}

	return g
}

func (g *Graph) Group() model.FamilyGroup {
	return g.group
}

func (g *Graph) Len() int {
	return len(g.ids)
}

func (g *Graph) Member(id int64) (*model.Member, bool) {
	m, ok := g.members[id]
	return m, ok
}

// MemberIDs returns all member ids in ascending order.
func (g *Graph) MemberIDs() []int64 {
	out := make([]int64, len(g.ids))
	copy(out, g.ids)
	return out
}

// Code trả về code đang lưu của member ("" nếu chưa có)
func (g *Graph) Code(id int64) string {
	return g.members[id].CodeValue()
}

// ParentLinks returns the recorded parent edges of child, father first.
func (g *Graph) ParentLinks(child int64) []model.ParentLink {
	return g.parents[child]
}

// ParentLink returns the edge of the given role, if recorded.
func (g *Graph) ParentLink(child int64, role model.Role) (model.ParentLink, bool) {
	for _, l := range g.parents[child] {
		if l.Role == role {
			return l, true
		}
	}
	return model.ParentLink{}, false
}

// Children returns the distinct children of parent in ascending id order,
// whatever role the parent holds. A child linked twice counts once.
func (g *Graph) Children(parent int64) []int64 {
	ls := g.children[parent]
	out := make([]int64, 0, len(ls))
	for _, l := range ls {
		if n := len(out); n > 0 && out[n-1] == l.ChildID {
			continue
		}
		out = append(out, l.ChildID)
	}
	return out
}

// childLink trả về link đầu tiên (father trước) từ parent tới child
func (g *Graph) childLink(parent, child int64) model.ParentLink {
	for _, l := range g.children[parent] {
		if l.ChildID == child {
			return l
		}
	}
	return model.ParentLink{}
}

func (g *Graph) IsRoot(id int64) bool {
	return len(g.parents[id]) == 0
}

// Roots returns members without any recorded parent, ascending by id.
func (g *Graph) Roots() []int64 {
	var roots []int64
	for _, id := range g.ids {
		if g.IsRoot(id) {
			roots = append(roots, id)
		}
	}
	return roots
}

// PrimaryParent là parent dùng để đánh code: role ưu tiên nếu có, nếu không thì role còn lại.
func (g *Graph) PrimaryParent(child int64, primary model.Role) (int64, bool) {
	if l, ok := g.ParentLink(child, primary); ok {
		return l.ParentID, true
	}
	if l, ok := g.ParentLink(child, primary.Other()); ok {
		return l.ParentID, true
	}
	return 0, false
}

// PrimaryChildren returns the children numbered under parent, ascending by id.
func (g *Graph) PrimaryChildren(parent int64, primary model.Role) []int64 {
	var out []int64
	for _, child := range g.Children(parent) {
		if p, ok := g.PrimaryParent(child, primary); ok && p == parent {
			out = append(out, child)
		}
	}
	return out
}

// IsAncestor reports whether ancestor is reachable from id by following parent
// edges of any role. Visited members are skipped so corrupted data terminates.
func (g *Graph) IsAncestor(ancestor, id int64) bool {
	return len(g.ancestorPath(ancestor, id)) > 0
}

// ancestorPath trả về đường đi [id, ..., ancestor] theo cạnh cha/mẹ, nil nếu không tới được
func (g *Graph) ancestorPath(ancestor, id int64) []int64 {
	via := map[int64]int64{id: id}
	stack := []int64{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, l := range g.parents[cur] {
			if _, seen := via[l.ParentID]; seen {
				continue
			}
			via[l.ParentID] = cur
			if l.ParentID == ancestor {
				path := []int64{ancestor}
				for x := cur; ; x = via[x] {
					path = append(path, x)
					if x == id {
						break
					}
				}
				reverse(path)
				return path
			}
			stack = append(stack, l.ParentID)
		}
	}
	return nil
}

// FindCycle tìm một chu trình bất kỳ trên toàn bộ cạnh (Kahn's algorithm).
// Trả về member ids theo thứ tự tổ tiên -> con cháu, nil nếu đồ thị acyclic.
func (g *Graph) FindCycle() []int64 {
	indegree := make(map[int64]int, len(g.ids))
	for _, id := range g.ids {
		indegree[id] = len(g.distinctParents(id))
	}

	queue := make([]int64, 0, len(g.ids))
	for _, id := range g.ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, child := range g.Children(id) {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if processed == len(g.ids) {
		return nil
	}

	// Node còn lại đều có ít nhất một parent còn lại -> đi ngược sẽ lặp lại
	var start int64
	for _, id := range g.ids {
		if indegree[id] > 0 {
			start = id
			break
		}
	}
	seen := map[int64]int{}
	var walk []int64
	for cur := start; ; {
		if idx, ok := seen[cur]; ok {
			cycle := append([]int64(nil), walk[idx:]...)
			reverse(cycle)
			return cycle
		}
		seen[cur] = len(walk)
		walk = append(walk, cur)
		next := int64(-1)
		for _, p := range g.distinctParents(cur) {
			if indegree[p] > 0 && (next == -1 || p < next) {
				next = p
			}
		}
		if next == -1 {
			return walk
		}
		cur = next
	}
}

func (g *Graph) distinctParents(child int64) []int64 {
	ls := g.parents[child]
	out := make([]int64, 0, len(ls))
	for _, l := range ls {
		dup := false
		for _, p := range out {
			if p == l.ParentID {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, l.ParentID)
		}
	}
	return out
}

func reverse(ids []int64) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
