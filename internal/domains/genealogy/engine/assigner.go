package engine

import (
	"context"
	"fmt"

	"family-registry-backend/internal/domains/genealogy/model"
)

// ============================================================
// IDENTIFIER ASSIGNER
// ============================================================
// Root:     rank trong tập roots (sort theo id tăng dần)   -> G1-001
// Non-root: rank trong primary children của parent          -> G1-001.002
//
// Duyệt bằng work-list (BFS), không đệ quy, nên độ sâu không giới hạn stack.
// Bộ đếm seq của mỗi parent là biến cục bộ của lượt duyệt.

// AssignAll computes the code of every member of the group.
func (e *Engine) AssignAll(ctx context.Context, g *Graph) (map[int64]string, error) {
	if err := e.CheckIntegrity(g); err != nil {
		return nil, err
	}

	prefix := g.Group().CodePrefix
	codes := make(map[int64]string, g.Len())
	roots := g.Roots()
	for i, root := range roots {
		codes[root] = model.RootCode(prefix, i+1)
	}

	if err := e.numberDescendants(ctx, g, roots, codes); err != nil {
		return nil, err
	}

	if len(codes) != g.Len() {
		var missing []int64
		for _, id := range g.ids {
			if _, ok := codes[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, &model.IntegrityError{
			GroupID:   g.Group().ID,
			MemberIDs: missing,
			Message:   "members unreachable from any root",
		}
	}
	return codes, nil
}

// AssignSubtree recomputes the codes of memberID and its primary-lineage
// descendants without touching any other code of the group.
//
// The subtree root keeps its code when it is still valid for its position;
// otherwise it takes the next free sequence under its primary parent (or at
// root level when it has no parent).
func (e *Engine) AssignSubtree(ctx context.Context, g *Graph, memberID int64) (map[int64]string, error) {
	if _, ok := g.Member(memberID); !ok {
		return nil, fmt.Errorf("assign subtree %d: %w", memberID, model.ErrMemberNotFound)
	}
	if err := e.CheckIntegrity(g); err != nil {
		return nil, err
	}

	subtree, err := e.primarySubtree(ctx, g, memberID)
	if err != nil {
		return nil, err
	}

	// code của các member ngoài subtree là cố định
	taken := make(map[string]bool, g.Len())
	for _, id := range g.ids {
		if subtree[id] {
			continue
		}
		if c := g.Code(id); c != "" {
			taken[c] = true
		}
	}

	rootCode, err := e.subtreeRootCode(g, memberID, taken)
	if err != nil {
		return nil, err
	}

	codes := map[int64]string{memberID: rootCode}
	if err := e.numberDescendants(ctx, g, []int64{memberID}, codes); err != nil {
		return nil, err
	}

	for id, c := range codes {
		if taken[c] {
			return nil, &model.IntegrityError{
				GroupID:   g.Group().ID,
				MemberIDs: []int64{id},
				Message:   fmt.Sprintf("computed code %s is already held outside the subtree", c),
			}
		}
	}
	return codes, nil
}

func (e *Engine) subtreeRootCode(g *Graph, memberID int64, taken map[string]bool) (string, error) {
	prefix := g.Group().CodePrefix
	current := g.Code(memberID)

	parent, hasParent := g.PrimaryParent(memberID, e.opts.PrimaryRole)
	if !hasParent {
		if _, ok := model.RootSeq(prefix, current); ok && !taken[current] {
			return current, nil
		}
		next := 1
		for c := range taken {
			if seq, ok := model.RootSeq(prefix, c); ok && seq >= next {
				next = seq + 1
			}
		}
		return model.RootCode(prefix, next), nil
	}

	parentCode := g.Code(parent)
	if parentCode == "" || model.IsPlaceholderCode(parentCode) {
		return "", &model.IntegrityError{
			GroupID:   g.Group().ID,
			MemberIDs: []int64{memberID, parent},
			Message:   "primary parent has no code yet, run a full assignment for the group",
		}
	}
	if _, ok := model.ChildSeq(parentCode, current); ok && !taken[current] {
		return current, nil
	}
	next := 1
	for c := range taken {
		if seq, ok := model.ChildSeq(parentCode, c); ok && seq >= next {
			next = seq + 1
		}
	}
	return model.ChildCode(parentCode, next), nil
}

// primarySubtree trả về tập member thuộc primary lineage bắt đầu từ root
func (e *Engine) primarySubtree(ctx context.Context, g *Graph, root int64) (map[int64]bool, error) {
	set := map[int64]bool{root: true}
	queue := []int64{root}
	for visited := 0; len(queue) > 0; visited++ {
		if err := checkCancel(ctx, visited); err != nil {
			return nil, err
		}
		id := queue[0]
		queue = queue[1:]
		for _, child := range g.PrimaryChildren(id, e.opts.PrimaryRole) {
			if set[child] {
				continue
			}
			set[child] = true
			queue = append(queue, child)
		}
	}
	return set, nil
}

// numberDescendants gán code cho con cháu của các node start (đã có code trong codes).
func (e *Engine) numberDescendants(ctx context.Context, g *Graph, start []int64, codes map[int64]string) error {
	queue := append([]int64(nil), start...)
	for visited := 0; len(queue) > 0; visited++ {
		if err := checkCancel(ctx, visited); err != nil {
			return err
		}
		id := queue[0]
		queue = queue[1:]

		parentCode := codes[id]
		for i, child := range g.PrimaryChildren(id, e.opts.PrimaryRole) {
			if _, done := codes[child]; done {
				return &model.CycleError{MemberIDs: []int64{id, child}}
			}
			codes[child] = model.ChildCode(parentCode, i+1)
			queue = append(queue, child)
		}
	}
	return nil
}

// Verify so sánh code đang lưu với kết quả AssignAll
func (e *Engine) Verify(ctx context.Context, g *Graph) (*model.CodeReport, error) {
	expected, err := e.AssignAll(ctx, g)
	if err != nil {
		return nil, err
	}
	report := &model.CodeReport{
		GroupID: g.Group().ID,
		Members: g.Len(),
		Drifted: []model.CodeDrift{},
	}
	for _, id := range g.ids {
		if stored := g.Code(id); stored != expected[id] {
			report.Drifted = append(report.Drifted, model.CodeDrift{
				MemberID: id,
				Stored:   stored,
				Expected: expected[id],
			})
		}
	}
	report.Consistent = len(report.Drifted) == 0
	return report, nil
}

// ChangedCodes lọc ra các code khác với giá trị đang lưu
func ChangedCodes(g *Graph, codes map[int64]string) map[int64]string {
	out := make(map[int64]string)
	for id, c := range codes {
		if g.Code(id) != c {
			out[id] = c
		}
	}
	return out
}
