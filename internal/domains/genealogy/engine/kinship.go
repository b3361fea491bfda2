package engine

import (
	"context"
	"fmt"

	"family-registry-backend/internal/domains/genealogy/model"
)

// ============================================================
// KINSHIP RESOLVER (bidirectional ascent)
// ============================================================

// ascent là kết quả đi lên từ một member: khoảng cách ngắn nhất tới từng tổ tiên
// (kể cả chính nó ở distance 0) và thứ tự phát hiện father-first.
type ascent struct {
	distance map[int64]int
	order    []int64
}

func (e *Engine) ascend(ctx context.Context, g *Graph, from int64) (*ascent, error) {
	a := &ascent{
		distance: map[int64]int{from: 0},
		order:    []int64{from},
	}
	queue := []int64{from}
	for n := 0; len(queue) > 0; n++ {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		id := queue[0]
		queue = queue[1:]
		d := a.distance[id]
		if d == e.opts.MaxKinshipDepth {
			continue
		}
		for _, l := range g.ParentLinks(id) {
			if _, seen := a.distance[l.ParentID]; seen {
				continue
			}
			a.distance[l.ParentID] = d + 1
			a.order = append(a.order, l.ParentID)
			queue = append(queue, l.ParentID)
		}
	}
	return a, nil
}

// Relationship finds the nearest common ancestors of a and b. The result
// describes what b is to a. No common ancestor within the cap is a
// NotRelated result, not an error.
func (e *Engine) Relationship(ctx context.Context, g *Graph, a, b int64) (*model.Kinship, error) {
	for _, id := range []int64{a, b} {
		if _, ok := g.Member(id); !ok {
			return nil, fmt.Errorf("relationship %d/%d: member %d: %w", a, b, id, model.ErrMemberNotFound)
		}
	}

	fromA, err := e.ascend(ctx, g, a)
	if err != nil {
		return nil, err
	}
	fromB, err := e.ascend(ctx, g, b)
	if err != nil {
		return nil, err
	}

	// Duyệt theo thứ tự phát hiện của A: candidates giữ luôn thứ tự ưu tiên father-first.
	best := -1
	var candidates []int64
	for _, id := range fromA.order {
		dB, ok := fromB.distance[id]
		if !ok {
			continue
		}
		total := fromA.distance[id] + dB
		switch {
		case best == -1 || total < best:
			best = total
			candidates = []int64{id}
		case total == best:
			candidates = append(candidates, id)
		}
	}
	if best == -1 {
		return model.NotRelated(a, b, e.opts.MaxKinshipDepth), nil
	}

	common := make([]model.CommonAncestor, 0, len(candidates))
	for _, id := range candidates {
		m, _ := g.Member(id)
		common = append(common, model.CommonAncestor{
			MemberID:  id,
			FullName:  m.FullName,
			Code:      m.CodeValue(),
			DistanceA: fromA.distance[id],
			DistanceB: fromB.distance[id],
		})
	}

	nearest := common[0]
	mb, _ := g.Member(b)
	return &model.Kinship{
		MemberA:         a,
		MemberB:         b,
		Found:           true,
		CommonAncestor:  &nearest,
		CommonAncestors: common,
		DistanceA:       nearest.DistanceA,
		DistanceB:       nearest.DistanceB,
		Degree:          best,
		Type:            model.ClassifyRelation(nearest.DistanceA, nearest.DistanceB),
		Label:           model.GenderedLabel(nearest.DistanceA, nearest.DistanceB, mb.Sex),
		MaxDepth:        e.opts.MaxKinshipDepth,
	}, nil
}
