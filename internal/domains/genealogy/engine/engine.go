package engine

import (
	"context"
	"fmt"

	"family-registry-backend/internal/domains/genealogy/model"
)

const (
	DefaultMaxWalkDepth    = 20
	DefaultMaxKinshipDepth = 10

	// số node xử lý giữa hai lần kiểm tra ctx
	cancelCheckInterval = 256
)

// Options điều khiển policy của engine
type Options struct {
	// PrimaryRole quyết định child được đánh code dưới father hay mother
	// khi cả hai đều được ghi nhận.
	PrimaryRole     model.Role
	MaxWalkDepth    int
	MaxKinshipDepth int
}

func DefaultOptions() Options {
	return Options{
		PrimaryRole:     model.RoleFather,
		MaxWalkDepth:    DefaultMaxWalkDepth,
		MaxKinshipDepth: DefaultMaxKinshipDepth,
	}
}

// Engine is stateless apart from its options and safe for concurrent use.
type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	if !opts.PrimaryRole.IsValid() {
		opts.PrimaryRole = model.RoleFather
	}
	if opts.MaxWalkDepth <= 0 {
		opts.MaxWalkDepth = DefaultMaxWalkDepth
	}
	if opts.MaxKinshipDepth <= 0 {
		opts.MaxKinshipDepth = DefaultMaxKinshipDepth
	}
	return &Engine{opts: opts}
}

func (e *Engine) Options() Options {
	return e.opts
}

// CheckIntegrity validates the persisted edge set of a snapshot:
// dangling links, two distinct parents for one role, no roots, cycles.
func (e *Engine) CheckIntegrity(g *Graph) error {
	groupID := g.Group().ID

	if len(g.dangling) > 0 {
		ids := make([]int64, 0, len(g.dangling))
		for _, l := range g.dangling {
			ids = append(ids, l.ChildID)
		}
		return &model.IntegrityError{
			GroupID:   groupID,
			MemberIDs: ids,
			Message:   fmt.Sprintf("%d parent link(s) point outside the group", len(g.dangling)),
		}
	}

	for _, id := range g.ids {
		var father, mother int64
		for _, l := range g.parents[id] {
			slot := &father
			if l.Role == model.RoleMother {
				slot = &mother
			}
			if *slot != 0 && *slot != l.ParentID {
				return &model.IntegrityError{
					GroupID:   groupID,
					MemberIDs: []int64{id, *slot, l.ParentID},
					Message:   fmt.Sprintf("member has two different recorded %ss", l.Role),
				}
			}
			*slot = l.ParentID
		}
	}

	if g.Len() > 0 && len(g.Roots()) == 0 {
		return &model.IntegrityError{
			GroupID: groupID,
			Message: "non-empty group has no root member, a cycle is suspected",
		}
	}

	if cycle := g.FindCycle(); cycle != nil {
		return &model.CycleError{MemberIDs: cycle}
	}
	return nil
}

func checkCancel(ctx context.Context, visited int) error {
	if visited%cancelCheckInterval != 0 {
		return nil
	}
	return ctx.Err()
}
