package service

import (
	"context"
	"fmt"

	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/pkg/logger"
)

// ========================================
// WALKER / KINSHIP (read-only, cached)
// ========================================
// Key: genealogy:g:{group}:{kind}:... ; mọi mutation của group xóa theo pattern.

func (s *GenealogyService) Ancestors(ctx context.Context, memberID int64, depth int) (*model.WalkResult, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("genealogy:g:%d:anc:%d:%d", m.GroupID, memberID, depth)
	return cachedRead(ctx, s, "ancestors", key, func() (*model.WalkResult, error) {
		g, err := s.loadGraph(ctx, m.GroupID)
		if err != nil {
			return nil, err
		}
		return s.engine.Ancestors(ctx, g, memberID, depth)
	})
}

func (s *GenealogyService) Descendants(ctx context.Context, memberID int64, depth int) (*model.WalkResult, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("genealogy:g:%d:desc:%d:%d", m.GroupID, memberID, depth)
	return cachedRead(ctx, s, "descendants", key, func() (*model.WalkResult, error) {
		g, err := s.loadGraph(ctx, m.GroupID)
		if err != nil {
			return nil, err
		}
		return s.engine.Descendants(ctx, g, memberID, depth)
	})
}

func (s *GenealogyService) DescendantTree(ctx context.Context, memberID int64, depth int) (*model.DescendantTreeResponse, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("genealogy:g:%d:tree:%d:%d", m.GroupID, memberID, depth)
	return cachedRead(ctx, s, "tree", key, func() (*model.DescendantTreeResponse, error) {
		g, err := s.loadGraph(ctx, m.GroupID)
		if err != nil {
			return nil, err
		}
		tree, truncated, err := s.engine.DescendantTree(ctx, g, memberID, depth)
		if err != nil {
			return nil, err
		}
		return &model.DescendantTreeResponse{MemberID: memberID, Truncated: truncated, Tree: tree}, nil
	})
}

// Relationship: b là gì của a. Hai member khác group không bao giờ có
// tổ tiên chung trong engine nên trả NotRelated.
func (s *GenealogyService) Relationship(ctx context.Context, a, b int64) (*model.Kinship, error) {
	ma, err := s.store.GetMember(ctx, a)
	if err != nil {
		return nil, err
	}
	mb, err := s.store.GetMember(ctx, b)
	if err != nil {
		return nil, err
	}

	var k *model.Kinship
	if ma.GroupID != mb.GroupID {
		k = model.NotRelated(a, b, s.engine.Options().MaxKinshipDepth)
	} else {
		key := fmt.Sprintf("genealogy:g:%d:kin:%d:%d", ma.GroupID, a, b)
		k, err = cachedRead(ctx, s, "kinship", key, func() (*model.Kinship, error) {
			g, err := s.loadGraph(ctx, ma.GroupID)
			if err != nil {
				return nil, err
			}
			return s.engine.Relationship(ctx, g, a, b)
		})
		if err != nil {
			return nil, err
		}
	}

	result := "related"
	if !k.Found {
		result = "not_related"
	}
	kinshipQueries.WithLabelValues(result).Inc()
	return k, nil
}

// cachedRead: cache chỉ là phụ trợ, Redis lỗi thì vẫn tính từ snapshot
func cachedRead[T any](ctx context.Context, s *GenealogyService, kind, key string, load func() (*T, error)) (*T, error) {
	if s.cfg.CacheTTL > 0 {
		var hit T
		found, err := s.cache.Get(ctx, key, &hit)
		switch {
		case err != nil:
			logger.Error(fmt.Sprintf("[GENEALOGY] cache get %s failed", key), err)
		case found:
			cacheLookups.WithLabelValues(kind, "hit").Inc()
			return &hit, nil
		default:
			cacheLookups.WithLabelValues(kind, "miss").Inc()
		}
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	if s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, v, s.cfg.CacheTTL); err != nil {
			logger.Error(fmt.Sprintf("[GENEALOGY] cache set %s failed", key), err)
		}
	}
	return v, nil
}
