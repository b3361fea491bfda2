package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/domains/genealogy/engine"
	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/internal/domains/genealogy/repository"
	"family-registry-backend/internal/infrastructure/lock"
	"family-registry-backend/internal/shared/utils"
	"family-registry-backend/pkg/cache"
	"family-registry-backend/pkg/logger"
)

const defaultRenumberTimeout = 30 * time.Second

// GenealogyService - implements ServiceInterface
type GenealogyService struct {
	store    repository.Store
	engine   *engine.Engine
	locker   lock.Locker
	cache    cache.Cache
	enqueuer Enqueuer
	cfg      Config

	// gộp các LoadSnapshot đồng thời của cùng một group
	loads singleflight.Group
}

// NewService - constructor with DI. cache, locker và enqueuer có thể nil.
func NewService(
	store repository.Store,
	eng *engine.Engine,
	locker lock.Locker,
	c cache.Cache,
	enqueuer Enqueuer,
	cfg Config,
) ServiceInterface {
	if c == nil {
		c = cache.Noop{}
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if cfg.AutoRenumber == "" {
		cfg.AutoRenumber = config.AutoRenumberSync
	}
	if cfg.RenumberTimeout <= 0 {
		cfg.RenumberTimeout = defaultRenumberTimeout
	}
	return &GenealogyService{
		store:    store,
		engine:   eng,
		locker:   locker,
		cache:    c,
		enqueuer: enqueuer,
		cfg:      cfg,
	}
}

// ========================================
// GROUPS
// ========================================

func (s *GenealogyService) CreateGroup(ctx context.Context, req model.CreateGroupRequest) (*model.FamilyGroup, error) {
	req.CodePrefix = strings.ToUpper(strings.TrimSpace(req.CodePrefix))
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !model.IsValidCodePrefix(req.CodePrefix) {
		return nil, model.ErrInvalidCodePrefix
	}

	g := &model.FamilyGroup{
		Name:       utils.NormalizeName(req.Name),
		CodePrefix: req.CodePrefix,
	}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	logger.Info("[GENEALOGY] group created", map[string]interface{}{
		"group_id": g.ID,
		"prefix":   g.CodePrefix,
	})
	return g, nil
}

func (s *GenealogyService) GetGroup(ctx context.Context, id int64) (*model.FamilyGroup, error) {
	return s.store.GetGroup(ctx, id)
}

func (s *GenealogyService) ListGroups(ctx context.Context) ([]model.FamilyGroup, error) {
	return s.store.ListGroups(ctx)
}

// ========================================
// MEMBERS
// ========================================

// ListMembers lọc theo tên không phân biệt hoa thường và dấu
func (s *GenealogyService) ListMembers(ctx context.Context, groupID int64, query string) ([]model.Member, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.store.GetMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return members, nil
	}

	out := make([]model.Member, 0, len(members))
	for _, m := range members {
		if utils.ContainsFolded(m.FullName, query) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *GenealogyService) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	return s.store.GetMember(ctx, id)
}

func (s *GenealogyService) CreateMember(ctx context.Context, groupID int64, req model.CreateMemberRequest) (*model.MemberMutationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	m := req.ToMember(groupID)
	renumber, queued, err := s.mutateGroup(ctx, groupID, "create_member", func(ctx context.Context, tx repository.GroupTx) (int64, error) {
		if err := tx.CreateMember(ctx, m); err != nil {
			return 0, err
		}
		return m.ID, nil
	})
	if err != nil {
		return nil, err
	}

	// đọc lại để lấy code + version sau renumbering
	if fresh, err := s.store.GetMember(ctx, m.ID); err == nil {
		m = fresh
	}
	return &model.MemberMutationResponse{Member: m, Renumber: renumber, Queued: queued}, nil
}

// UpdateMember chỉ đổi thông tin hiển thị. Đổi sex vẫn phải khớp role của
// các link mà member đang làm parent.
func (s *GenealogyService) UpdateMember(ctx context.Context, id int64, req model.UpdateMemberRequest) (*model.Member, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	current, err := s.store.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, release, err := s.lockGroup(ctx, current.GroupID)
	if err != nil {
		return nil, err
	}
	defer release()

	m, err := s.store.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(m)

	if m.Sex != current.Sex {
		if err := s.checkParentRoles(ctx, m); err != nil {
			recordRejection(err)
			return nil, err
		}
	}
	if err := s.store.UpdateMember(ctx, m); err != nil {
		return nil, err
	}
	s.invalidate(ctx, m.GroupID)
	return m, nil
}

func (s *GenealogyService) checkParentRoles(ctx context.Context, m *model.Member) error {
	links, err := s.store.GetParentLinks(ctx, m.GroupID)
	if err != nil {
		return err
	}
	for _, l := range links {
		if l.ParentID != m.ID {
			continue
		}
		if (l.Role == model.RoleFather && m.Sex == model.SexFemale) ||
			(l.Role == model.RoleMother && m.Sex == model.SexMale) {
			p := model.LinkProposal{GroupID: m.GroupID, ParentID: l.ParentID, ChildID: l.ChildID, Role: l.Role}
			return model.NewValidationError(model.ReasonSexMismatch, p,
				"member %d is recorded as %s of %d and cannot become %s", m.ID, l.Role, l.ChildID, m.Sex)
		}
	}
	return nil
}

// DeleteMember xóa member cùng mọi link của nó rồi tính lại code cả group,
// vì con của member có thể trở thành root.
func (s *GenealogyService) DeleteMember(ctx context.Context, id int64) (*model.MemberMutationResponse, error) {
	m, err := s.store.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	renumber, queued, err := s.mutateGroup(ctx, m.GroupID, "delete_member", func(ctx context.Context, tx repository.GroupTx) (int64, error) {
		return 0, tx.DeleteMember(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("[GENEALOGY] member deleted", map[string]interface{}{
		"group_id":  m.GroupID,
		"member_id": id,
	})
	return &model.MemberMutationResponse{Member: m, Renumber: renumber, Queued: queued}, nil
}

// ========================================
// PARENT LINKS
// ========================================

// AddParentLink: precheck -> cross-group check -> (tx: snapshot -> Guard -> insert -> renumber)
func (s *GenealogyService) AddParentLink(ctx context.Context, groupID int64, req model.AddParentLinkRequest) (*model.LinkMutationResponse, error) {
	p := req.ToProposal(groupID)
	if err := engine.PrecheckLink(p); err != nil {
		recordRejection(err)
		return nil, err
	}
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	members, err := s.lookupMembers(ctx, p.ParentID, p.ChildID)
	if err != nil {
		return nil, err
	}
	if err := engine.CheckSameGroup(groupID, p, members...); err != nil {
		recordRejection(err)
		return nil, err
	}

	link := &model.ParentLink{ParentID: p.ParentID, ChildID: p.ChildID, Role: p.Role}
	renumber, queued, err := s.mutateGroup(ctx, groupID, "add_parent_link", func(ctx context.Context, tx repository.GroupTx) (int64, error) {
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return 0, err
		}
		g := engine.NewGraph(snap.Group, snap.Members, snap.Links)
		if err := s.engine.ValidateLink(g, p); err != nil {
			return 0, err
		}
		if err := tx.InsertParentLink(ctx, link); err != nil {
			return 0, err
		}
		return p.ChildID, nil
	})
	if err != nil {
		recordRejection(err)
		return nil, err
	}

	logger.Info("[GENEALOGY] parent link added", map[string]interface{}{
		"group_id":  groupID,
		"link_id":   link.ID,
		"parent_id": link.ParentID,
		"child_id":  link.ChildID,
		"role":      link.Role,
	})
	return &model.LinkMutationResponse{Link: link, Renumber: renumber, Queued: queued}, nil
}

// RemoveParentLink xóa cạnh và tính lại subtree của child
func (s *GenealogyService) RemoveParentLink(ctx context.Context, linkID int64) (*model.LinkMutationResponse, error) {
	l, err := s.store.GetParentLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	renumber, queued, err := s.mutateGroup(ctx, l.GroupID, "remove_parent_link", func(ctx context.Context, tx repository.GroupTx) (int64, error) {
		if err := tx.DeleteParentLink(ctx, linkID); err != nil {
			return 0, err
		}
		return l.ChildID, nil
	})
	if err != nil {
		return nil, err
	}
	return &model.LinkMutationResponse{Link: l, Renumber: renumber, Queued: queued}, nil
}

// lookupMembers trả nil cho id không tồn tại; Guard sẽ báo unknown_member
func (s *GenealogyService) lookupMembers(ctx context.Context, ids ...int64) ([]*model.Member, error) {
	out := make([]*model.Member, 0, len(ids))
	for _, id := range ids {
		m, err := s.store.GetMember(ctx, id)
		if errors.Is(err, model.ErrMemberNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func recordRejection(err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		guardRejections.WithLabelValues(string(ve.Reason)).Inc()
	}
}

// ========================================
// MUTATION PIPELINE
// ========================================

// mutationFunc ghi thay đổi trong tx và trả về member cần renumber (0 = cả group)
type mutationFunc func(ctx context.Context, tx repository.GroupTx) (int64, error)

// mutateGroup: group lock -> tx(fn, renumber nếu sync) -> xóa cache -> enqueue nếu async
func (s *GenealogyService) mutateGroup(ctx context.Context, groupID int64, op string, fn mutationFunc) (*model.AssignResponse, bool, error) {
	ctx, release, err := s.lockGroup(ctx, groupID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	var (
		scope    int64
		renumber *model.AssignResponse
	)
	err = s.store.WithGroupTx(ctx, groupID, func(tx repository.GroupTx) error {
		var err error
		if scope, err = fn(ctx, tx); err != nil {
			return err
		}
		if s.cfg.AutoRenumber != config.AutoRenumberSync {
			return nil
		}
		renumber, err = s.renumberInTx(ctx, tx, groupID, scope)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	s.invalidate(ctx, groupID)

	queued := false
	if s.cfg.AutoRenumber == config.AutoRenumberAsync {
		queued = s.enqueueRenumber(ctx, groupID, scope, op)
	}
	return renumber, queued, nil
}

// lockGroup giữ group lock; ctx trả về mang timeout của renumbering
func (s *GenealogyService) lockGroup(ctx context.Context, groupID int64) (context.Context, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RenumberTimeout)
	unlock, err := s.locker.Lock(ctx, groupID)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return ctx, func() {
		unlock()
		cancel()
	}, nil
}

// renumberInTx tính code trên snapshot của chính tx rồi chỉ ghi các code đã đổi
func (s *GenealogyService) renumberInTx(ctx context.Context, tx repository.GroupTx, groupID, memberID int64) (*model.AssignResponse, error) {
	scope := "group"
	if memberID != 0 {
		scope = "subtree"
	}
	start := time.Now()
	defer func() {
		renumberDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
	}()

	snap, err := tx.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	g := engine.NewGraph(snap.Group, snap.Members, snap.Links)

	var codes map[int64]string
	if memberID == 0 {
		codes, err = s.engine.AssignAll(ctx, g)
	} else {
		codes, err = s.engine.AssignSubtree(ctx, g, memberID)
	}
	if err != nil {
		return nil, err
	}

	changed := engine.ChangedCodes(g, codes)
	if len(changed) > 0 {
		if err := tx.UpsertCodes(ctx, changed); err != nil {
			return nil, err
		}
	}
	renumberChanged.Observe(float64(len(changed)))

	resp := &model.AssignResponse{GroupID: groupID, Changed: len(changed), Codes: codes}
	if memberID != 0 {
		root := memberID
		resp.RootID = &root
	}
	return resp, nil
}

// enqueueRenumber chạy sau commit: lỗi enqueue không rollback mutation,
// drift còn lại sẽ được verify_codes hằng đêm phát hiện.
func (s *GenealogyService) enqueueRenumber(ctx context.Context, groupID, memberID int64, reason string) bool {
	if s.enqueuer == nil {
		logger.Info("[GENEALOGY] async renumbering requested without a queue", map[string]interface{}{
			"group_id": groupID,
		})
		return false
	}

	var err error
	if memberID == 0 {
		err = s.enqueuer.EnqueueRenumberGroup(ctx, groupID, reason)
	} else {
		err = s.enqueuer.EnqueueRenumberSubtree(ctx, groupID, memberID, reason)
	}
	if err != nil {
		logger.Warn("[GENEALOGY] enqueue renumbering failed, left for verify_codes", err, map[string]interface{}{
			"group_id":  groupID,
			"member_id": memberID,
			"reason":    reason,
		})
		return false
	}
	return true
}

// ========================================
// IDENTIFIER ASSIGNER
// ========================================

func (s *GenealogyService) AssignGroup(ctx context.Context, groupID int64) (*model.AssignResponse, error) {
	return s.assign(ctx, groupID, 0)
}

func (s *GenealogyService) AssignMember(ctx context.Context, memberID int64) (*model.AssignResponse, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return s.assign(ctx, m.GroupID, memberID)
}

func (s *GenealogyService) assign(ctx context.Context, groupID, memberID int64) (*model.AssignResponse, error) {
	ctx, release, err := s.lockGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer release()

	var resp *model.AssignResponse
	err = s.store.WithGroupTx(ctx, groupID, func(tx repository.GroupTx) error {
		var err error
		resp, err = s.renumberInTx(ctx, tx, groupID, memberID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if resp.Changed > 0 {
		s.invalidate(ctx, groupID)
	}

	logger.Info("[GENEALOGY] codes assigned", map[string]interface{}{
		"group_id":  groupID,
		"member_id": memberID,
		"changed":   resp.Changed,
		"total":     len(resp.Codes),
	})
	return resp, nil
}

// VerifyGroup so sánh code đang lưu với kết quả AssignAll, không ghi gì
func (s *GenealogyService) VerifyGroup(ctx context.Context, groupID int64) (*model.CodeReport, error) {
	g, err := s.loadGraph(ctx, groupID)
	if err != nil {
		return nil, err
	}
	report, err := s.engine.Verify(ctx, g)
	if err != nil {
		return nil, err
	}
	if !report.Consistent {
		logger.Warn("[GENEALOGY] code drift detected", nil, map[string]interface{}{
			"group_id": groupID,
			"drifted":  len(report.Drifted),
		})
	}
	return report, nil
}

// ========================================
// SNAPSHOT + CACHE
// ========================================

// loadGraph gộp các lần đọc snapshot đồng thời của cùng group.
// Lượt load chạy trên context tách khỏi caller đầu tiên; mỗi caller chỉ
// chờ theo ctx của chính mình.
func (s *GenealogyService) loadGraph(ctx context.Context, groupID int64) (*engine.Graph, error) {
	ch := s.loads.DoChan(strconv.FormatInt(groupID, 10), func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)
		if s.cfg.RenumberTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, s.cfg.RenumberTimeout)
			defer cancel()
		}
		snap, err := s.store.LoadSnapshot(loadCtx, groupID)
		if err != nil {
			return nil, err
		}
		return engine.NewGraph(snap.Group, snap.Members, snap.Links), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*engine.Graph), nil
	}
}

func groupCachePattern(groupID int64) string {
	return fmt.Sprintf("genealogy:g:%d:*", groupID)
}

func (s *GenealogyService) invalidate(ctx context.Context, groupID int64) {
	// load đang bay có thể đã đọc state trước commit
	s.loads.Forget(strconv.FormatInt(groupID, 10))
	if err := s.cache.DeletePattern(ctx, groupCachePattern(groupID)); err != nil {
		logger.Error(fmt.Sprintf("[GENEALOGY] cache invalidation failed for group %d", groupID), err)
	}
}
