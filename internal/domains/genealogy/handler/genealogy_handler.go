package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/internal/domains/genealogy/service"
	"family-registry-backend/internal/shared/response"
	"family-registry-backend/pkg/logger"
)

// ============================================================
// HANDLER STRUCT
// ============================================================
type Handler struct {
	service service.ServiceInterface
}

func NewHandler(svc service.ServiceInterface) *Handler {
	return &Handler{service: svc}
}

// ========== GROUPS ==========

// CreateGroup - POST /v1/groups
func (h *Handler) CreateGroup(c *gin.Context) {
	var req model.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	group, err := h.service.CreateGroup(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Family group created", group)
}

// ListGroups - GET /v1/groups
func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithTotal(c, http.StatusOK, "Success", groups, len(groups))
}

// GetGroup - GET /v1/groups/:id
func (h *Handler) GetGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	group, err := h.service.GetGroup(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Success", group)
}

// ========== MEMBERS ==========

// ListMembers - GET /v1/groups/:id/members?q=
// q tìm theo tên, không phân biệt dấu
func (h *Handler) ListMembers(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	members, err := h.service.ListMembers(c.Request.Context(), groupID, c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithTotal(c, http.StatusOK, "Success", members, len(members))
}

// CreateMember - POST /v1/groups/:id/members
func (h *Handler) CreateMember(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	resp, err := h.service.CreateMember(c.Request.Context(), groupID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Member created", resp)
}

// GetMember - GET /v1/members/:id
func (h *Handler) GetMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	member, err := h.service.GetMember(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Success", member)
}

// UpdateMember - PUT /v1/members/:id
func (h *Handler) UpdateMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	member, err := h.service.UpdateMember(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Member updated", member)
}

// DeleteMember - DELETE /v1/members/:id
func (h *Handler) DeleteMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.service.DeleteMember(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Member deleted", resp)
}

// ========== PARENT LINKS ==========

// AddParentLink - POST /v1/groups/:id/links
func (h *Handler) AddParentLink(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.AddParentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	resp, err := h.service.AddParentLink(c.Request.Context(), groupID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Parent link added", resp)
}

// RemoveParentLink - DELETE /v1/links/:id
func (h *Handler) RemoveParentLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.service.RemoveParentLink(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Parent link removed", resp)
}

// ========== IDENTIFIER ASSIGNER ==========

// AssignGroup - POST /v1/groups/:id/assign
func (h *Handler) AssignGroup(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.service.AssignGroup(c.Request.Context(), groupID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Codes assigned", resp)
}

// AssignMember - POST /v1/members/:id/assign
func (h *Handler) AssignMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.service.AssignMember(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Subtree codes assigned", resp)
}

// VerifyGroup - GET /v1/groups/:id/verify
func (h *Handler) VerifyGroup(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, err := h.service.VerifyGroup(c.Request.Context(), groupID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Success", report)
}

// ========== WALKER / KINSHIP ==========

// Ancestors - GET /v1/members/:id/ancestors?depth=
func (h *Handler) Ancestors(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	depth, ok := queryDepth(c)
	if !ok {
		return
	}
	result, err := h.service.Ancestors(c.Request.Context(), id, depth)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Success", result)
}

// Descendants - GET /v1/members/:id/descendants?depth=&format=flat|tree
func (h *Handler) Descendants(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	depth, ok := queryDepth(c)
	if !ok {
		return
	}

	switch format := c.DefaultQuery("format", "flat"); format {
	case "flat":
		result, err := h.service.Descendants(c.Request.Context(), id, depth)
		if err != nil {
			h.fail(c, err)
			return
		}
		response.Success(c, http.StatusOK, "Success", result)
	case "tree":
		result, err := h.service.DescendantTree(c.Request.Context(), id, depth)
		if err != nil {
			h.fail(c, err)
			return
		}
		response.Success(c, http.StatusOK, "Success", result)
	default:
		response.ErrorWithCode(c, http.StatusBadRequest, model.ErrCodeInvalidInput, "Invalid query parameters", "format must be flat or tree")
	}
}

// Kinship - GET /v1/kinship?a=&b=
// Kết quả mô tả b là gì của a
func (h *Handler) Kinship(c *gin.Context) {
	a, errA := strconv.ParseInt(c.Query("a"), 10, 64)
	b, errB := strconv.ParseInt(c.Query("b"), 10, 64)
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		response.ErrorWithCode(c, http.StatusBadRequest, model.ErrCodeInvalidInput, "Invalid query parameters", "a and b must be member ids")
		return
	}
	result, err := h.service.Relationship(c.Request.Context(), a, b)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Success", result)
}

// ============================================================
// HELPERS
// ============================================================

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ErrorWithCode(c, http.StatusBadRequest, model.ErrCodeInvalidInput, "Bad Request", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryDepth: bỏ trống = cap mặc định của engine
func queryDepth(c *gin.Context) (int, bool) {
	raw := c.Query("depth")
	if raw == "" {
		return 0, true
	}
	depth, err := strconv.Atoi(raw)
	if err != nil || depth < 1 {
		response.ErrorWithCode(c, http.StatusBadRequest, model.ErrCodeInvalidInput, "Invalid query parameters", "depth must be a positive integer")
		return 0, false
	}
	return depth, true
}

// fail map error -> status + code + details
func (h *Handler) fail(c *gin.Context, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		response.ErrorWithCode(c, http.StatusBadRequest, model.ErrCodeInvalidInput, "Validation failed", verrs)
		return
	}

	status := model.GetHTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.Error("[GENEALOGY] request failed", err)
	}
	_ = c.Error(err)
	response.ErrorWithCode(c, status, model.GetErrorCode(err), err.Error(), errorDetails(err))
}

func errorDetails(err error) interface{} {
	var (
		ve *model.ValidationError
		ce *model.CycleError
		ie *model.IntegrityError
	)
	switch {
	case errors.As(err, &ve):
		return gin.H{
			"reason":    ve.Reason,
			"parent_id": ve.ParentID,
			"child_id":  ve.ChildID,
			"role":      ve.Role,
		}
	case errors.As(err, &ce):
		return gin.H{"member_ids": ce.MemberIDs}
	case errors.As(err, &ie):
		return gin.H{"group_id": ie.GroupID, "member_ids": ie.MemberIDs}
	}
	return nil
}
