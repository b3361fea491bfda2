package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes gắn toàn bộ genealogy routes vào /api/v1
func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	groups := v1.Group("/groups")
	{
		groups.POST("", h.CreateGroup)
		groups.GET("", h.ListGroups)
		groups.GET("/:id", h.GetGroup)
		groups.GET("/:id/members", h.ListMembers)
		groups.POST("/:id/members", h.CreateMember)
		groups.POST("/:id/links", h.AddParentLink)
		groups.POST("/:id/assign", h.AssignGroup)
		groups.GET("/:id/verify", h.VerifyGroup)
	}

	members := v1.Group("/members")
	{
		members.GET("/:id", h.GetMember)
		members.PUT("/:id", h.UpdateMember)
		members.DELETE("/:id", h.DeleteMember)
		members.POST("/:id/assign", h.AssignMember)
		members.GET("/:id/ancestors", h.Ancestors)
		members.GET("/:id/descendants", h.Descendants)
	}

	v1.DELETE("/links/:id", h.RemoveParentLink)
	v1.GET("/kinship", h.Kinship)
}
