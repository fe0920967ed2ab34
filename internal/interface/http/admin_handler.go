package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-shop-account/internal/application"
	"github.com/oksasatya/go-shop-account/internal/interface/middleware"
	"github.com/oksasatya/go-shop-account/pkg/response"
)

type AdminHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewAdminHandler(svc *userapp.Service, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{Svc: svc, Logger: logger}
}

// ListUsers GET /api/admin/users?limit=&offset=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	page := userapp.PageWindow(limit, offset)
	users, err := h.Svc.ListUsers(c.Request.Context(), page.Limit, page.Offset)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, users, "users", gin.H{"count": len(users), "limit": page.Limit, "offset": page.Offset})
}

// SearchUsers GET /api/admin/users/search?q=&size=
func (h *AdminHandler) SearchUsers(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", gin.H{"count": len(hits)})
}

// DeleteUser DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := h.Svc.DeleteUser(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), id); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"admin_id": c.GetString(middleware.CtxUserIDKey), "user_id": id}).Info("user deleted")
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true}, "user deleted", nil)
}
