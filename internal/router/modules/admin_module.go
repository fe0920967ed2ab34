package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	handlers "github.com/oksasatya/go-shop-account/internal/interface/http"
	"github.com/oksasatya/go-shop-account/internal/interface/middleware"
)

// AdminModule exposes user administration to the admin role only.
type AdminModule struct {
	Handler *handlers.AdminHandler
	Tokens  middleware.TokenParser
	Users   middleware.UserLoader
}

func NewAdminModule(h *handlers.AdminHandler, tokens middleware.TokenParser, users middleware.UserLoader) *AdminModule {
	return &AdminModule{Handler: h, Tokens: tokens, Users: users}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(middleware.Auth(m.Tokens), middleware.RequireRole(m.Users, entity.RoleAdmin))
	{
		admin.GET("/users", m.Handler.ListUsers)
		admin.GET("/users/search", m.Handler.SearchUsers)
		admin.DELETE("/users/:id", m.Handler.DeleteUser)
	}
}
