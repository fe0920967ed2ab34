package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/go-shop-account/internal/interface/http"
	"github.com/oksasatya/go-shop-account/internal/interface/middleware"
)

// UserModule wires account routes under /api/users.
// Public: POST /register, POST /login
// Protected: GET /logout, GET /me, PUT /me, PUT /me/password, PUT /me/avatar,
// POST /me/addresses, DELETE /me/addresses/:addressID, GET /:id
type UserModule struct {
	Handler *handlers.UserHandler
	Tokens  middleware.TokenParser
}

func NewUserModule(h *handlers.UserHandler, tokens middleware.TokenParser) *UserModule {
	return &UserModule{Handler: h, Tokens: tokens}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	users.POST("/register", m.Handler.Register)
	users.POST("/login", m.Handler.Login)

	auth := users.Group("/")
	auth.Use(middleware.Auth(m.Tokens))
	{
		auth.GET("/logout", m.Handler.Logout)
		auth.GET("/me", m.Handler.Me)
		auth.PUT("/me", m.Handler.UpdateProfile)
		auth.PUT("/me/password", m.Handler.ChangePassword)
		auth.PUT("/me/avatar", m.Handler.UploadAvatar)
		auth.POST("/me/addresses", m.Handler.AddAddress)
		auth.DELETE("/me/addresses/:addressID", m.Handler.DeleteAddress)
		auth.GET("/:id", m.Handler.GetUserInfo)
	}
}
