package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/go-shop-account/internal/interface/http"
)

type PasswordModule struct {
	Handler *handlers.PasswordHandler
}

func NewPasswordModule(h *handlers.PasswordHandler) *PasswordModule {
	return &PasswordModule{Handler: h}
}

func (m *PasswordModule) Register(rg *gin.RouterGroup) {
	rg.POST("/password/forgot", m.Handler.Forgot)
	rg.POST("/password/reset", m.Handler.Reset)
}
