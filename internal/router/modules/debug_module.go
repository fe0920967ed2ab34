package modules

import (
	"expvar"

	"github.com/gin-gonic/gin"
)

// DebugModule serves expvar counters (credentials_hashed, password_checks,
// session_tokens_issued and the runtime defaults).
type DebugModule struct{}

func NewDebugModule() *DebugModule { return &DebugModule{} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rg.GET("/debug/vars", gin.WrapH(expvar.Handler()))
}
