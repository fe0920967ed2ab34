package router

import (
	"github.com/oksasatya/go-shop-account/internal/container"
	handlers "github.com/oksasatya/go-shop-account/internal/interface/http"
	"github.com/oksasatya/go-shop-account/internal/router/modules"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

// InitModules builds the HTTP handlers from c and adds their modules to r.
// Call once during startup, before RegisterAll.
func InitModules(r *Registry, c *container.Container) {
	cfg := c.Config
	cookies := helpers.NewSessionCookie(cfg.CookieDomain, cfg.CookieSecure)

	userHandler := handlers.NewUserHandler(c.Service, c.Logger, cookies)
	passwordHandler := handlers.NewPasswordHandler(c.Service, c.Logger, cookies, cfg.IsDevelopment())
	adminHandler := handlers.NewAdminHandler(c.Service, c.Logger)

	r.Add(modules.NewUserModule(userHandler, c.JWT))
	r.Add(modules.NewPasswordModule(passwordHandler))
	r.Add(modules.NewAdminModule(adminHandler, c.JWT, c.Service))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
