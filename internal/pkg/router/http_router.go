package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lifeweave/lifeweave/app/controllers"
	"github.com/lifeweave/lifeweave/internal/pkg/middleware"
	"github.com/lifeweave/lifeweave/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Post("/register", controllers.HandleAuthRegister)
	app.Post("/login", controllers.HandleAuthLogin)
	app.Post("/logout", controllers.HandleAuthLogout)

	// OAuth account linking. The initiate endpoint requires a logged-in
	// session; the callback is reached by the provider redirect and
	// validates the one-time state instead.
	app.Get("/oauth/:provider/initiate", controllers.HandleOAuthInitiate)
	app.Get("/oauth/:provider/callback", controllers.HandleOAuthCallback)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
