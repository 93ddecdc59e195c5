package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ldap-admin/internal/config"
	"ldap-admin/internal/handler"
	"ldap-admin/internal/middleware"
	"ldap-admin/internal/model"
)

type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	LDAP     *handler.LDAPHandler
	User     *handler.UserHandler
	Group    *handler.GroupHandler
	OU       *handler.OUHandler
	Stats    *handler.StatsHandler
	Logs     *handler.LogsHandler
	Activity *handler.ActivityStreamHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/", h.Health.Info)
	r.Get("/health", h.Health.Database)

	admin := authMiddleware.RequireRoles(model.RoleAdmin)

	r.Route("/api", func(api chi.Router) {
		// The websocket connection outlives any request timeout.
		api.With(authMiddleware.RequireAuthOrQuery).Get("/ws/activity", h.Activity.Serve)

		api.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(cfg.RequestTimeout))

			api.Get("/health/ldap", h.Health.Directory)

			api.Route("/auth", func(auth chi.Router) {
				auth.Post("/login", h.Auth.Login)
				auth.With(authMiddleware.RequireAuth).Post("/refresh", h.Auth.Refresh)
				auth.With(authMiddleware.RequireAuth).Get("/verify", h.Auth.Verify)
			})

			api.Group(func(api chi.Router) {
				api.Use(authMiddleware.RequireAuth)

				api.Route("/ldap", func(ldap chi.Router) {
					ldap.Get("/children", h.LDAP.Children)
					ldap.Get("/tree", h.LDAP.Tree)
					ldap.Get("/count-children", h.LDAP.CountChildren)
					ldap.Get("/has-children", h.LDAP.HasChildren)
					ldap.Post("/search", h.LDAP.Search)
					ldap.Get("/schema", h.LDAP.Schema)

					ldap.Get("/users/search", h.User.Search)
					// {id} is a DN for reads and a uid for writes.
					ldap.Get("/users/{id}", h.User.Get)
					ldap.With(admin).Post("/users", h.User.Create)
					ldap.With(admin).Put("/users/{id}", h.User.Update)
					ldap.With(admin).Delete("/users/{id}", h.User.Delete)

					ldap.Get("/groups/search", h.Group.Search)
					ldap.Get("/groups/{dn}", h.Group.Get)
					ldap.With(admin).Post("/groups", h.Group.Create)
					ldap.With(admin).Put("/groups/{dn}", h.Group.Update)
					ldap.With(admin).Delete("/groups/{dn}", h.Group.Delete)

					ldap.With(admin).Post("/ous", h.OU.Create)
					ldap.With(admin).Delete("/ous/{dn}", h.OU.Delete)
				})

				api.Get("/stats", h.Stats.Get)

				api.Get("/logs", h.Logs.List)
				api.With(admin).Delete("/logs", h.Logs.Clear)
				api.With(admin).Delete("/logs/all", h.Logs.ClearAll)
			})
		})
	})

	return r
}
