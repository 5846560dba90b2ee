package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/alpharequest/requestmanager/internal/api/http/handlers"
	"github.com/alpharequest/requestmanager/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Tickets        *handlers.TicketsHandler
	Departments    *handlers.DepartmentsHandler
	Permissions    *handlers.PermissionsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Accounts.Login)

	authGroup := app.Group("/auth", cfg.AuthMiddleware.Handle)
	authGroup.Get("/me", cfg.Accounts.Me)
	authGroup.Post("/password/change", cfg.Accounts.ChangePassword)
	authGroup.Post("/register", auth.RequireAdmin(), cfg.Accounts.Register)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/queues", cfg.Tickets.GetQueues)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/submit", cfg.Tickets.SubmitTicket)
	tickets.Post("/:id/department-action", cfg.Tickets.DepartmentAction)
	tickets.Get("/:id/history", cfg.Tickets.GetHistory)
	tickets.Post("/:id/archive", auth.RequireAdmin(), cfg.Tickets.ArchiveTicket)
	tickets.Post("/:id/reject", auth.RequireAdmin(), cfg.Tickets.RejectTicket)
	tickets.Post("/:id/ninja-link", auth.RequireAdmin(), cfg.Tickets.LinkNinja)

	departments := app.Group("/departments", cfg.AuthMiddleware.Handle)
	departments.Get("/", cfg.Departments.ListDepartments)
	departments.Get("/:id", cfg.Departments.GetDepartment)
	departments.Post("/", auth.RequireAdmin(), cfg.Departments.CreateDepartment)
	departments.Patch("/:id", auth.RequireAdmin(), cfg.Departments.UpdateDepartment)

	permissions := app.Group("/permissions", cfg.AuthMiddleware.Handle)
	permissions.Get("/my-types", cfg.Permissions.MyTypes)
	permissions.Get("/", auth.RequireAdmin(), cfg.Permissions.GetAll)
	permissions.Put("/:type", auth.RequireAdmin(), cfg.Permissions.SetForType)
	permissions.Post("/:type/users", auth.RequireAdmin(), cfg.Permissions.AddUser)
	permissions.Delete("/:type/users/:userId", auth.RequireAdmin(), cfg.Permissions.RemoveUser)
}
