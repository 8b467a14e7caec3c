package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stanfordssi/sats-inventory/internal/application/analytics"
	"github.com/stanfordssi/sats-inventory/internal/application/auth"
	"github.com/stanfordssi/sats-inventory/internal/application/inventory"
	"github.com/stanfordssi/sats-inventory/internal/application/usecase"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// Pinger reports database reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps dependencies of the router.
type RouterDeps struct {
	AuthUC          *auth.AuthUseCase
	PartUC          *usecase.PartUseCase
	BoardUC         *usecase.BoardUseCase
	UserUC          *usecase.UserUseCase
	LabelUC         *usecase.LabelUseCase
	LedgerUC        *inventory.LedgerUseCase
	ReplenishmentUC *inventory.ReplenishmentUseCase
	DashboardUC     *analytics.DashboardUseCase
	Builds          BuildRunner
	BuildQueries    BuildQuerier
	DB              Pinger

	ServiceName       string
	JWTSecret         string
	ProviderJWTSecret string
	MetricsEnabled    bool
}

// Router registers every route of the API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", healthHandler(deps.ServiceName, deps.DB))
	if deps.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	partHandler := NewPartHandler(deps.PartUC, deps.LabelUC)
	// Public: printed QR labels point here.
	app.Get("/qrcode/:part_id", partHandler.Lookup)

	api := app.Group("/api")

	authHandler := NewAuthHandler(deps.AuthUC)
	api.Post("/auth/login", LoginRateLimiter(), authHandler.Login)

	// Everything below requires a Bearer token.
	var resolver IdentityResolver
	if deps.AuthUC != nil {
		resolver = deps.AuthUC
	}
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.ProviderJWTSecret, resolver))
	adminOnly := RequireRole(entity.RoleAdmin)
	anyRole := RequireRole(entity.RoleAdmin, entity.RoleMember)

	protected.Get("/auth/me", authHandler.Me)

	// Parts
	parts := protected.Group("/parts", anyRole)
	parts.Get("/", partHandler.List)
	parts.Post("/", adminOnly, partHandler.Create)
	parts.Get("/next-code", partHandler.NextCode)
	parts.Get("/:id/qr.png", partHandler.QRCode)
	parts.Get("/:id", partHandler.GetByID)
	parts.Put("/:id", adminOnly, partHandler.Update)
	parts.Delete("/:id", adminOnly, partHandler.Delete)

	// Inventory and ledger
	invHandler := NewInventoryHandler(deps.LedgerUC, deps.ReplenishmentUC)
	inv := protected.Group("/inventory", anyRole)
	inv.Post("/add-stock", adminOnly, invHandler.AddStock)
	inv.Post("/checkout", invHandler.Checkout)
	inv.Post("/return", invHandler.Return)
	inv.Post("/consume", invHandler.Consume)
	inv.Post("/adjust", adminOnly, invHandler.Adjust)
	inv.Get("/outstanding", adminOnly, invHandler.Outstanding)
	inv.Get("/my-items", invHandler.MyItems)
	inv.Get("/replenishment", invHandler.GetReplenishmentList)
	protected.Get("/transactions", anyRole, invHandler.Transactions)

	// Boards and builds
	boardHandler := NewBoardHandler(deps.BoardUC, deps.LabelUC)
	buildHandler := NewBuildHandler(deps.Builds, deps.BuildQueries)
	boards := protected.Group("/boards", anyRole)
	boards.Get("/", boardHandler.List)
	boards.Post("/", boardHandler.Create)
	boards.Post("/import/preview", boardHandler.PreviewImport)
	boards.Post("/import", boardHandler.Import)
	boards.Get("/:id", boardHandler.GetByID)
	boards.Put("/:id", boardHandler.Update)
	boards.Put("/:id/bom", boardHandler.ReplaceBOM)
	boards.Post("/:id/deactivate", boardHandler.Deactivate)
	boards.Delete("/:id", adminOnly, boardHandler.Delete)
	boards.Get("/:id/feasibility", buildHandler.Feasibility)
	boards.Post("/:id/build", buildHandler.Build)
	boards.Get("/:id/builds", buildHandler.Builds)
	boards.Get("/:id/report.pdf", boardHandler.Report)

	// Users
	userHandler := NewUserHandler(deps.UserUC)
	users := protected.Group("/users", adminOnly)
	users.Get("/", userHandler.List)
	users.Patch("/:id/role", userHandler.UpdateRole)

	// Dashboard and labels
	dashboardHandler := NewDashboardHandler(deps.DashboardUC)
	protected.Get("/dashboard/stats", anyRole, dashboardHandler.GetStats)
	labelHandler := NewLabelHandler(deps.LabelUC)
	protected.Post("/labels/pdf", anyRole, labelHandler.LabelsPDF)
}

func healthHandler(service string, db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": service, "database": "unreachable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok", "service": service})
	}
}
