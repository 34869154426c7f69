// Package server is the zeelink HTTP API: fiber app, middleware stack and handlers.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"zeelink/internal/bootstrap"
	"zeelink/internal/config"
	"zeelink/internal/featureflags"
	"zeelink/internal/media"
	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	devOrigins      = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	globalRateLimit = 100
	shutdownGrace   = 10 * time.Second
)

// Server owns the fiber app and the runtime pieces its handlers use.
type Server struct {
	cfg      *config.Config
	db       *gorm.DB
	rdb      *redis.Client
	metrics  *fiberprometheus.FiberPrometheus
	store    *store.Store
	sessions *store.Sessions
	avatars  *media.AvatarService
	flags    *featureflags.Manager
	now      func() time.Time

	app *fiber.App
}

// NewServer creates a server over an initialized runtime.
func NewServer(rt *bootstrap.Runtime) *Server {
	return &Server{
		cfg:      rt.Config,
		db:       rt.DB,
		rdb:      rt.Redis,
		metrics:  middleware.InitMetrics("zeelink-api"),
		store:    rt.Store,
		sessions: rt.Sessions,
		avatars:  media.NewAvatarService(rt.Config),
		flags:    rt.Store.Flags(),
		now:      time.Now,
	}
}

// App returns the fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app == nil {
		s.app = fiber.New(fiber.Config{
			AppName:      "Zeelink API",
			BodyLimit:    int(s.avatars.MaxUploadBytes()) + 1<<20,
			ErrorHandler: s.handleError,
		})
		s.SetupMiddleware(s.app)
		s.SetupRoutes(s.app)
	}
	return s.app
}

// handleError answers errors that escaped a handler: fiber's own errors keep
// their status, anything else is logged and reported as internal.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware installs the stack shared by every route, outermost first.
func (s *Server) SetupMiddleware(app *fiber.App) {
	stack := []fiber.Handler{recover.New(), requestid.New()}
	if s.cfg.TracingEnabled {
		stack = append(stack, middleware.TracingMiddleware())
	}
	stack = append(stack, middleware.ContextMiddleware())
	if s.metrics != nil {
		stack = append(stack, middleware.MetricsMiddleware(s.metrics))
	}
	stack = append(stack,
		// Avatars are embedded by other origins.
		helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}),
		middleware.StructuredLogger(),
		// CORS sits before the limiter so a 429 is still readable by the browser.
		s.corsHandler(),
		s.ipLimiter(),
	)
	for _, h := range stack {
		app.Use(h)
	}
}

func (s *Server) corsHandler() fiber.Handler {
	origins := strings.TrimSpace(s.cfg.AllowedOrigins)
	if origins == "" {
		origins = devOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           int((24 * time.Hour).Seconds()),
	})
}

// ipLimiter is the coarse per-IP ceiling kept in process memory. Per-action
// limits live in Redis, see middleware.RateLimit.
func (s *Server) ipLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          globalRateLimit,
		Expiration:   time.Minute,
		Next:         func(c *fiber.Ctx) bool { return c.Method() == fiber.MethodOptions },
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please slow down",
				Code:  "RATE_LIMITED",
			})
		},
	})
}

// SetupRoutes registers every endpoint. The public profile catch-all is last.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.Live)
	app.Get("/health/ready", s.Ready)
	if s.metrics != nil {
		s.metrics.RegisterAt(app, "/metrics")
	}
	app.Get(media.URLPrefix+":name", s.ServeAvatar)

	limit := func(name string, n int, window time.Duration) fiber.Handler {
		return middleware.RateLimit(s.rdb, n, window, name)
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", limit("register", 3, 10*time.Minute), s.Register)
	auth.Post("/login", limit("login", 10, 5*time.Minute), s.Login)
	auth.Post("/logout", s.AuthOptional(), s.Logout)
	auth.Get("/me", s.AuthRequired(), s.Me)

	profiles := api.Group("/profiles")
	profiles.Get("/", s.ListProfiles)
	profiles.Get("/map", s.MapProfiles)
	profiles.Put("/me", s.AuthRequired(), s.SaveMyProfile)
	profiles.Post("/me/avatar", s.AuthRequired(), limit("avatar_upload", 5, 10*time.Minute), s.UploadAvatar)
	profiles.Post("/:id/like", s.AuthRequired(), limit("like", 30, time.Minute), s.LikeProfile)
	profiles.Post("/:id/links/:linkId/click", limit("link_click", 60, time.Minute), s.RecordLinkClick)

	questions := api.Group("/questions")
	questions.Get("/", s.ListQuestions)
	questions.Post("/", s.AuthRequired(), limit("submit_question", 5, time.Minute), s.SubmitQuestion)
	questions.Post("/:id/vote", s.AuthRequired(), s.VoteQuestion)

	api.Get("/popups/active", s.AuthOptional(), s.ActivePopups)

	directory := api.Group("/directory")
	directory.Get("/regions", s.GetRegions)
	directory.Get("/provinces/:province/districts", s.GetDistricts)
	directory.Get("/provinces/:province/districts/:district/subdistricts", s.GetSubDistricts)

	api.Get("/themes", s.GetThemes)

	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Post("/identities/:id/ban", s.BanIdentity)
	admin.Delete("/identities/:id", s.DeleteIdentity)
	admin.Get("/backup", s.Backup)
	admin.Post("/restore", s.Restore)
	admin.Post("/reload", s.Reload)
	admin.Post("/simulate", s.SimulateProfiles)
	admin.Get("/popups", s.ListPopups)
	admin.Post("/popups", s.CreatePopup)
	admin.Put("/popups/:id", s.UpdatePopup)
	admin.Delete("/popups/:id", s.DeletePopup)
	admin.Get("/questions", s.ListAllQuestions)
	admin.Get("/feature-flags", s.GetFeatureFlags)

	app.Get("/:username", s.PublicProfile)
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("Server starting", slog.String("port", s.cfg.Port))
	return app.Listen(":" + s.cfg.Port)
}

// Shutdown stops accepting requests. The runtime owner drains the store and
// closes connections afterwards.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownGrace)
		defer cancel()
	}
	return s.app.ShutdownWithContext(ctx)
}
