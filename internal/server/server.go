// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "gorahrib/docs" // swagger docs
	"gorahrib/internal/config"
	"gorahrib/internal/database"
	"gorahrib/internal/featureflags"
	"gorahrib/internal/middleware"
	"gorahrib/internal/models"
	"gorahrib/internal/notifications"
	"gorahrib/internal/repository"
	"gorahrib/internal/service"
	"gorahrib/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	tokenIssuer   = "gorahrib-api"
	tokenAudience = "gorahrib-client"

	// Requests per minute per IP across the whole API.
	globalRateLimit = 300
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo repository.UserRepository
	store    storage.ObjectStore
	notifier *notifications.Notifier
	hub      *notifications.Hub

	featureFlags *featureflags.Manager

	peakService        *service.PeakService
	checklistService   *service.ChecklistService
	achievementService *service.AchievementService
	friendService      *service.FriendService
	postService        *service.PostService
	commentService     *service.CommentService
	userService        *service.UserService
	leaderboardService *service.LeaderboardService
	adminService       *service.AdminService

	// Tickets already taken from redis, kept briefly so the second pass of
	// the websocket handshake still authenticates.
	handshakes handshakeTickets
}

// NewServerWithDeps creates a Server on top of the connections prepared by
// the bootstrap package.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return newServer(cfg, db, redisClient, store), nil
}

func newServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.ObjectStore) *Server {
	uow := database.NewUnitOfWork(db)
	userRepo := repository.NewUserRepository(db)
	peakRepo := repository.NewPeakRepository(db)
	checklistRepo := repository.NewChecklistRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("gorahrib-api"),
		userRepo:       userRepo,
		store:          store,
		hub:            notifications.NewHub(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	// A nil *Notifier stored in the interface would not compare equal to nil.
	var publisher service.EventPublisher
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		publisher = s.notifier
	}

	images := service.NewImageProcessor(cfg)
	s.peakService = service.NewPeakService(peakRepo)
	s.achievementService = service.NewAchievementService(achievementRepo, checklistRepo, peakRepo, userRepo, postRepo, commentRepo, likeRepo, publisher)
	s.checklistService = service.NewChecklistService(uow, checklistRepo, peakRepo, userRepo, s.achievementService, store, images)
	s.friendService = service.NewFriendService(uow, friendRepo, userRepo, checklistRepo, publisher)
	s.postService = service.NewPostService(uow, postRepo, commentRepo, likeRepo, friendRepo, peakRepo, checklistRepo, store, images, publisher)
	s.commentService = service.NewCommentService(uow, commentRepo, postRepo, publisher)
	s.userService = service.NewUserService(uow, userRepo, checklistRepo, store, images)
	s.leaderboardService = service.NewLeaderboardService(userRepo, friendRepo)
	s.adminService = service.NewAdminService(uow, userRepo, peakRepo, checklistRepo, achievementRepo, friendRepo, postRepo, commentRepo, likeRepo, store)
	return s
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Uploaded pictures are loaded by the frontend from another origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        globalRateLimit,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	if s.servesLocalUploads() {
		app.Static(s.config.StoragePublicURL, s.config.ImageUploadDir, fiber.Static{MaxAge: 86400})
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/me", s.AuthRequired(), s.Me)

	peaks := api.Group("/peaks")
	peaks.Get("/", s.ListPeaks)
	peaks.Get("/search", s.SearchPeaks)
	peaks.Get("/:id", s.GetPeak)

	api.Get("/achievements", s.GetAchievementCatalog)

	protected := api.Group("", s.AuthRequired())

	checklist := protected.Group("/checklist")
	checklist.Get("/", s.GetChecklist)
	checklist.Post("/:peakId", s.AddToChecklist)
	checklist.Put("/:peakId/visit", s.MarkPeakVisited)
	checklist.Put("/:peakId/pictures",
		middleware.RateLimit(s.redis, 20, time.Hour, "peak_pictures"), s.AddPeakPictures)
	checklist.Delete("/:peakId", s.RemoveFromChecklist)

	achievements := protected.Group("/achievements")
	achievements.Get("/me", s.GetMyAchievements)
	achievements.Get("/users/:userId", s.GetUserAchievements)

	friends := protected.Group("/friends")
	friends.Get("/", s.GetFriends)
	friends.Get("/requests", s.GetPendingRequests)
	friends.Get("/requests/sent", s.GetSentRequests)
	friends.Post("/requests/:userId",
		middleware.RateLimit(s.redis, 10, 5*time.Minute, "friend_request"), s.SendFriendRequest)
	friends.Post("/requests/:requestId/accept", s.AcceptFriendRequest)
	friends.Post("/requests/:requestId/reject", s.RejectFriendRequest)
	friends.Get("/status/:userId", s.GetFriendshipStatus)
	friends.Get("/peaks-map", s.GetFriendsPeaksMap)
	friends.Get("/:userId/profile", s.GetFriendProfile)
	friends.Delete("/:userId", s.RemoveFriend)

	forum := protected.Group("/forum")
	forum.Get("/feed", s.GetFeed)
	forum.Get("/posts/me", s.GetMyPosts)
	forum.Get("/users/:userId/posts", s.GetUserPosts)
	forum.Post("/posts", middleware.RateLimit(s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	forum.Get("/posts/:id", s.GetPost)
	forum.Put("/posts/:id", s.UpdatePost)
	forum.Delete("/posts/:id", s.DeletePost)
	forum.Post("/posts/:id/like", s.ToggleLike)
	forum.Get("/posts/:id/comments", s.GetComments)
	forum.Post("/posts/:id/comments",
		middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	forum.Put("/posts/:id/comments/:commentId", s.UpdateComment)
	forum.Delete("/posts/:id/comments/:commentId", s.DeleteComment)

	leaderboard := protected.Group("/leaderboard")
	leaderboard.Get("/", s.GetGlobalLeaderboard)
	leaderboard.Get("/friends", s.GetFriendsLeaderboard)

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me/username", s.UpdateUsername)
	users.Put("/me/password", s.ChangePassword)
	users.Get("/me/visited-peaks", s.GetMyVisitedPeaks)
	users.Get("/me/checklist-peaks", s.GetMyChecklistPeaks)
	users.Put("/me/profile-picture", s.UpdateProfilePicture)
	users.Delete("/me/profile-picture", s.DeleteProfilePicture)
	users.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "user_search"), s.SearchUsers)
	users.Get("/:id", s.GetUserProfile)

	protected.Get("/feature-flags", s.GetFeatureFlags)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/users", s.AdminListUsers)
	admin.Put("/users/:id/ban", s.AdminToggleBan)
	admin.Delete("/users/:id", s.AdminDeleteUser)
	admin.Get("/stats", s.AdminStats)

	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())
}

// servesLocalUploads reports whether uploaded pictures live on local disk
// under a path of this server.
func (s *Server) servesLocalUploads() bool {
	backend := s.config.StorageBackend
	return (backend == "" || backend == config.StorageLocal) &&
		s.config.ImageUploadDir != "" &&
		len(s.config.StoragePublicURL) > 1 && strings.HasPrefix(s.config.StoragePublicURL, "/")
}

// LivenessCheck reports that the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and redis are reachable
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unhealthy"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.userRepo.GetByID(c.UserContext(), currentUserID(c))
		if err != nil {
			return respondServiceError(c, err)
		}
		if !user.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware. The websocket endpoint
// takes a single-use ?ticket=; every other route takes a Bearer JWT.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isWSUpgradePath(c.Path()) {
			return s.ticketAuth(c)
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.parseToken(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		sub, _ := claims["sub"].(string)
		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil || userID == 0 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		if jti, _ := claims["jti"].(string); jti != "" {
			if s.redis != nil {
				revoked, err := s.redis.Exists(c.Context(), blacklistKey(jti)).Result()
				if err == nil && revoked > 0 {
					return models.RespondWithError(c, fiber.StatusUnauthorized,
						models.NewUnauthorizedError("Token has been revoked"))
				}
			}
			c.Locals("jti", jti)
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			c.Locals("tokenExp", exp.Time)
		}

		return s.authenticated(c, uint(userID))
	}
}

func isWSUpgradePath(path string) bool {
	return strings.HasPrefix(path, "/api/ws") && !strings.HasSuffix(path, "/ticket")
}

// ticketAuth redeems the ?ticket= query parameter.
func (s *Server) ticketAuth(c *fiber.Ctx) error {
	ticket := c.Query("ticket")
	if ticket == "" || s.redis == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("WebSocket ticket required"))
	}
	userID, ok := s.redeemWSTicket(c.UserContext(), ticket)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
	}
	c.Locals("wsTicket", ticket)
	return s.authenticated(c, userID)
}

// authenticated stores the user on the request and rejects banned accounts.
func (s *Server) authenticated(c *fiber.Ctx, userID uint) error {
	if s.userRepo != nil {
		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("User no longer exists"))
			}
			return respondServiceError(c, err)
		}
		if !user.IsActive() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Account is banned"))
		}
	}

	c.Locals("userID", userID)
	middleware.RefreshContext(c)
	return c.Next()
}

// parseToken validates signature, issuer and audience and returns the claims.
func (s *Server) parseToken(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithAudience(tokenAudience))
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	return claims, nil
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "GoraHrib API",
		// Room for five pictures at the configured per-file limit.
		BodyLimit: (s.config.ImageMaxUploadSizeMB*5 + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error",
				slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub",
			slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
