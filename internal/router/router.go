package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/hirelane/proctor-backend/internal/handler"
	"github.com/hirelane/proctor-backend/internal/middleware"
	"github.com/hirelane/proctor-backend/internal/response"
	"github.com/hirelane/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Candidate *handler.CandidateHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Serve uploaded verification images statically with aggressive caching.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for the claim endpoint (30 requests per minute per IP):
	// the access code must not be brute-forceable.
	claimLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Public Group (Rate Limited) ────────────────────────────────
	public := router.Group("/api/v1/invitations")
	public.Use(claimLimiter.Middleware())
	{
		public.POST("/claim", handlers.Candidate.ClaimInvitation)
	}

	// ─── 2. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		candidateAPI.GET("/invitation", handlers.Candidate.GetInvitation)

		candidateAPI.GET("/verification", handlers.Candidate.GetVerification)
		candidateAPI.POST("/verification/system-check", handlers.Candidate.PostSystemCheck)
		candidateAPI.POST("/verification/system-check/advance", handlers.Candidate.AdvanceSystemCheck)
		candidateAPI.POST("/verification/images", handlers.Candidate.UploadVerificationImage)
		candidateAPI.POST("/verification/identity", handlers.Candidate.SubmitIdentity)
		candidateAPI.POST("/verification/rules", handlers.Candidate.AcceptRules)
		candidateAPI.POST("/verification/back", handlers.Candidate.StepBack)

		candidateAPI.POST("/exam/enter", handlers.Candidate.EnterExam)
		candidateAPI.GET("/exam/state", handlers.Candidate.GetExamState)
		candidateAPI.POST("/exam/submit", handlers.Candidate.SubmitExam)
		candidateAPI.GET("/exam/status", handlers.Candidate.GetSubmissionStatus)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	ws.Use(middleware.CheckSingleDeviceSession(authService))
	{
		ws.GET("/candidate/exam/stream", handlers.WS.ExamStream)
	}

	return router
}
