package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classtrack/internal/attendance"
	"classtrack/internal/audit"
	"classtrack/internal/auth"
	"classtrack/internal/config"
	"classtrack/internal/httpmiddleware"
	"classtrack/internal/metrics"
	"classtrack/internal/qr"
	"classtrack/internal/queue"
	"classtrack/internal/session"
	"classtrack/internal/stats"
	"classtrack/internal/store"
	"classtrack/internal/user"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(context.Background(), db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:audit")
	}

	userRepo := user.NewRepository(db.Client)
	sessionRepo := session.NewRepository(db.Client)
	tokenRepo := qr.NewRepository(db.Client)
	attRepo := attendance.NewRepository(db.Client)

	authSvc := auth.NewService(userRepo, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	registry := session.NewRegistry(sessionRepo)
	issuer := qr.NewIssuer(tokenRepo, sessionRepo, qr.NewRedisCache(redisClient.Client), cfg.QRTokenTTL)
	attSvc := attendance.NewService(tokenRepo, attRepo, sessionRepo)
	aggregator := stats.NewAggregator(sessionRepo, attRepo)
	userSvc := user.NewService(userRepo, attRepo, sessionRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile, pair, err := authSvc.SignIn(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrBadCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sign in failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user":          profile,
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_at":    pair.AccessExp.Unix(),
		})
	})

	authed := r.Group("/v1", auth.RequireAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Tokens are stateless; logout is the client discarding them.
	authed.POST("/auth/logout", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	authed.GET("/sessions", func(c *gin.Context) {
		sessions, err := registry.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	})

	authed.GET("/sessions/:id", func(c *gin.Context) {
		sess, err := registry.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, sess)
	})

	// Recording a scan. The precise rejection reason drives the client UX:
	// invalid means rescan, expired means the code rotated, duplicate is final.
	authed.POST("/attendance", func(c *gin.Context) {
		var req struct {
			Token     string   `json:"token" binding:"required"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.ClaimsFrom(c)
		receipt, err := attSvc.Record(c.Request.Context(), req.Token, claims.Subject, req.Latitude, req.Longitude)
		if err != nil {
			switch {
			case errors.Is(err, attendance.ErrInvalidToken):
				c.JSON(http.StatusNotFound, gin.H{"error": "invalid qr code"})
			case errors.Is(err, attendance.ErrTokenExpired):
				c.JSON(http.StatusGone, gin.H{"error": "qr code expired, rescan the current one"})
			case errors.Is(err, attendance.ErrAlreadyRecorded):
				c.JSON(http.StatusConflict, gin.H{"error": "attendance already recorded"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "recording failed"})
			}
			return
		}
		audit.Publish(c.Request.Context(), q, audit.KindAttendanceRecorded, claims.Subject, receipt.SessionName)
		c.JSON(http.StatusCreated, gin.H{"message": "attendance recorded", "attendance": receipt})
	})

	authed.GET("/me/stats", func(c *gin.Context) {
		claims, _ := auth.ClaimsFrom(c)
		result, err := aggregator.Compute(c.Request.Context(), claims.Subject)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	// Session management and QR display, for instructors and admins.
	teach := authed.Group("", auth.RequireRole(userRepo, user.RoleInstructor, user.RoleAdmin))

	teach.POST("/sessions", func(c *gin.Context) {
		var req struct {
			Name       string    `json:"name" binding:"required"`
			CourseName string    `json:"course_name" binding:"required"`
			Date       time.Time `json:"date" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.ClaimsFrom(c)
		sess, err := registry.Create(c.Request.Context(), req.Name, req.CourseName, req.Date, claims.Subject)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, sess)
	})

	teach.DELETE("/sessions/:id", func(c *gin.Context) {
		sess, ok := manageableSession(c, registry, userRepo)
		if !ok {
			return
		}
		if err := registry.Delete(c.Request.Context(), sess.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		audit.Publish(c.Request.Context(), q, audit.KindSessionDeleted, sess.ID, sess.Name)
		c.Status(http.StatusNoContent)
	})

	teach.POST("/sessions/:id/qr", func(c *gin.Context) {
		sess, ok := manageableSession(c, registry, userRepo)
		if !ok {
			return
		}
		token, err := issuer.Issue(c.Request.Context(), sess.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		audit.Publish(c.Request.Context(), q, audit.KindTokenIssued, sess.ID, "")
		c.JSON(http.StatusCreated, token)
	})

	teach.GET("/sessions/:id/qr", func(c *gin.Context) {
		sess, ok := manageableSession(c, registry, userRepo)
		if !ok {
			return
		}
		token, err := issuer.Current(c.Request.Context(), sess.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if token == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no live token, issue one first"})
			return
		}
		c.JSON(http.StatusOK, token)
	})

	teach.GET("/sessions/:id/attendance", func(c *gin.Context) {
		sess, ok := manageableSession(c, registry, userRepo)
		if !ok {
			return
		}
		entries, err := attRepo.ListBySession(c.Request.Context(), sess.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if c.Query("format") == "csv" {
			c.Header("Content-Type", "text/csv")
			c.Header("Content-Disposition", `attachment; filename="attendance-`+sess.ID+`.csv"`)
			if err := attendance.WriteCSV(c.Writer, entries); err != nil {
				log.Printf("csv export failed for session %s: %v", sess.ID, err)
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"attendance": entries})
	})

	admin := authed.Group("/admin", auth.RequireRole(userRepo, user.RoleAdmin))

	admin.GET("/users", func(c *gin.Context) {
		users, err := userSvc.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	})

	admin.POST("/users", func(c *gin.Context) {
		var req user.ProvisionInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile, err := userSvc.Provision(c.Request.Context(), req)
		if err != nil {
			if errors.Is(err, user.ErrUsernameTaken) {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		metrics.UsersProvisioned.Inc()
		audit.Publish(c.Request.Context(), q, audit.KindUserProvisioned, profile.ID, profile.Username)
		c.JSON(http.StatusCreated, profile)
	})

	admin.DELETE("/users/:id", func(c *gin.Context) {
		report, err := userSvc.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			// The report says which steps took effect before the failure.
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
			return
		}
		metrics.UsersDeleted.Inc()
		audit.Publish(c.Request.Context(), q, audit.KindUserDeleted, report.UserID, "")
		c.JSON(http.StatusOK, report)
	})

	admin.POST("/attendance", func(c *gin.Context) {
		var req struct {
			UserID    string `json:"user_id" binding:"required"`
			SessionID string `json:"session_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rec, err := attSvc.AddManual(c.Request.Context(), req.UserID, req.SessionID)
		if err != nil {
			switch {
			case errors.Is(err, attendance.ErrAlreadyRecorded):
				c.JSON(http.StatusConflict, gin.H{"error": "attendance already recorded"})
			case errors.Is(err, session.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusCreated, rec)
	})

	admin.DELETE("/attendance/:id", func(c *gin.Context) {
		if err := attRepo.Delete(c.Request.Context(), c.Param("id")); err != nil {
			if errors.Is(err, attendance.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "attendance not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		audit.Publish(c.Request.Context(), q, audit.KindAttendanceDeleted, c.Param("id"), "")
		c.Status(http.StatusNoContent)
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// manageableSession loads the session and enforces that the caller is its
// creator or an admin. Writes the error response itself on failure.
func manageableSession(c *gin.Context, registry *session.Registry, roles auth.RoleResolver) (session.Session, bool) {
	sess, err := registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return session.Session{}, false
	}
	claims, _ := auth.ClaimsFrom(c)
	role := claims.Role
	if role == "" && roles != nil {
		if resolved, err := roles.RoleByID(c.Request.Context(), claims.Subject); err == nil {
			role = resolved
		}
	}
	if role != user.RoleAdmin && sess.CreatedBy != claims.Subject {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
		return session.Session{}, false
	}
	return sess, true
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
