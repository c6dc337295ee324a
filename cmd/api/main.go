package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"campusevents/internal/auth"
	"campusevents/internal/cloudinary"
	"campusevents/internal/config"
	"campusevents/internal/event"
	"campusevents/internal/httpmiddleware"
	"campusevents/internal/lifecycle"
	"campusevents/internal/push"
	"campusevents/internal/queue"
	"campusevents/internal/store"
	"campusevents/internal/student"
)

func main() {
	cfg := config.Load()

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
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campusevents:notifications")
	}

	ctx := context.Background()

	studentStore := student.NewPostgresStore(db.Client)
	eventStore := event.NewPostgresStore(db.Client)
	if err := studentStore.EnsureSchema(ctx); err != nil {
		log.Printf("warning: students schema: %v", err)
	}
	if err := eventStore.EnsureSchema(ctx); err != nil {
		log.Printf("warning: events schema: %v", err)
	}

	students := student.NewService(studentStore, hashPassword, verifyPassword)
	events := event.NewService(eventStore)
	coord := lifecycle.New(students, events)

	// Cloudinary client (nil when not configured)
	var cdnClient *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitBurst, cfg.RateLimitPerMin).Gin())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/api/auth/register", func(c *gin.Context) {
		var req struct {
			StudentNumber string `json:"student_number" binding:"required"`
			Name          string `json:"name" binding:"required"`
			Course        string `json:"course"`
			Department    string `json:"department"`
			Password      string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		st, err := students.Register(c.Request.Context(), req.StudentNumber, req.Name, req.Course, req.Department, req.Password)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": st.ID, "student_number": st.StudentNumber})
	})

	r.POST("/api/auth/login", func(c *gin.Context) {
		var req struct {
			StudentNumber string `json:"student_number" binding:"required"`
			Password      string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		st, err := students.Login(c.Request.Context(), req.StudentNumber, req.Password)
		if err != nil {
			writeError(c, err)
			return
		}
		token, exp, err := auth.Issue(st.StudentNumber, st.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":         st.ID,
			"role":       st.Role,
			"token":      token,
			"expires_at": exp.Unix(),
		})
	})

	// Event reads are open, as on the original platform.
	r.GET("/api/events", func(c *gin.Context) {
		evs, err := events.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": evs})
	})
	r.GET("/api/events/:id", func(c *gin.Context) {
		ev, err := events.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ev)
	})

	authed := r.Group("/api", auth.BearerAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authed.GET("/students/:id", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		st, err := students.Get(c.Request.Context(), claims, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})

	authed.POST("/students/:id/push-token", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var req struct {
			PushToken string `json:"push_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		st, err := students.SetPushToken(c.Request.Context(), claims, c.Param("id"), req.PushToken)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": st.ID})
	})

	authed.POST("/students/:id/upcoming/:eventID", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		st, err := coord.AddUpcoming(c.Request.Context(), claims, c.Param("id"), c.Param("eventID"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})

	authed.DELETE("/students/:id/upcoming/:eventID", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		st, err := students.RemoveUpcomingEvent(c.Request.Context(), claims, c.Param("id"), c.Param("eventID"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})

	authed.POST("/students/:id/checkin/:eventID", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		st, err := coord.CheckIn(c.Request.Context(), claims, c.Param("id"), c.Param("eventID"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})

	authed.PUT("/students/:id/attended/:eventID", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		st, err := coord.MarkAttended(c.Request.Context(), claims, c.Param("id"), c.Param("eventID"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "attendance marked", "student": st})
	})

	authed.PUT("/students/:id/evaluated/:eventID", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var req struct {
			Answers []string `json:"answers"`
			Comment string   `json:"comment"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		st, err := coord.SubmitEvaluation(c.Request.Context(), claims, c.Param("id"), c.Param("eventID"), event.EvaluationDetail{
			Answers: req.Answers,
			Comment: req.Comment,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "evaluation recorded", "student": st})
	})

	authed.DELETE("/students/:id/notifications/:notificationID", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		st, err := students.RemoveNotification(c.Request.Context(), claims, c.Param("id"), c.Param("notificationID"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})

	authed.GET("/admin/students", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		all, err := students.List(c.Request.Context(), claims)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": len(all), "students": all})
	})

	authed.GET("/admin/push-tokens", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		recipients, err := students.ListPushRecipients(c.Request.Context(), claims)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": len(recipients), "data": recipients})
	})

	authed.PATCH("/admin/promote/:id", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		st, err := students.Promote(c.Request.Context(), claims, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})

	authed.POST("/admin/broadcast", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var req struct {
			EventID string `json:"event_id" binding:"required"`
			Title   string `json:"title" binding:"required"`
			Body    string `json:"body"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := students.Broadcast(c.Request.Context(), claims, student.Notification{
			EventID: req.EventID,
			Title:   req.Title,
			Body:    req.Body,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		// Hand the delivered set to the push worker. Dispatch is best
		// effort; the inbox writes above already stand.
		if recipients, err := students.ListPushRecipients(c.Request.Context(), claims); err == nil && len(recipients) > 0 {
			tokens := make([]string, 0, len(recipients))
			for _, rec := range recipients {
				tokens = append(tokens, rec.PushToken)
			}
			body, _ := json.Marshal(push.Notification{Tokens: tokens, Title: req.Title, Body: req.Body})
			if err := q.Publish(c.Request.Context(), queue.Message{Type: "notify", Body: body}); err != nil {
				log.Printf("queue publish failed: %v", err)
			}
		}

		failed := make([]string, 0, len(report.Failed))
		for _, f := range report.Failed {
			failed = append(failed, f.StudentID)
		}
		c.JSON(http.StatusOK, gin.H{
			"delivered": len(report.Delivered),
			"failed":    failed,
		})
	})

	authed.POST("/events", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var in event.Event
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ev, err := events.Create(c.Request.Context(), claims, in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, ev)
	})

	authed.PUT("/events/:id", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var in event.Event
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ev, err := events.Update(c.Request.Context(), claims, c.Param("id"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ev)
	})

	authed.DELETE("/events/:id", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		if err := events.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
	})

	authed.POST("/events/:id/attendance", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var in event.Attendance
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ev, err := events.AddAttendance(c.Request.Context(), claims, c.Param("id"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ev)
	})

	authed.POST("/events/:id/evaluations", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var in event.EvaluationDetail
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ev, err := events.AddEvaluation(c.Request.Context(), claims, c.Param("id"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, ev)
	})

	authed.PATCH("/events/:id/attendee-count", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var req struct {
			Count *int `json:"count" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ev, err := events.SetAttendeeCount(c.Request.Context(), claims, c.Param("id"), *req.Count)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": ev.ID, "all_student_attending": ev.AllStudentAttending})
	})

	authed.POST("/events/:id/image", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		if cdnClient == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
			return
		}
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		result, err := cdnClient.UploadPoster(c.Param("id"), data, header.Filename)
		if err != nil {
			log.Printf("cloudinary upload failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
			return
		}
		ev, err := events.SetImageRef(c.Request.Context(), claims, c.Param("id"), result.PublicID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": ev.ID, "image_ref": ev.ImageRef, "url": result.SecureURL})
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func hashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func verifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// writeError maps domain errors onto HTTP statuses. Unauthorized and
// forbidden stay distinct, as do not-found and illegal-transition.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
	case errors.Is(err, auth.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, student.ErrNotFound), errors.Is(err, event.ErrNotFound),
		errors.Is(err, student.ErrNotificationNotFound), errors.Is(err, student.ErrUpcomingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, student.ErrNumberTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, student.ErrAlreadyAttended), errors.Is(err, student.ErrAlreadyEvaluated),
		errors.Is(err, student.ErrNotAttended), errors.Is(err, student.ErrNoEventRecords):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
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
