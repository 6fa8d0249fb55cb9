package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mikepea/groupadmin/pkg/groupadmin/admin"
	"github.com/mikepea/groupadmin/pkg/groupadmin/auth"
	"github.com/mikepea/groupadmin/pkg/groupadmin/config"
	"github.com/mikepea/groupadmin/pkg/groupadmin/database"
	"github.com/mikepea/groupadmin/pkg/groupadmin/logging"
	"github.com/mikepea/groupadmin/pkg/groupadmin/organizations"
)

func main() {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log, err := cfg.Logger()
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	db, err := database.Connect(cfg.DBPath, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Ensure the default organization exists for the default authority
	directory := organizations.NewDirectory(db, cfg.DefaultAuthority, log)
	if _, err := directory.Default(context.Background(), cfg.DefaultAuthority); err != nil {
		log.Fatalf("Failed to ensure default organization exists: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(log))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "groupadmin",
			})
		})

		// Admin routes (JWT, admin claim required)
		adminHandler := admin.NewHandler(db, admin.Options{
			DefaultAuthority: cfg.DefaultAuthority,
			PageSize:         cfg.PageSize,
		}, log)
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware([]byte(cfg.JWTSecret)), auth.RequireAdmin())
		adminHandler.RegisterRoutes(adminGroup)
	}

	log.WithField("port", cfg.Port).Info("Starting groupadmin server")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
