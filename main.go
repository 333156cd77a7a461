package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"videostar-app/config"
	"videostar-app/database"
	routes "videostar-app/internal/app/http"
	"videostar-app/internal/infra/cache"
	"videostar-app/internal/jobs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	config.LoadEnv()
	database.InitDB()
	cache.SetupCache()

	engine := routes.BuildEngine(database.DB)

	sweepMinutes, err := strconv.Atoi(config.SWEEP_INTERVAL_MINUTES)
	if err != nil || sweepMinutes <= 0 {
		sweepMinutes = 60
	}
	sweeper := jobs.NewSweepScheduler(engine, time.Duration(sweepMinutes)*time.Minute)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	r := gin.Default()

	// ✅ Add CORS middleware BEFORE registering routes
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{os.Getenv("CORS_ORIGIN")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, engine)

	r.Run(":" + config.PORT)
}
