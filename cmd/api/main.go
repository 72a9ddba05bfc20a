package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"choose-rich-backend/internal/config"
	"choose-rich-backend/internal/handlers"
	"choose-rich-backend/internal/middleware"
	"choose-rich-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	ledger, err := services.NewLedger(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer ledger.Close()

	sessionStore, err := services.NewSessionStore(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer sessionStore.Close()

	jwtService := services.NewJWTService(cfg)

	var rng services.Rand = services.LocalRand{}
	if cfg.RandomServerURL != "" {
		rng = services.NewOracleMirror(rng, cfg.RandomServerURL)
	}

	resultsFeed := handlers.NewResultsFeed()
	settlement := services.NewSettlement(ledger, sessionStore, rng, resultsFeed)

	authHandler := handlers.NewAuthHandler(ledger, jwtService)
	minesHandler := handlers.NewMinesHandler(settlement)
	apexHandler := handlers.NewApexHandler(settlement)
	walletHandler := handlers.NewWalletHandler(ledger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/", func(c *gin.Context) {
		c.String(200, "Choose Rich API is running!")
	})

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/ws", resultsFeed.HandleWebSocket)

		wallet := protected.Group("/wallet")
		{
			wallet.GET("/balance", walletHandler.GetBalance)
			wallet.GET("/history", walletHandler.GetHistory)
		}

		games := protected.Group("/games")
		games.Use(middleware.RateLimitMiddleware(sessionStore))
		{
			mines := games.Group("/mines")
			{
				mines.POST("/start", minesHandler.Start)
				mines.POST("/move", minesHandler.Move)
				mines.POST("/cashout", minesHandler.Cashout)
			}

			apex := games.Group("/apex")
			{
				apex.POST("/start", apexHandler.Start)
				apex.POST("/choose", apexHandler.Choose)
			}
		}
	}

	port := cfg.Port
	if port == "" {
		port = "3002"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
