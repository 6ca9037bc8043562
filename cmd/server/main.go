package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"streamhaven-session-go/internal/api"
	"streamhaven-session-go/internal/bookmarks"
	"streamhaven-session-go/internal/config"
	"streamhaven-session-go/internal/db"
	"streamhaven-session-go/internal/entitlement"
	"streamhaven-session-go/internal/identity"
	"streamhaven-session-go/internal/middleware"
	"streamhaven-session-go/internal/presence"
	"streamhaven-session-go/internal/session"
	"streamhaven-session-go/pkg/cache"
	"streamhaven-session-go/pkg/messagequeue"
)

func main() {
	// --- 1. Initialize Logger (Zap) ---
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- 2. Load Application Configuration ---
	// .env is optional; real deployments inject the environment directly.
	if err := godotenv.Load(); err != nil {
		zapLogger.Debug("No .env file loaded", zap.Error(err))
	}
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded successfully.")

	// --- 3. Initialize Firebase Admin SDK (Firestore and Auth clients) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	if err := db.InitFirestore(initCtx, appConfig); err != nil {
		zapLogger.Fatal("Failed to initialize Firestore and Firebase Admin SDK", zap.Error(err))
	}

	firestoreClient := db.GetFirestoreClient()
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firestoreClient == nil || firebaseAuthClient == nil {
		zapLogger.Fatal("Firestore or Firebase Auth client is nil after initialization. Application cannot start.")
	}
	zapLogger.Info("Firebase Admin SDK (Firestore, Auth) initialized successfully.")

	// --- 4. Initialize Hint Store and Event Queue ---
	// Redis and RabbitMQ are optional capacities: hints fall back to an
	// in-process store and events to a no-op sink when unconfigured.
	var hintStore cache.Cache
	if appConfig.RedisAddr != "" {
		hintStore, err = cache.NewRedisCache(cache.NewRedisCacheConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err != nil {
			zapLogger.Warn("Redis unavailable, falling back to in-memory hint store", zap.Error(err))
			hintStore = cache.NewMemoryCache()
		}
	} else {
		hintStore = cache.NewMemoryCache()
	}

	var eventQueue messagequeue.MessageQueue
	if appConfig.RabbitMQURL != "" {
		eventQueue, err = messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL})
		if err != nil {
			zapLogger.Warn("RabbitMQ unavailable, presence/entitlement events disabled", zap.Error(err))
			eventQueue = messagequeue.NewNoOpQueue()
		}
	} else {
		eventQueue = messagequeue.NewNoOpQueue()
	}
	defer eventQueue.Close()

	// --- 5. Initialize Repositories ---
	profileRepo := db.NewFirestoreProfileRepository(firestoreClient)
	subscriptionRepo := db.NewFirestoreSubscriptionRepository(firestoreClient)
	couponRepo := db.NewFirestoreCouponRepository(firestoreClient)
	movieBookmarkRepo := db.NewFirestoreMovieBookmarkRepository(firestoreClient)
	seriesBookmarkRepo := db.NewFirestoreSeriesBookmarkRepository(firestoreClient)
	zapLogger.Info("Repositories initialized successfully.")

	// --- 6. Initialize Engine Services ---
	identityProvider := identity.NewFirebaseProvider(firebaseAuthClient, zapLogger)
	entitlementService := entitlement.NewService(subscriptionRepo, couponRepo, hintStore, eventQueue, zapLogger)
	heartbeat := presence.NewHeartbeat(profileRepo, eventQueue, zapLogger, appConfig.HeartbeatInterval)
	bookmarkSync := bookmarks.NewSynchronizer(movieBookmarkRepo, seriesBookmarkRepo, profileRepo, zapLogger)

	controller := session.NewController(zapLogger, identityProvider, profileRepo,
		entitlementService, bookmarkSync, heartbeat, hintStore)
	controllerCtx, cancelController := context.WithCancel(context.Background())
	controller.Start(controllerCtx)
	zapLogger.Info("Session controller started.")

	// --- 7. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()

	// --- 8. Apply Global Middleware (order matters) ---
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig))

	// --- 9. Setup API Routes ---
	api.SetupRoutes(router, zapLogger, controller)

	// --- 10. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 11. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown during graceful shutdown", zap.Error(err))
	}

	// Tear down the session last so the final offline presence write races
	// only the process exit, not in-flight requests.
	controller.Close()
	cancelController()

	zapLogger.Info("Server exiting gracefully.")
}
