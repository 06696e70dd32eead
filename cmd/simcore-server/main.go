package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chronofauna/internal/adminauth"
	"chronofauna/internal/api"
	"chronofauna/internal/autosave"
	"chronofauna/internal/config"
	"chronofauna/internal/embedding"
	"chronofauna/internal/energy"
	"chronofauna/internal/eventbus"
	"chronofauna/internal/geneactivation"
	"chronofauna/internal/genediversity"
	"chronofauna/internal/habitat"
	"chronofauna/internal/kincompetition"
	"chronofauna/internal/logging"
	"chronofauna/internal/mapgen"
	"chronofauna/internal/metrics"
	"chronofauna/internal/mortality"
	"chronofauna/internal/niche"
	"chronofauna/internal/orchestrator"
	"chronofauna/internal/pathogen"
	"chronofauna/internal/predation"
	"chronofauna/internal/pressure"
	"chronofauna/internal/reproduction"
	"chronofauna/internal/router"
	"chronofauna/internal/saves"
	"chronofauna/internal/speciation"
	"chronofauna/internal/store/history"
	"chronofauna/internal/store/postgres"
	"chronofauna/internal/validation"
)

// speciationRouterAdapter narrows the ModelRouter's generic Invoke to
// speciation.Router's BatchResponse-typed signature.
type speciationRouterAdapter struct {
	r *router.Router
}

func (a speciationRouterAdapter) Invoke(ctx context.Context, capability string, payload any) (speciation.BatchResponse, error) {
	raw, err := a.r.Invoke(ctx, capability, payload)
	if err != nil {
		return speciation.BatchResponse{}, err
	}
	var resp speciation.BatchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return speciation.BatchResponse{}, fmt.Errorf("speciation router adapter: decode response: %w", err)
	}
	return resp, nil
}

func main() {
	logging.InitLogger()
	log.Println("Starting chronofauna simcore server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to parse DATABASE_URL:", err)
	}
	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer dbPool.Close()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		log.Fatal("Failed to connect to Mongo:", err)
	}
	defer mongoClient.Disconnect(ctx)
	turnLogs := mongoClient.Database("chronofauna").Collection("turn_logs")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: failed to connect to Redis: %v (energy ledger and event bus require it)", err)
	}
	defer redisClient.Close()

	speciesStore := postgres.NewSpeciesStore(dbPool)
	environmentStore := postgres.NewEnvironmentStore(dbPool)
	historyStore := history.NewStore(dbPool, turnLogs)
	genusStore := postgres.NewGenusStore(dbPool)

	embeddingProvider := embedding.NewProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
	embeddingCache := embedding.NewCache(redisClient, 4096, 24*time.Hour)
	embeddingService := embedding.NewService(embeddingProvider, embeddingCache)

	cacheListener := postgres.NewListener(cfg.DatabaseURL, embeddingCache)
	go func() {
		if err := cacheListener.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("WARNING: embedding cache invalidation listener stopped: %v", err)
		}
	}()

	modelRouter := router.NewRouter(cfg.AIConcurrencyLimit)
	modelRouter.RegisterProvider("speciation_batch", router.NewHTTPProvider("primary", router.ProviderOpenAICompatible, cfg.AIBaseURL, cfg.AIAPIKey, cfg.EmbeddingModel))

	natsConn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Printf("WARNING: failed to connect to NATS: %v (remote capability workers unavailable)", err)
	} else {
		defer natsConn.Close()
		modelRouter.RegisterProvider("narrative", router.NewNATSProvider("narrative-worker", natsConn))
		modelRouter.RegisterProvider("species_status_eval", router.NewNATSProvider("status-worker", natsConn))
	}

	pressureTable, err := pressure.LoadTable(nil)
	if err != nil {
		log.Fatal("Failed to load pressure table:", err)
	}

	existingSpecies, err := speciesStore.ListAll(ctx)
	if err != nil {
		log.Printf("WARNING: failed to preload lineage codes: %v", err)
	}
	existingCodes := make(map[string]bool, len(existingSpecies))
	for _, sp := range existingSpecies {
		existingCodes[sp.LineageCode] = true
	}

	geneDiversity := genediversity.NewService()
	kinCalc := kincompetition.NewCalculator(kincompetition.DefaultWeights)

	orch := orchestrator.New()
	orch.Species = speciesStore
	orch.Environment = environmentStore
	orch.History = historyStore
	orch.Genera = genusStore
	orch.Energy = energy.NewStore(redisClient, "chronofauna:energy", 10, 500)
	orch.Bus = eventbus.NewBus(redisClient, uuid.NewString())
	orch.Pressures = pressureTable
	orch.NicheAnalyzer = niche.NewAnalyzer(embeddingService)
	orch.Predation = predation.NewService()
	orch.Pathogen = pathogen.NewSystem(time.Now().UnixNano())
	orch.Mortality = mortality.NewEngine(kinCalc)
	orch.GeneActivation = geneactivation.NewService(geneDiversity, time.Now().UnixNano())
	orch.Reproduction = reproduction.NewEngine()
	orch.Speciation = speciation.NewEngine(speciationRouterAdapter{r: modelRouter}, time.Now().UnixNano(), existingCodes)
	orch.Habitat = habitat.NewManager()
	orch.KinCalc = kinCalc
	orch.MapCollab = mapgen.NewPerlinProvider(cfg.MapSeed)

	pruneScheduler := cron.New()
	pruneScheduler.AddFunc(cfg.HabitatPruneSchedule, func() {
		turn := orch.CurrentTurn() - cfg.HabitatRetentionTurns
		if turn <= 0 {
			return
		}
		if err := environmentStore.PruneHabitatsOlderThan(ctx, turn); err != nil {
			log.Printf("WARNING: habitat retention prune failed: %v", err)
		}
	})
	pruneScheduler.Start()
	defer pruneScheduler.Stop()

	savesManager := saves.NewManager("saves", speciesStore, environmentStore, historyStore)

	autosaveScheduler := autosave.NewScheduler(savesManager, cfg.AutosaveEveryNRounds, cfg.AutosaveRollingSlots, "autosave-")
	autosaveScheduler.OnError(func(err error) {
		log.Printf("WARNING: autosave failed: %v", err)
	})
	orch.SetAutosave(func(ctx context.Context, turn int64) error {
		autosaveScheduler.MaybeSchedule(ctx, turn)
		return nil
	})

	catastrophicGate := &api.CatastrophicGate{}
	tokenManager := adminauth.NewTokenManager(cfg.JWTSecret)
	validator := validation.New()

	healthHandler := api.NewHealthHandler()
	healthHandler.SetReady(true)
	turnsHandler := api.NewTurnsHandler(orch, validator, catastrophicGate)
	eventsHandler := api.NewEventsHandler(orch.Bus)
	speciesHandler := api.NewSpeciesHandler(speciesStore, validator)
	lineageHandler := api.NewLineageHandler(speciesStore)
	historyHandler := api.NewHistoryHandler(historyStore)
	mapHandler := api.NewMapHandler(environmentStore)
	configHandler := api.NewConfigHandler()
	savesHandler := api.NewSavesHandler(savesManager, validator, catastrophicGate)
	gameHandler := api.NewGameHandler(speciesStore, environmentStore, uuid.NewString())
	tasksHandler := api.NewTasksHandler(modelRouter)
	adminHandler := api.NewAdminHandler(speciesStore, environmentStore, historyStore, cfg.AdminTokenHash, catastrophicGate)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Path == "/api/events/stream" || req.URL.Path == "/api/events/stream/ws" {
				next.ServeHTTP(w, req)
				return
			}
			metrics.Middleware(next).ServeHTTP(w, req)
		})
	})
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", metrics.Handler())
	r.Get("/health/live", healthHandler.LivenessProbe)
	r.Get("/health/ready", healthHandler.ReadinessProbe)
	r.Get("/health", healthHandler.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/turns/run", turnsHandler.RunTurn)
		r.Get("/events/stream", eventsHandler.Stream)
		r.Get("/events/stream/ws", eventsHandler.StreamWS)

		r.Get("/species/list", speciesHandler.List)
		r.Get("/species/{code}", speciesHandler.Get)
		r.Post("/species/edit", speciesHandler.Edit)
		r.Post("/watchlist", speciesHandler.Watchlist)

		r.Get("/lineage", lineageHandler.Get)
		r.Get("/history", historyHandler.List)
		r.Get("/map", mapHandler.Get)

		r.Get("/config/ui", configHandler.Get)
		r.Post("/config/ui", configHandler.Set)

		r.Post("/saves/create", savesHandler.Create)
		r.Post("/saves/save", savesHandler.Save)
		r.Post("/saves/load", savesHandler.Load)

		r.Get("/game/state", gameHandler.State)
		r.Post("/tasks/abort", tasksHandler.Abort)

		r.Group(func(r chi.Router) {
			r.Use(tokenManager.Middleware)
			r.Post("/admin/drop-database", adminHandler.DropDatabase)
		})
	})

	port := cfg.Port
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		cancel()
		autosaveScheduler.Wait()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server listening on port %s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server error:", err)
	}
	log.Println("Server stopped")
}

