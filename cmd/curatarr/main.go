package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/curatarr/curatarr/internal/actions"
	"github.com/curatarr/curatarr/internal/api"
	"github.com/curatarr/curatarr/internal/arr"
	"github.com/curatarr/curatarr/internal/cache"
	"github.com/curatarr/curatarr/internal/collections"
	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/executor"
	"github.com/curatarr/curatarr/internal/health"
	"github.com/curatarr/curatarr/internal/ids"
	"github.com/curatarr/curatarr/internal/logger"
	"github.com/curatarr/curatarr/internal/metadata/tmdb"
	"github.com/curatarr/curatarr/internal/overseerr"
	"github.com/curatarr/curatarr/internal/plex"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/rules/getters"
	"github.com/curatarr/curatarr/internal/scheduler"
	"github.com/curatarr/curatarr/internal/scheduler/tasks"
	"github.com/curatarr/curatarr/internal/startup"
	"github.com/curatarr/curatarr/internal/tautulli"
	"github.com/curatarr/curatarr/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		RecentSize: 1000,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting Curatarr")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	applied, err := db.Migrate(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	if len(applied) > 0 {
		log.Info().Ints64("versions", applied).Msg("applied database migrations")
	}

	respCache := cache.New(cache.Config{TTL: cfg.Cache.TTL, MaxItems: cfg.Cache.MaxItems})

	// External applications
	plexClient := plex.NewClient(cfg.Plex, respCache, log.Logger)
	radarrClient := arr.NewRadarrClient(cfg.Radarr, respCache, log.Logger)
	sonarrClient := arr.NewSonarrClient(cfg.Sonarr, respCache, log.Logger)
	overseerrClient := overseerr.NewClient("overseerr", cfg.Overseerr, respCache, log.Logger)
	jellyseerrClient := overseerr.NewClient("jellyseerr", cfg.Jellyseerr, respCache, log.Logger)
	tautulliClient := tautulli.NewClient(cfg.Tautulli, respCache, log.Logger)
	tmdbClient := tmdb.NewClient(cfg.TMDB, respCache, log.Logger)

	resolver := ids.NewResolver(plexClient, tmdbClient, log.Logger)

	// Rule evaluation
	dispatcher := getters.NewDispatcher(map[rules.Application]getters.Source{
		rules.AppPlex:       getters.NewPlexGetter(plexClient, log.Logger),
		rules.AppRadarr:     getters.NewRadarrGetter(radarrClient, resolver, log.Logger),
		rules.AppSonarr:     getters.NewSonarrGetter(sonarrClient, resolver, log.Logger),
		rules.AppOverseerr:  getters.NewSeerrGetter(overseerrClient, resolver, log.Logger),
		rules.AppJellyseerr: getters.NewSeerrGetter(jellyseerrClient, resolver, log.Logger),
		rules.AppTautulli:   getters.NewTautulliGetter(tautulliClient, plexClient, log.Logger),
	}, log.Logger)
	comparator := rules.NewComparator(dispatcher, log.Logger)

	// Services
	collectionService := collections.NewService(collections.NewStore(db.Conn()), plexClient, log.Logger)
	ruleStore := rules.NewStore(db.Conn())
	ruleService := rules.NewService(ruleStore, collectionService, comparator, plexClient, log.Logger)

	ruleExecutor := executor.New(plexClient, comparator, ruleStore, collectionService, cfg.Rules.PageSize, log.Logger)

	actionHandler := actions.NewHandler(
		actions.NewRadarrHandler(radarrClient, plexClient, resolver, log.Logger),
		actions.NewSonarrHandler(sonarrClient, plexClient, resolver, log.Logger),
		log.Logger,
	)
	collectionWorker := worker.New(
		collectionService,
		actionHandler,
		[]worker.RequestManager{overseerrClient, jellyseerrClient},
		plexClient,
		resolver,
		worker.Config{
			ForceRequestSync:      cfg.Settings.ForceRequestSync,
			AvailabilitySyncDelay: cfg.Settings.AvailabilitySyncDelay,
		},
		log.Logger,
	)

	connections := map[string]api.Connection{
		"plex":       plexClient,
		"radarr":     radarrClient,
		"sonarr":     sonarrClient,
		"overseerr":  overseerrClient,
		"jellyseerr": jellyseerrClient,
		"tautulli":   tautulliClient,
	}
	healthService := health.NewService(log.Logger)
	for name, conn := range connections {
		healthService.Register(name, conn)
	}

	// Rule runs against an unreachable Plex would fail on start.
	retryCfg := startup.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.Health.StartupAttempts
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	if err := startup.WaitFor(waitCtx, "plex", plexClient, retryCfg, log.Logger); err != nil {
		log.Warn().Err(err).Msg("Plex is not reachable, continuing startup")
	}
	waitCancel()

	// Scheduler
	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := tasks.RegisterRuleHandlerTask(sched, ruleExecutor, cfg.Rules.Cron); err != nil {
		log.Fatal().Err(err).Msg("failed to register rule handler task")
	}
	if err := tasks.RegisterCollectionHandlerTask(sched, collectionWorker, cfg.Rules.CollectionHandlerCron); err != nil {
		log.Fatal().Err(err).Msg("failed to register collection handler task")
	}
	if err := tasks.RegisterConnectionHealthTask(sched, healthService, cfg.Health.CheckInterval); err != nil {
		log.Fatal().Err(err).Msg("failed to register connection health task")
	}

	logPath := ""
	if cfg.Logging.Path != "" {
		logPath = filepath.Join(cfg.Logging.Path, "curatarr.log")
	}
	server := api.NewServer(cfg, api.Deps{
		Rules:       ruleService,
		Collections: collectionService,
		Scheduler:   sched,
		Connections: connections,
		Health:      healthService,
		Recent:      log.Recent(),
		LogPath:     logPath,
	}, log.Logger)

	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	go func() {
		addr := cfg.Server.Address()
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	log.Info().Msg("server stopped")
}
