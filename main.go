package main

import (
	"proctor-go/internal/config"
	"proctor-go/internal/database"
	"proctor-go/internal/integrity"
	logger "proctor-go/internal/logging"
	"proctor-go/internal/models"
	"proctor-go/internal/repository"
	"proctor-go/internal/router"
	"proctor-go/internal/scoring"
	"proctor-go/internal/security"
	"proctor-go/internal/services"
	"proctor-go/internal/session"
	"proctor-go/internal/webcam"

	"go.uber.org/zap"
)

func main() {
	// Bootstrap logger so config loading has somewhere to report problems.
	log, err := logger.Init(logger.DefaultOptions())
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	if err := config.Init(".", log); err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Re-initialize with the configured rotation settings.
	logConf := config.Conf.Logging
	log, err = logger.Init(logger.Options{
		Directory:  logConf.Directory,
		MaxSize:    logConf.MaxSize,
		MaxBackups: logConf.MaxBackups,
		MaxAge:     logConf.MaxAge,
		Compress:   logConf.Compress,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := database.Init(log); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Load assessment definitions (questions, answer keys, time limits).
	bank, err := models.LoadAssessmentBank(config.Conf.Server.AssessmentsFile)
	if err != nil {
		log.Fatal("Failed to load assessments", zap.Error(err))
	}

	store := repository.NewStore(database.DB)
	policy := func() scoring.Policy { return scoring.PolicyFromConfig(config.Conf.Proctoring) }
	proctoring := func() config.ProctoringConfig { return config.Conf.Proctoring }

	aggregator := scoring.NewAggregator(log, store, policy)
	manager := session.NewManager(log, store, bank, aggregator, config.Conf.Proctoring.DefaultMaxDuration)
	processor := security.NewProcessor(log, store, manager, policy)
	monitor := webcam.NewMonitor(log, store, webcam.StubAnalyzer{Confidence: 0.99}, processor, proctoring)

	// The plagiarism cache is optional; the analyzer runs uncached when
	// redis is not configured or unreachable.
	var cache *integrity.Cache
	if addr := config.Conf.Redis.Addr; addr != "" {
		cache, err = integrity.NewCache(log, addr, config.Conf.Redis.Password, config.Conf.Redis.TTL)
		if err != nil {
			log.Warn("Redis unreachable, plagiarism cache disabled", zap.Error(err))
			cache = nil
		}
	}

	analyzer := integrity.NewAnalyzer(log, store, manager, integrity.NewNGramDetector(), integrity.BaselineScorer{}, cache, proctoring)
	analyzer.Start()
	defer analyzer.Stop()
	defer monitor.Shutdown()

	sweeper := services.NewSweeper(log, store, manager, monitor, analyzer, config.Conf.Proctoring.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	r := router.Setup(log, router.Deps{
		Manager:    manager,
		Security:   processor,
		Monitor:    monitor,
		Analyzer:   analyzer,
		Aggregator: aggregator,
		Cache:      cache,
	})

	port := ":" + config.Conf.Server.Port
	log.Info("Server listening on http://localhost" + port)
	if err := r.Run(port); err != nil {
		log.Fatal("Failed to run Gin server", zap.Error(err))
	}
}
