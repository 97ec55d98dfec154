// -----------------------------------------------------------------------
// Scribo worker - generates thought leadership PDF reports
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/jobs"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/charts"
	"github.com/ternarybob/scribo/internal/services/llm"
	"github.com/ternarybob/scribo/internal/services/outline"
	"github.com/ternarybob/scribo/internal/services/render"
	"github.com/ternarybob/scribo/internal/services/research"
	"github.com/ternarybob/scribo/internal/services/stats"
	"github.com/ternarybob/scribo/internal/services/writer"
	storage "github.com/ternarybob/scribo/internal/storage/badger"
	"github.com/ternarybob/scribo/internal/storage/files"
)

var (
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// One-shot mode: generate a single document inline and exit
	generateTopic = flag.String("generate", "", "Generate one document for the given topic, then exit")
	genIndustry   = flag.String("industry", "", "Industry context for -generate")
	genTone       = flag.String("tone", "", "Tone for -generate (professional, conversational, academic, persuasive)")
	genKeywords   = flag.String("keywords", "", "Comma-separated keywords for -generate")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Scribo version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence: config, logger, banner, then wiring
	path := *configFile
	if path == "" {
		path = *configFileC
	}
	if path == "" {
		if _, err := os.Stat("scribo.toml"); err == nil {
			path = "scribo.toml"
		}
	}

	config, err := common.LoadFromFile(path)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Str("path", path).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("config", path).
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Msg("Configuration loaded")

	db, err := storage.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open badger database")
		os.Exit(1)
	}
	defer db.Close()

	jobStore := storage.NewJobStorage(db, logger)
	docStore := storage.NewDocumentStorage(db, logger)
	fileStore, err := files.NewStorage(config.Storage.Files.Root, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open file storage")
		os.Exit(1)
	}

	completer := llm.NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, logger)
	defer completer.Close()

	orchestrator := jobs.NewOrchestrator(
		research.NewService(completer, logger),
		outline.NewService(completer, logger),
		writer.NewService(completer, logger),
		stats.NewService(completer, logger),
		charts.NewService(logger),
		render.NewService(render.NewRegistry(config.Render.TemplatesDir, logger), logger),
		jobStore, docStore, fileStore, config, logger,
	)

	if *generateTopic != "" {
		os.Exit(runOnce(orchestrator, docStore, jobStore, logger))
	}

	queue := jobs.NewQueue(db.Store().Badger(), &config.Queue, logger)
	pool := jobs.NewWorkerPool(queue, orchestrator, &config.Queue, logger)
	pool.Start()

	sweeper := jobs.NewSweeper(jobStore, docStore, config, logger)
	if config.Sweeper.Enabled {
		if err := sweeper.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start sweeper")
			os.Exit(1)
		}
	}

	logger.Info().Msg("Scribo worker ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down")
	pool.Stop()
	if config.Sweeper.Enabled {
		sweeper.Stop()
	}
	logger.Info().Msg("Scribo worker stopped")
}

// runOnce generates a single document inline, bypassing the queue
func runOnce(orchestrator *jobs.Orchestrator, docStore *storage.DocumentStorage, jobStore *storage.JobStorage, logger arbor.ILogger) int {
	ctx := context.Background()

	opts := models.GenerationOptions{
		Tone:     *genTone,
		Industry: *genIndustry,
	}
	if *genKeywords != "" {
		for _, k := range strings.Split(*genKeywords, ",") {
			if k = strings.TrimSpace(k); k != "" {
				opts.Keywords = append(opts.Keywords, k)
			}
		}
	}
	if err := opts.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid generation options")
		return 1
	}

	doc := models.NewDocument("cli", "cli", *generateTopic, opts)
	if err := docStore.SaveDocument(ctx, doc); err != nil {
		logger.Error().Err(err).Msg("Failed to save document")
		return 1
	}

	job := models.NewGenerationJob(doc.ID)
	if err := jobStore.SaveJob(ctx, job); err != nil {
		logger.Error().Err(err).Msg("Failed to save job")
		return 1
	}

	logger.Info().
		Str("document_id", doc.ID).
		Str("job_id", job.ID).
		Str("topic", doc.Topic).
		Msg("Running one-shot generation")

	if err := orchestrator.Run(ctx, job.ID); err != nil {
		logger.Error().Err(err).Msg("Generation failed")
		return 1
	}

	final, err := docStore.GetDocument(ctx, doc.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to reload document")
		return 1
	}

	logger.Info().
		Str("locator", final.PDFLocator).
		Int("pages", final.PageCount).
		Int("words", final.WordCount).
		Msg("Generation completed")
	return 0
}
