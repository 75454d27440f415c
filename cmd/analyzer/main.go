// Command analyzer runs the interview analysis pipeline over a recorded
// audio file and writes a Markdown report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/skillsenselab/interview-analyzer/acoustic/extractor"
	"github.com/skillsenselab/interview-analyzer/cache"
	"github.com/skillsenselab/interview-analyzer/config"
	"github.com/skillsenselab/interview-analyzer/diarization/pyannote"
	"github.com/skillsenselab/interview-analyzer/logger"
	"github.com/skillsenselab/interview-analyzer/orchestrator"
	"github.com/skillsenselab/interview-analyzer/progress"
	"github.com/skillsenselab/interview-analyzer/report"
	"github.com/skillsenselab/interview-analyzer/semantic"
	"github.com/skillsenselab/interview-analyzer/semantic/ollama"
	"github.com/skillsenselab/interview-analyzer/session"
	"github.com/skillsenselab/interview-analyzer/transcription/whisper"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to config.yml (searched if empty)")
		envFile    = flag.String("env", "", "path to .env file (searched if empty)")
		outDir     = flag.String("out", ".", "directory for the generated report")
		asJSON     = flag.Bool("json", false, "also write the report as JSON")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: analyzer [flags] <audio-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	audioPath := flag.Arg(0)

	if err := run(audioPath, *configFile, *envFile, *outDir, *asJSON); err != nil {
		fmt.Fprintln(os.Stderr, "analyzer:", err)
		os.Exit(1)
	}
}

func run(audioPath, configFile, envFile, outDir string, asJSON bool) error {
	cfg, err := config.Load(config.WithConfigFile(configFile), config.WithEnvFile(envFile))
	if err != nil {
		return err
	}

	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	keyed := cache.NewKeyed(store, log)
	provider := ollama.NewProvider(cfg.Providers.Ollama)
	client := semantic.NewClient(provider, keyed, cfg.Semantic, log)

	hub := progress.NewHub(log)
	defer hub.Shutdown()

	pipeline := orchestrator.New(
		cfg.Pipeline,
		whisper.NewProvider(cfg.Providers.Whisper),
		pyannote.NewProvider(cfg.Providers.Pyannote),
		extractor.NewProvider(cfg.Providers.Extractor),
		client,
		hub,
		log,
	)

	sess := session.New(audioPath, session.ModeBatch)
	slog := log.WithSession(sess.ID)

	sub := hub.Subscribe(sess.ID)
	go func() {
		for ev := range sub.Events() {
			slog.Info("progress", logger.Fields(
				"kind", string(ev.Kind),
				"stage", ev.Stage,
				"message", ev.Message,
			))
		}
	}()
	defer hub.Unsubscribe(sub)

	slog.Info("starting analysis", logger.Fields("audio", audioPath))
	rep, err := pipeline.Process(ctx, sess)
	if err != nil {
		return fmt.Errorf("session %s failed: %w", sess.ID, err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	mdPath := filepath.Join(outDir, base+"-report.md")
	if err := os.WriteFile(mdPath, report.RenderMarkdown(rep), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if asJSON {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := os.WriteFile(filepath.Join(outDir, base+"-report.json"), data, 0o644); err != nil {
			return fmt.Errorf("write json report: %w", err)
		}
	}

	slog.Info("analysis complete", logger.Fields(
		"status", string(rep.Status),
		"degraded", rep.Degraded(),
		"report", mdPath,
	))
	fmt.Println(mdPath)
	return nil
}

// newStore builds the semantic result cache backend selected by the config.
func newStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		store, err := cache.NewRedisStore(ctx, cfg.Redis, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return cache.NewMemoryStore(), func() {}, nil
	}
}
