// Command lumina runs the UX friction-analysis pipeline: serve the host
// API, process recordings directly, and inspect the playbook and memory.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moglabs/lumina/internal/api"
	"github.com/moglabs/lumina/internal/archive"
	"github.com/moglabs/lumina/internal/benchmark"
	"github.com/moglabs/lumina/internal/brain"
	"github.com/moglabs/lumina/internal/config"
	"github.com/moglabs/lumina/internal/diagnosis"
	"github.com/moglabs/lumina/internal/media"
	"github.com/moglabs/lumina/internal/memory"
	"github.com/moglabs/lumina/internal/mockup"
	"github.com/moglabs/lumina/internal/playbook"
	"github.com/moglabs/lumina/internal/progress"
	"github.com/moglabs/lumina/internal/render"
	"github.com/moglabs/lumina/internal/sensing"
	"github.com/moglabs/lumina/internal/sentiment"
	"github.com/moglabs/lumina/internal/vision"
	"github.com/moglabs/lumina/internal/watch"
)

const version = "0.1.0"

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "lumina",
		Short: "UX friction analysis for recorded usability sessions",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(playbookCmd())
	rootCmd.AddCommand(memoriesCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// app holds the wired pipeline components.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	bus      *progress.Bus
	queue    *brain.Queue
	engine   *playbook.Engine
	memories *memory.Store
	pipeline *sensing.Pipeline
	worker   *brain.Worker
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := newLogger()

	memStore, err := memory.New(cfg.MemoryDBPath(), log.With("component", "memory"))
	if err != nil {
		return nil, err
	}

	bus := progress.NewBus()
	queue := brain.NewQueue()
	engine := playbook.NewEngine(cfg.PlaybookPath(), log.With("component", "playbook"))
	extractor := media.NewExtractor()

	var archiver sensing.Archiver
	if cfg.Archive.Compress {
		archiver = archive.NewStore(cfg.ArchiveDir())
	}

	pipeline := sensing.NewPipeline(
		extractor,
		sentiment.NewAnalyzer(cfg.Sentiment, extractor, log.With("component", "sentiment")),
		vision.NewClient(cfg.Vision, log.With("component", "vision")),
		queue,
		memStore,
		archiver,
		bus,
		log.With("component", "sensing"),
	)

	worker := brain.NewWorker(
		queue,
		diagnosis.NewClient(cfg.Diagnosis, log.With("component", "diagnosis")),
		memStore,
		memStore,
		benchmark.NewClient(cfg.Benchmark, log.With("component", "benchmark")),
		mockup.NewClient(cfg.Mockup, log.With("component", "mockup")),
		engine,
		bus,
		cfg.UploadDir(),
		log.With("component", "brain"),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		queue:    queue,
		engine:   engine,
		memories: memStore,
		pipeline: pipeline,
		worker:   worker,
	}, nil
}

func (a *app) close() {
	a.bus.Close()
	a.memories.Close()
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the host API, brain worker and inbox watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			workerDone := make(chan struct{})
			go func() {
				a.worker.Run(ctx)
				close(workerDone)
			}()

			watcher := watch.NewWatcher(a.cfg.InboxDir(), 2*time.Second, func(path string) {
				go func() {
					// Keep inbox drops under the uploads root so their
					// frames get /uploads URLs like direct uploads.
					videoPath, err := watch.MoveTo(path, a.cfg.UploadDir())
					if err != nil {
						a.log.Error("inbox move failed", "video", path, "error", err)
						return
					}
					if err := a.pipeline.Process(context.Background(), videoPath); err != nil {
						a.log.Error("inbox processing failed", "video", videoPath, "error", err)
					}
				}()
			}, a.log)
			go func() {
				if err := watcher.Run(ctx); err != nil {
					a.log.Error("inbox watcher stopped", "error", err)
				}
			}()

			server := api.New(addr, a.cfg.UploadDir(), a.pipeline, a.queue, a.engine, a.memories, a.bus, a.log)
			if err := server.Run(ctx); err != nil {
				return err
			}

			<-workerDone
			a.log.Info("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <video>",
		Short: "Analyze one recording and exit once the playbook is updated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			workerDone := make(chan struct{})
			go func() {
				a.worker.Run(ctx)
				close(workerDone)
			}()

			if err := a.pipeline.Process(ctx, args[0]); err != nil {
				cancel()
				<-workerDone
				return err
			}

			// Wait for the brain to drain the queue before exiting.
			for a.queue.Len() > 0 || a.worker.Busy() {
				time.Sleep(100 * time.Millisecond)
			}
			cancel()
			<-workerDone

			pb, err := a.engine.Load()
			if err != nil {
				return err
			}
			fmt.Printf("Done: playbook has %d bullets (%s)\n", len(pb.Bullets), a.cfg.PlaybookPath())
			return nil
		},
	}
}

func playbookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbook",
		Short: "Inspect or reset the playbook",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the playbook as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			pb, err := a.engine.Load()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(pb, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "brief",
		Short: "Print the markdown designer's brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			pb, err := a.engine.Load()
			if err != nil {
				return err
			}
			fmt.Print(render.Brief(pb))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Reset the playbook to empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.engine.Clear(); err != nil {
				return err
			}
			fmt.Println("Playbook cleared.")
			return nil
		},
	})

	return cmd
}

func memoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memories",
		Short: "Inspect or prune stored learnings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all stored learnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			memories, err := a.memories.ListAll()
			if err != nil {
				return err
			}
			if len(memories) == 0 {
				fmt.Println("No memories stored yet.")
				return nil
			}
			for _, m := range memories {
				fmt.Printf("%s  [%s]  %s\n", m.ID[:8], m.Kind, m.Text)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one memory by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.memories.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all stored learnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.memories.DeleteAll(); err != nil {
				return err
			}
			fmt.Println("All memories deleted.")
			return nil
		},
	})

	return cmd
}

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Work with archived session audio",
	}

	var out string
	restore := &cobra.Command{
		Use:   "restore <session>",
		Short: "Decompress a session's archived audio for re-analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			dest := out
			if dest == "" {
				dest = args[0] + ".wav"
			}
			store := archive.NewStore(cfg.ArchiveDir())
			if err := store.Restore(args[0], dest); err != nil {
				return err
			}
			fmt.Printf("Restored: %s\n", dest)
			return nil
		},
	}
	restore.Flags().StringVarP(&out, "out", "o", "", "destination path (default <session>.wav)")
	cmd.AddCommand(restore)

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(config.DefaultConfig().DataDir)
			if err != nil {
				return err
			}
			fmt.Printf("Config: %s\n", path)
			return nil
		},
	})

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lumina v%s\n", version)
		},
	}
}
