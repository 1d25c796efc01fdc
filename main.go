package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/noisersup/filesmanager/auth"
	"github.com/noisersup/filesmanager/blob"
	"github.com/noisersup/filesmanager/cache"
	"github.com/noisersup/filesmanager/config"
	"github.com/noisersup/filesmanager/database"
	"github.com/noisersup/filesmanager/files"
	l "github.com/noisersup/filesmanager/logger"
	"github.com/noisersup/filesmanager/models"
	"github.com/noisersup/filesmanager/queue"
	"github.com/noisersup/filesmanager/server"
	"github.com/noisersup/filesmanager/thumbnail"
	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "filesmanager",
		Short:         "Multi-user file storage with image previews",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			l.Default().SetVerbose(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	var withWorker bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), true, withWorker)
		},
	}
	serveCmd.Flags().BoolVar(&withWorker, "with-worker", false, "also consume the job queues in this process")

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume the thumbnail and welcome queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), false, true)
		},
	}

	rootCmd.AddCommand(serveCmd, workerCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		l.Fatal(err.Error())
	}
}

// app holds every wired component of one process
type app struct {
	cfg   *config.Config
	log   *l.Logger
	db    models.Database
	cache models.Cache
	jobs  *queue.Queue
	blobs *blob.Store
	auth  *auth.Auth
	files *files.Service
}

func build(ctx context.Context, cfg *config.Config, log *l.Logger) (*app, error) {
	log.LogV("Connecting to %s database %s", cfg.DBDriver, cfg.DBDatabase)
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DBURI, cfg.DBDatabase, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db, blobs: blob.New(cfg.FolderPath)}

	var broker queue.Broker
	switch cfg.QueueDriver {
	case "redis":
		pool := cache.NewRedisPool(cfg.RedisURL)
		a.cache = cache.NewRedis(pool)
		broker = queue.NewRedisBroker(pool)
	default:
		a.cache = cache.NewMemory()
		broker = queue.NewMemoryBroker()
	}
	a.jobs = queue.New(broker, cfg.QueueMaxAttempts, log)

	a.auth = auth.NewAuth(db, a.cache, a.jobs, cfg.SessionTTL, log)
	a.files = files.NewService(db, a.blobs, a.jobs, log)
	return a, nil
}

func (a *app) Close() {
	// the redis cache and broker share one pool, closing the queue closes it
	if err := a.jobs.Close(); err != nil {
		a.log.Warn("closing queue: %s", err.Error())
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("closing database: %s", err.Error())
	}
}

// consume runs the queue handlers until ctx is done
func (a *app) consume(ctx context.Context) {
	worker := thumbnail.NewWorker(a.db, a.blobs, a.cfg.ThumbnailMaxPixels, a.log)
	handlers := map[string]queue.Handler{
		models.FileQueue: worker.Handle,
		models.UserQueue: a.auth.Welcome,
	}

	var wg sync.WaitGroup
	for name, h := range handlers {
		wg.Add(1)
		go func(name string, h queue.Handler) {
			defer wg.Done()
			a.log.Log("Consuming %s with %d workers", name, a.cfg.WorkerConcurrency)
			if err := a.jobs.Consume(ctx, name, h, a.cfg.WorkerConcurrency); err != nil {
				a.log.SErr("consume", "%s: %s", name, err.Error())
			}
		}(name, h)
	}
	wg.Wait()
}

func run(ctx context.Context, serve, work bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := l.Default()

	if cfg.QueueDriver == "memory" && serve != work {
		return fmt.Errorf("QUEUE_DRIVER=memory needs the API and the worker in one process (serve --with-worker)")
	}
	if cfg.DBDriver == "memory" && !serve {
		return fmt.Errorf("DB_DRIVER=memory cannot be shared with a separate worker process")
	}
	if err := os.MkdirAll(cfg.FolderPath, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", cfg.FolderPath, err)
	}

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// a failing listener also stops the consumers
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if work {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.consume(ctx)
		}()
	}

	if serve {
		s := server.New(log, a.db, a.cache, a.auth, a.files, cfg.MaxUploadBytes)
		err = s.ListenAndServe(ctx, cfg.Port, cfg.ShutdownTimeout)
		cancel()
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	return err
}
