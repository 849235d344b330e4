package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/docs"
	"github.com/tbourn/go-counsel-backend/internal/config"
	httpapi "github.com/tbourn/go-counsel-backend/internal/http"
	"github.com/tbourn/go-counsel-backend/internal/jobs"
	"github.com/tbourn/go-counsel-backend/internal/music"
	"github.com/tbourn/go-counsel-backend/internal/notify"
	"github.com/tbourn/go-counsel-backend/internal/observability"
	"github.com/tbourn/go-counsel-backend/internal/search"
	"github.com/tbourn/go-counsel-backend/internal/services"
	"github.com/tbourn/go-counsel-backend/internal/sysutil"
)

type serveCommander struct {
	root *rootCommander

	listen          string
	seed            bool
	sweeper         bool
	eventBuffer     int
	shutdownTimeout time.Duration
}

const serveLongDesc string = `Run the HTTP API.

The schema is migrated on start. With --seed the reference data file is
applied before the server starts accepting requests. Unless disabled, the
request expiry sweeper runs in the same process.`

func newServeCmd(root *rootCommander) *cobra.Command {
	cmder := &serveCommander{root: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default: :$PORT)")
	cmd.Flags().BoolVar(&cmder.seed, "seed", sysutil.IsTruthy(os.Getenv("SEED_ON_START")), "Apply the seed file before serving")
	cmd.Flags().BoolVar(&cmder.sweeper, "sweeper", true, "Run the request expiry sweeper in-process")
	cmd.Flags().IntVar(&cmder.eventBuffer, "event-buffer", 32, "Per-stream buffer of counselor events")
	cmd.Flags().DurationVar(&cmder.shutdownTimeout, "shutdown-timeout", 15*time.Second, "Grace period for in-flight requests")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg := c.root.cfg

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := c.root.openDB()
	if err != nil {
		return err
	}
	defer closeDB(db)

	if c.seed {
		if err := applySeedFile(ctx, db, cfg.SeedPath); err != nil {
			return err
		}
	}

	hub := notify.NewHub(c.eventBuffer)
	hub.OnDrop = func(e notify.Event) {
		observability.StreamEventsDropped.Inc()
		log.Warn().Str("event", e.Type).Uint("counselor_id", e.CounselorID).Msg("counselor stream full; event dropped")
	}

	backends, closeBackends, err := c.backends(ctx, db, hub)
	if err != nil {
		return err
	}
	defer closeBackends()

	svc := httpapi.NewServices(db, backends, cfg)

	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.BasePath = cfg.APIBasePath

	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, hub, cfg)

	srv := &http.Server{
		Addr:              sysutil.FirstNonEmpty(c.listen, ":"+cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	// Open event streams never finish on their own.
	srv.RegisterOnShutdown(hub.Close)

	g, gctx := errgroup.WithContext(ctx)

	if fwd, ok := backends.Notifier.(*notify.RedisNotifier); ok {
		if err := fwd.Forward(gctx, hub); err != nil {
			return err
		}
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if c.sweeper {
		sw := &jobs.Sweeper{
			Requests: svc.Requests,
			Matcher:  svc.Matching,
			Interval: cfg.Matching.SweepInterval,
			Log:      log.Logger,
		}
		g.Go(func() error {
			if err := sw.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// backends builds the keyword index, the event fan-out and the music
// client. The returned func releases whatever was opened.
func (c *serveCommander) backends(ctx context.Context, db *gorm.DB, hub *notify.Hub) (httpapi.Backends, func(), error) {
	cfg := c.root.cfg
	b := httpapi.Backends{Events: hub, Notifier: hub}
	closers := []func(){}
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	idx, err := services.BuildKeywordIndex(ctx, db, searchOptions(cfg.Search)...)
	if err != nil {
		return b, release, fmt.Errorf("keyword index: %w", err)
	}
	b.Index = idx
	log.Info().Int("keywords", idx.Len()).Msg("keyword index built")

	if cfg.Redis.Addr != "" {
		rn, err := notify.NewRedisNotifier(ctx, cfg.Redis, log.Logger)
		if err != nil {
			return b, release, err
		}
		closers = append(closers, func() { _ = rn.Close() })
		b.Notifier = rn
		log.Info().Str("channel", notify.ChannelName(cfg.Redis.ChannelPrefix)).Msg("counselor events via redis")
	}

	if cfg.Music.APIKey != "" {
		b.Music = music.NewClient(cfg.Music)
	} else {
		log.Warn().Msg("MUSIC_API_KEY not set; music recommendations disabled")
	}
	return b, release, nil
}

// searchOptions maps SEARCH_* settings onto index options.
func searchOptions(cfg config.SearchConfig) []search.Option {
	opts := []search.Option{search.WithMinPrefix(cfg.MinPrefix)}
	if len(cfg.Stopwords) > 0 {
		opts = append(opts, search.WithStopwords(cfg.Stopwords))
	}
	if cfg.MaxDocs > 0 {
		opts = append(opts, search.WithMaxDocs(cfg.MaxDocs))
	}
	return opts
}
