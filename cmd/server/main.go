package main

import (
	"context"
	"errors"
	"flag"
	"log/syslog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/buzkaaclicker/streams"
	"github.com/buzkaaclicker/streams/feed"
	"github.com/buzkaaclicker/streams/inmem"
	"github.com/buzkaaclicker/streams/page"
	"github.com/buzkaaclicker/streams/persistent"
	"github.com/buzkaaclicker/streams/stream"
	"github.com/buzkaaclicker/streams/tasks"
	"github.com/buzkaaclicker/streams/transport/rest"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	logrusys "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/tidwall/buntdb"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

type config struct {
	debug          bool
	pgDsn          string
	cacheBackend   string
	kvPath         string
	listenAddr     string
	metricsAddr    string
	allowOrigins   string
	cacheListLimit int
	taskQueueSize  int
	syslog         bool
}

func configFromEnv() config {
	requireEnv := func(key string) string {
		value := os.Getenv(key)
		if value == "" {
			logrus.Fatalln(key + " not set!")
		}
		return value
	}
	envOr := func(key string, fallback string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return fallback
	}
	intEnvOr := func(key string, fallback int) int {
		value := os.Getenv(key)
		if value == "" {
			return fallback
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			logrus.WithField("value", value).Fatalln(key + " is not a positive number!")
		}
		return n
	}

	return config{
		debug:          os.Getenv("DEBUG") == "true",
		pgDsn:          requireEnv("POSTGRES_DSN"),
		cacheBackend:   envOr("CACHE_BACKEND", "buntdb"),
		kvPath:         envOr("KV_PATH", "kv.db"),
		listenAddr:     envOr("LISTEN_ADDR", ":2137"),
		metricsAddr:    envOr("METRICS_ADDR", ":9137"),
		allowOrigins:   envOr("ALLOW_ORIGINS", "*"),
		cacheListLimit: intEnvOr("CACHE_LIST_LIMIT", stream.DefaultMaxListSize),
		taskQueueSize:  intEnvOr("TASK_QUEUE_SIZE", 1024),
		syslog:         os.Getenv("SYSLOG") == "true",
	}
}

func setupLogger(cfg config) {
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.Stamp,
		FullTimestamp:   true,
	})
	if cfg.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if !cfg.syslog {
		return
	}

	syslogHook, err := logrusys.NewSyslogHook("", "", syslog.LOG_USER, "streams")
	if err != nil {
		logrus.WithError(err).Fatalln("Could not create syslog hook.")
		return
	}
	logrus.AddHook(syslogHook)
}

// openCache returns the configured cache and a func releasing it.
func openCache(cfg config) (streams.Cache, func()) {
	switch cfg.cacheBackend {
	case "memory":
		c, err := inmem.NewCache(0)
		if err != nil {
			logrus.WithError(err).Fatalln("Could not create memory cache.")
		}
		c.ListLimit = cfg.cacheListLimit
		return c, c.Close
	case "buntdb":
		bdb, err := buntdb.Open(cfg.kvPath)
		if err != nil {
			logrus.WithError(err).Fatalln("Could not open buntdb.")
		}
		return &persistent.Cache{Buntdb: bdb, ListLimit: cfg.cacheListLimit}, func() {
			if err := bdb.Close(); err != nil {
				logrus.WithError(err).Warningln("Could not close buntdb.")
			}
		}
	default:
		logrus.WithField("backend", cfg.cacheBackend).Fatalln("Unknown CACHE_BACKEND!")
		return nil, nil
	}
}

func newFeedService(cfg config, db *bun.DB, cache streams.Cache, queue streams.TaskQueue) *feed.Service {
	activities := &persistent.ActivityStore{DB: db}
	users := &persistent.UserStore{DB: db}
	orgs := &persistent.OrgStore{DB: db}
	groups := &persistent.GroupStore{DB: db}
	follows := &persistent.FollowStore{DB: db}
	stars := &persistent.StarStore{DB: db}

	registry := stream.NewRegistry(
		stream.All{},
		stream.Custom{Orgs: orgs},
		stream.Followed{Follows: follows},
		stream.ParentOrg{Users: users, Orgs: orgs},
		stream.Starred{},
	)
	loader := &stream.Loader{
		Cache:       cache,
		Ids:         activities,
		Stars:       stars,
		MaxListSize: cfg.cacheListLimit,
	}
	resolver := &page.Resolver{
		Sources: []streams.OrderedSource{loader, &persistent.SearchSource{DB: db}},
		Trimmer: page.Trimmer{Records: activities},
	}

	return &feed.Service{
		Cache:        cache,
		Tx:           &persistent.Transactor{DB: db},
		Tasks:        queue,
		Registry:     registry,
		Resolver:     resolver,
		Activities:   activities,
		Comments:     &persistent.CommentStore{DB: db},
		Likes:        &persistent.LikeStore{DB: db},
		Stars:        stars,
		Groups:       groups,
		Orgs:         orgs,
		Follows:      follows,
		Definitions:  &persistent.StreamDefinitionStore{DB: db},
		Destinations: &persistent.DestinationStore{DB: db},
		Identities:   &persistent.IdentityResolver{DB: db},
	}
}

func newApp(cfg config, service *feed.Service, users streams.UserStore) *fiber.App {
	server := fiber.New()
	server.Use(rest.RequestId())
	server.Use(rest.LogHandler())

	api := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: rest.ErrorHandler,
	})
	api.Use(cors.New(cors.Config{AllowOrigins: cfg.allowOrigins}))
	api.Get("/status", monitor.New())

	feedController := rest.FeedController{Feed: service}
	feedController.InstallTo(rest.ViewerAuthorizer(users), api)

	server.Mount("/api/", api)
	server.Use(rest.NotFoundHandler)
	return server
}

func awaitInterruption(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	select {
	case <-c:
		return errInterrupted
	case <-ctx.Done():
		return nil
	}
}

var errInterrupted = errors.New("interrupted")

func main() {
	flag.Parse()
	cfg := configFromEnv()
	setupLogger(cfg)
	logrus.Infoln("Starting streams.")

	cache, closeCache := openCache(cfg)
	defer closeCache()

	logrus.Infoln("Opening database.")
	db := persistent.PgOpen(context.Background(), cfg.pgDsn)
	defer db.Close()
	if err := persistent.CreateSchema(context.Background(), db); err != nil {
		logrus.WithError(err).Fatalln("Could not create schema.")
	}

	queue := tasks.NewQueue(cfg.taskQueueSize)
	service := newFeedService(cfg, db, cache, queue)
	app := newApp(cfg, service, &persistent.UserStore{DB: db})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metrics := &http.Server{Addr: cfg.metricsAddr, Handler: metricsMux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queue.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logrus.WithField("addr", cfg.listenAddr).Infoln("Starting listening... To shut down use ^C")
		return app.Listen(cfg.listenAddr)
	})
	g.Go(func() error {
		if err := metrics.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := awaitInterruption(gctx)
		logrus.Infoln("Shutting down...")
		if err := app.Shutdown(); err != nil {
			logrus.WithError(err).Warningln("Fiber shutdown failed.")
		}
		if err := metrics.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Warningln("Metrics shutdown failed.")
		}
		cancel()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errInterrupted) {
		logrus.WithError(err).Errorln("Server stopped.")
	}
	logrus.Exit(0)
}
