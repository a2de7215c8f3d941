package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/octree/featureflag"
	octreehttp "github.com/aukilabs/octree/http"
	"github.com/aukilabs/octree/models"
	"github.com/aukilabs/octree/smoketest"
	owebsocket "github.com/aukilabs/octree/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The octree server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "octree_info",
		Help:        "Octree server information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"OCTREE_ADDR"                  help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"OCTREE_ADMIN_ADDR"            help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"OCTREE_PUBLIC_ENDPOINT"       help:"The public endpoint where this server is reachable."`
	AuthToken          string        `cli:""        env:"OCTREE_AUTH_TOKEN"            help:"The bearer token required by the world api. Empty disables authentication."`
	AuthTokenFile      string        `cli:""        env:"OCTREE_AUTH_TOKEN_FILE"       help:"The file that contains the bearer token required by the world api."`
	LogLevel           string        `cli:""        env:"OCTREE_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"OCTREE_LOG_INDENT"            help:"Indent logs."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"OCTREE_CLIENT_IDLE_TIMEOUT"   help:"Time until an idle stream client will be disconnected."`
	FrameDuration      time.Duration `cli:",hidden" env:"OCTREE_FRAME_DURATION"        help:"The duration between two index updates of a world."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"OCTREE_LOG_SUMMARY_INTERVAL"  help:"The duration between each log summary by connection."`
	MaxWorlds          int           `cli:""        env:"OCTREE_MAX_WORLDS"            help:"The maximum number of worlds. 0 means unlimited."`
	MaxRecordsPerNode  int           `cli:""        env:"OCTREE_MAX_RECORDS_PER_NODE"  help:"The default number of entities a node holds before splitting."`
	MaxDepth           int           `cli:""        env:"OCTREE_MAX_DEPTH"             help:"The default maximum depth of a world index."`
	MaxAllowedDepth    int           `cli:""        env:"OCTREE_MAX_ALLOWED_DEPTH"     help:"The deepest world index a client can ask for."`
	Events             eventsConfig  `cli:",hidden" env:"-"                            help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"OCTREE_FEATURE_FLAGS"         help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                            help:"Show version."`
	Help               bool          `cli:""        env:"-"                            help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"OCTREE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"OCTREE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"OCTREE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"OCTREE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 50,
		LogSummaryInterval: time.Minute,
		MaxWorlds:          64,
		MaxRecordsPerNode:  8,
		MaxDepth:           8,
		MaxAllowedDepth:    models.DefaultMaxAllowedDepth,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the octree world server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	authToken, err := loadAuthToken(conf)
	if err != nil {
		logs.Fatal(errors.New("error loading auth token").Wrap(err))
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "octree",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)
	if unknown := featureFlags.Unknown(); len(unknown) != 0 {
		logs.WithTag("feature_flags", unknown).
			Warn("unknown feature flags are ignored")
	}

	worlds := &models.WorldStore{
		FrameDuration:     conf.FrameDuration,
		MaxWorlds:         conf.MaxWorlds,
		MaxRecordsPerNode: conf.MaxRecordsPerNode,
		MaxDepth:          conf.MaxDepth,
		MaxAllowedDepth:   conf.MaxAllowedDepth,
		FeatureFlags:      featureFlags,
	}
	defer worlds.Close()

	var ready atomic.Bool
	readinessCheck := ready.Load

	var api http.ServeMux
	worldHandler := octreehttp.WorldHandler{Worlds: worlds}
	worldHandler.Register(&api)

	var service http.ServeMux
	service.Handle("/", octreehttp.VerifyAuthTokenHandler(authToken, &api))
	service.HandleFunc("/health", octreehttp.HandleHealthCheck)
	service.HandleFunc("/ready", octreehttp.HandleReadyCheck(readinessCheck))
	service.HandleFunc("/version", octreehttp.HandleVersion(version))
	service.Handle("POST /smoke-test", octreehttp.VerifyAuthTokenHandler(authToken, smoketest.HandleSmokeTest(smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Octree %s", version),
		Client:    &http.Client{Transport: transport},
	})))

	service.Handle(owebsocket.StreamPattern, owebsocket.NewServer(
		octreehttp.VerifyAuthToken(authToken),
		func() owebsocket.Handler {
			var h owebsocket.Handler = &owebsocket.StreamHandler{
				Worlds:            worlds,
				ClientIdleTimeout: conf.ClientIdleTimeout,
			}
			h = owebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = owebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			return h
		},
	))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", octreehttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", octreehttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("max_worlds", conf.MaxWorlds).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting octree server")

	ready.Store(true)

	octreehttp.ListenAndServe(ctx,
		&http.Server{
			Addr: conf.Addr,
			Handler: metrics.HTTPHandler(
				octreehttp.HandleWithCORS(&service),
				octreehttp.MetricsPathFormatter,
			),
		},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func loadAuthToken(conf config) (string, error) {
	token := conf.AuthToken

	if len(conf.AuthTokenFile) != 0 {
		b, err := os.ReadFile(conf.AuthTokenFile)
		if err != nil {
			return "", errors.New("error loading auth token from file").
				WithTag("file_name", conf.AuthTokenFile).
				Wrap(err)
		}
		token = string(b)
	}

	return strings.TrimSpace(token), nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if len(conf.AuthToken) != 0 &&
		len(conf.AuthTokenFile) != 0 {
		return errors.New("have to specify either auth token or auth token file, not both")
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.MaxWorlds < 0 {
		return errors.New("max worlds cannot be negative").
			WithTag("max_worlds", conf.MaxWorlds)
	}

	if conf.MaxRecordsPerNode < 1 {
		return errors.New("max records per node must be at least 1").
			WithTag("max_records_per_node", conf.MaxRecordsPerNode)
	}

	if conf.MaxDepth < 1 {
		return errors.New("max depth must be at least 1").
			WithTag("max_depth", conf.MaxDepth)
	}

	if conf.MaxDepth > conf.MaxAllowedDepth {
		return errors.New("max depth cannot exceed max allowed depth").
			WithTag("max_depth", conf.MaxDepth).
			WithTag("max_allowed_depth", conf.MaxAllowedDepth)
	}

	return nil
}
