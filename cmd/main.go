package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"github.com/tailscale/tailsql/server/tailsql"
	"golang.org/x/net/websocket"

	"github.com/prophet-town/s2geometry/featureflag"
	raidohttp "github.com/prophet-town/s2geometry/http"
	"github.com/prophet-town/s2geometry/regionstore"
	"github.com/prophet-town/s2geometry/smoketest"
	rwebsocket "github.com/prophet-town/s2geometry/websocket"
)

var (
	// The Raido version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "raido_info",
		Help:        "Raido information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr         string   `cli:""        env:"RAIDO_ADDR"          help:"Listening address for client connections."`
	AdminAddr    string   `cli:""        env:"RAIDO_ADMIN_ADDR"    help:"Admin listening address."`
	DBPath       string   `cli:""        env:"RAIDO_DB_PATH"       help:"The path of the region database file."`
	LogLevel     string   `cli:""        env:"RAIDO_LOG_LEVEL"     help:"Log level (debug|info|warning|error)."`
	LogIndent    bool     `cli:""        env:"RAIDO_LOG_INDENT"    help:"Indent logs."`
	FeatureFlags []string `cli:",hidden" env:"RAIDO_FEATURE_FLAGS" help:"Comma separated feature flags"`
	Version      bool     `cli:""        env:"-"                   help:"Show version."`
	Help         bool     `cli:""        env:"-"                   help:"Show help."`
}

func main() {
	conf := config{
		Addr:      ":4000",
		AdminAddr: ":18190",
		DBPath:    "regions.db",
		LogLevel:  logs.InfoLevel.String(),
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the Raido region registry server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	store, err := regionstore.Open(conf.DBPath)
	if err != nil {
		logs.Fatal(errors.New("opening region store failed").
			WithTag("db_path", conf.DBPath).
			Wrap(err))
	}
	defer store.Close()

	flags := featureflag.New(conf.FeatureFlags)

	var service http.ServeMux

	service.Handle("/health", raidohttp.HandleWithCORS(http.HandlerFunc(raidohttp.HandleHealthCheck)))
	service.Handle("/ready", raidohttp.HandleWithCORS(raidohttp.HandleReadyCheck(store.Ping)))
	service.Handle("/version", raidohttp.HandleWithCORS(raidohttp.HandleVersion(version)))

	regionAPI := raidohttp.RegionAPI{Store: store}
	service.Handle("/v0/regions", raidohttp.HandleWithCORS(http.HandlerFunc(regionAPI.HandleRegions)))
	service.Handle("/v0/region", raidohttp.HandleWithCORS(http.HandlerFunc(regionAPI.HandleRegion)))
	service.Handle("/v0/region/contains", raidohttp.HandleWithCORS(http.HandlerFunc(regionAPI.HandleContains)))

	service.Handle("/v0/query/normalize", raidohttp.HandleWithCORS(http.HandlerFunc(raidohttp.HandleNormalize)))
	service.Handle("/v0/query/union", raidohttp.HandleWithCORS(raidohttp.HandleBinaryOp("union")))
	service.Handle("/v0/query/intersection", raidohttp.HandleWithCORS(raidohttp.HandleBinaryOp("intersection")))
	service.Handle("/v0/query/difference", raidohttp.HandleWithCORS(raidohttp.HandleBinaryOp("difference")))
	service.Handle("/v0/query/range", raidohttp.HandleWithCORS(http.HandlerFunc(raidohttp.HandleRange)))
	service.Handle("/v0/query/expand", raidohttp.HandleWithCORS(http.HandlerFunc(raidohttp.HandleExpand)))
	service.Handle("/v0/cell", raidohttp.HandleWithCORS(http.HandlerFunc(raidohttp.HandleCell)))

	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(store))

	flags.IfNotSet(featureflag.FlagDisableRegionWatch, func() {
		service.Handle("/v0/watch", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h rwebsocket.Handler = &rwebsocket.WatchHandler{Store: store}
				h = rwebsocket.HandlerWithLogs(h)
				h = rwebsocket.HandlerWithMetrics(h)
				rwebsocket.Handle(ctx, conn, h)
			},
		})
	})

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", raidohttp.HandleHealthCheck)
	admin.HandleFunc("/ready", raidohttp.HandleReadyCheck(store.Ping))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.HandleFunc("/debug/backup", handleBackup(store))

	flags.IfSet(featureflag.FlagEnableSQLDebug, func() {
		tsql, err := tailsql.NewServer(tailsql.Options{
			RoutePrefix: "/debug/tailsql/",
		})
		if err != nil {
			logs.Fatal(errors.New("creating sql browser failed").Wrap(err))
		}
		tsql.SetDB("sqlite://"+conf.DBPath, store.DB(), &tailsql.DBOptions{
			Label: "Region DB",
		})
		admin.Handle("/debug/tailsql/", tsql.NewMux())
	})

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("addr", conf.Addr).
		WithTag("db_path", conf.DBPath).
		Info("starting raido server")

	raidohttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			raidohttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

// handleBackup snapshots the database with VACUUM INTO and streams the
// snapshot to the caller.
func handleBackup(store *regionstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := store.DB().ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
			logs.Error(errors.New("creating backup failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := os.Remove(backupPath); err != nil {
				logs.Warn(errors.New("removing backup file failed").
					WithTag("path", backupPath).
					Wrap(err))
			}
		}()

		backupFile, err := os.Open(backupPath)
		if err != nil {
			logs.Error(errors.New("opening backup file failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		io.Copy(w, backupFile)
	}
}
