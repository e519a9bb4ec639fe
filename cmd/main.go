package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/aukilabs/eihwaz/featureflag"
	eihwazhttp "github.com/aukilabs/eihwaz/http"
	"github.com/aukilabs/eihwaz/scene"
	"github.com/aukilabs/eihwaz/smoketest"
	"github.com/aukilabs/eihwaz/spatial"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The Eihwaz version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "eihwaz_info",
		Help:        "Eihwaz information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	AdminAddr     string        `cli:""        env:"EIHWAZ_ADMIN_ADDR"     help:"Admin listening address."`
	LogLevel      string        `cli:""        env:"EIHWAZ_LOG_LEVEL"      help:"Log level (debug|info|warning|error)."`
	LogIndent     bool          `cli:""        env:"EIHWAZ_LOG_INDENT"     help:"Indent logs."`
	Scene         string        `cli:""        env:"EIHWAZ_SCENE"          help:"Path to a JSON scene file. An empty path generates a grid scene."`
	Tuning        string        `cli:""        env:"EIHWAZ_TUNING"         help:"Path to a YAML index tuning file."`
	SceneSize     int           `cli:",hidden" env:"EIHWAZ_SCENE_SIZE"     help:"Number of objects in the generated scene."`
	SceneSpacing  float64       `cli:",hidden" env:"EIHWAZ_SCENE_SPACING"  help:"Grid spacing of the generated scene."`
	FrameDuration time.Duration `cli:",hidden" env:"EIHWAZ_FRAME_DURATION" help:"The duration of an index frame."`
	QueryCount    int           `cli:",hidden" env:"EIHWAZ_QUERY_COUNT"    help:"Number of queries per smoke test phase."`
	FeatureFlags  []string      `cli:",hidden" env:"EIHWAZ_FEATURE_FLAGS"  help:"Comma separated feature flags"`
	Version       bool          `cli:""        env:"-"                     help:"Show version."`
	Help          bool          `cli:""        env:"-"                     help:"Show help."`
}

func main() {
	conf := config{
		AdminAddr:     ":18190",
		LogLevel:      logs.InfoLevel.String(),
		SceneSize:     1000,
		SceneSpacing:  4,
		FrameDuration: time.Millisecond * 15,
		QueryCount:    100,
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts an Eihwaz spatial index service.").
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

	flags := featureflag.New(conf.FeatureFlags)

	indexConfig := spatial.DefaultConfig()
	if conf.Tuning != "" {
		var err error
		if indexConfig, err = scene.LoadTuning(conf.Tuning); err != nil {
			logs.Fatal(errors.New("loading tuning failed").Wrap(err))
		}
	}

	loadedScene := scene.Generate(conf.SceneSize, (float32)(conf.SceneSpacing))
	if conf.Scene != "" {
		var err error
		if loadedScene, err = scene.Load(conf.Scene); err != nil {
			logs.Fatal(errors.New("loading scene failed").Wrap(err))
		}
	}

	flags.IfNotSet(featureflag.FlagDisableStartupSmokeTest, func() {
		results, err := smoketest.Run(ctx, smoketest.Options{
			Scene:        loadedScene,
			Config:       indexConfig,
			FeatureFlags: flags,
			QueryCount:   conf.QueryCount,
		})
		if err != nil {
			logs.Fatal(errors.New("smoke test failed").Wrap(err))
		}

		log := logs.WithTag("scene", results.SceneName).
			WithTag("duration", results.Duration().String())
		for _, phase := range results.Phases {
			log = log.WithTag(phase.Name+"_duration", phase.Duration.String())
		}
		log.Info("smoke test passed")
	})

	manager := spatial.NewManager(indexConfig)
	var managerMu sync.Mutex

	for _, o := range loadedScene.SpatialObjects() {
		manager.InsertObject(o)
	}

	go func() {
		ticker := time.NewTicker(conf.FrameDuration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				managerMu.Lock()
				manager.Update()
				managerMu.Unlock()
			}
		}
	}()

	managerStats := func() spatial.ManagerStats {
		managerMu.Lock()
		defer managerMu.Unlock()
		return manager.Statistics()
	}

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", eihwazhttp.HandleHealthCheck)
	admin.HandleFunc("/version", eihwazhttp.HandleVersion(version))
	admin.HandleFunc("/ready", eihwazhttp.HandleReadyCheck(func() bool { return true }))
	admin.HandleFunc("/statistics", eihwazhttp.HandleStats(managerStats))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("admin_addr", conf.AdminAddr).
		WithTag("manager_id", manager.UUID()).
		WithTag("objects", len(loadedScene.Objects)).
		Info("starting eihwaz server")

	eihwazhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}
