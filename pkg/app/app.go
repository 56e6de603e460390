package app

import (
	"expvar"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/osutil"
)

// App is the long lived component hosted by the process.
type App interface {
	// Init starts the application. Background work should be running by the
	// time it returns.
	Init(config Config, metricsProvider *newrelic.Application) error

	// ShutdownChan is closed when the application stops on its own.
	ShutdownChan() <-chan struct{}

	// Stop releases resources. It may be called more than once.
	Stop()
}

var (
	configPath = flag.String("config", "config.yaml", "path to the yaml config file")

	osSigCh = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

// Run loads the base config, sets up logging and metrics, initializes app and
// blocks until the process is asked to stop.
func Run(app App, options ...Option) error {
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if config.AppName == "" {
		return errors.New("app_name must be set")
	}

	metricsProvider, err := newMetricsProvider(config)
	if err != nil {
		return err
	}
	configureLogger(config, metricsProvider)

	logger := logrus.StandardLogger().WithFields(logrus.Fields{
		"type": "app",
		"app":  config.AppName,
	})

	var o opts
	for _, option := range options {
		option(&o)
	}

	// pprof and expvar register on the default mux, which must stay private.
	http.DefaultServeMux = http.NewServeMux()
	go serveDebug(logger, config, o)

	var ballast []byte
	if config.EnableBallast {
		ballast = make([]byte, ballastSize(config.BallastCapacity, osutil.GetTotalMemory()))
	}

	restartCh, stopCron, err := scheduleRestart(config)
	if err != nil {
		return err
	}
	defer stopCron()

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		return errors.Wrap(err, "failed to initialize application")
	}

	select {
	case sig := <-osSigCh:
		logger.WithField("signal", sig.String()).Info("signal received, shutting down")
	case <-restartCh:
		logger.Info("scheduled restart, shutting down")
	case <-app.ShutdownChan():
		logger.Info("application stopped, shutting down")
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		app.Stop()
	}()

	select {
	case <-stopped:
	case <-time.After(config.ShutdownGracePeriod):
		return errors.Errorf("application did not stop within %v", config.ShutdownGracePeriod)
	}

	if metricsProvider != nil {
		metricsProvider.Shutdown(5 * time.Second)
	}
	runtime.KeepAlive(ballast)
	return nil
}

func newMetricsProvider(config BaseConfig) (*newrelic.Application, error) {
	if config.NewRelicLicenseKey == "" {
		return nil, nil
	}

	nr, err := newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating new relic application")
	}
	return nr, nil
}

func serveDebug(logger *logrus.Entry, config BaseConfig, o opts) {
	if !config.EnableExpvar && !config.EnablePprof && o.gatherer == nil && len(o.debugHandlers) == 0 {
		return
	}

	mux := newDebugMux(config, o)
	for {
		err := http.ListenAndServe(config.DebugListenAddress, mux)
		logger.WithError(err).Warn("debug http server exited, restarting in 5s")
		time.Sleep(5 * time.Second)
	}
}

// scheduleRestart returns a channel that is closed the first time the memory
// leak schedule fires. The channel is nil when the schedule is disabled.
func scheduleRestart(config BaseConfig) (<-chan struct{}, func(), error) {
	if !config.EnableMemoryLeakCron {
		return nil, func() {}, nil
	}

	restartCh := make(chan struct{})
	var once sync.Once

	scheduler := cron.New(cron.WithLocation(time.Local))
	_, err := scheduler.AddFunc(config.MemoryLeakCronSchedule, func() {
		once.Do(func() { close(restartCh) })
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid memory leak cron schedule")
	}

	scheduler.Start()
	return restartCh, func() { scheduler.Stop() }, nil
}

// loadConfig reads the optional config file at path, then applies env
// bindings and defaults.
func loadConfig(path string) (BaseConfig, error) {
	// viper only reports ConfigFileNotFoundError when searching for a default
	// file, so a missing explicit file is detected here.
	if _, err := os.Stat(path); err == nil {
		viper.SetConfigFile(path)
	} else if !os.IsNotExist(err) {
		return BaseConfig{}, errors.Wrap(err, "failed to check if config exists")
	}

	err := viper.ReadInConfig()
	_, isConfigNotFound := err.(viper.ConfigFileNotFoundError)
	if err != nil && !isConfigNotFound {
		return BaseConfig{}, errors.Wrap(err, "failed to read config")
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return config, nil
}

func newDebugMux(config BaseConfig, opts opts) *http.ServeMux {
	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	if opts.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.gatherer, promhttp.HandlerOpts{}))
	}
	for pattern, handler := range opts.debugHandlers {
		mux.Handle(pattern, handler)
	}
	return mux
}

// ballastSize is capped at half of the available memory.
func ballastSize(capacity float32, totalMemory uint64) uint64 {
	if capacity > 0.5 {
		capacity = 0.5
	}
	if capacity < 0 {
		capacity = 0
	}
	return uint64(capacity * float32(totalMemory))
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
