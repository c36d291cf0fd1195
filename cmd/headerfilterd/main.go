package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bhatti/gateway-header-filter/headerfilter"
	"github.com/bhatti/gateway-header-filter/internal/proxy"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	flags := pflag.NewFlagSet("headerfilterd", pflag.ExitOnError)
	flags.String("listen", ":8080", "address to serve the proxy on")
	flags.String("upstream", "http://127.0.0.1:9090", "upstream base URL")
	flags.String("filters", "", "path to the filter chain file (YAML or JSON)")
	flags.String("log-level", "info", "log level")
	flags.Parse(os.Args[1:])

	settings := viper.New()
	settings.SetEnvPrefix("HEADERFILTER")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	if err := settings.BindPFlags(flags); err != nil {
		logrus.WithError(err).Fatal("failed to bind flags")
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(settings.GetString("log-level"))
	if err != nil {
		logger.WithError(err).Fatal("invalid log level")
	}
	logger.SetLevel(level)

	registry := prometheus.NewRegistry()
	metrics, err := headerfilter.NewMetrics(registry)
	if err != nil {
		logger.WithError(err).Fatal("failed to register metrics")
	}

	srv, err := proxy.New(settings.GetString("upstream"), registry, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create proxy")
	}

	reload := func(path string) error {
		request, response, err := loadChains(path, logger, metrics)
		if err != nil {
			return err
		}
		srv.SetChains(request, response)
		return nil
	}

	path := settings.GetString("filters")
	if err := reload(path); err != nil {
		logger.WithError(err).Fatal("failed to load filters")
	}

	if path != "" {
		watcher := viper.New()
		watcher.SetConfigFile(path)
		if err := watcher.ReadInConfig(); err != nil {
			logger.WithError(err).Warn("filter file cannot be watched")
		}
		watcher.OnConfigChange(func(in fsnotify.Event) {
			logger.WithField("file", in.Name).Info("Filter configuration updated")
			if err := reload(path); err != nil {
				logger.WithError(err).Error("failed to reload filters, keeping previous chains")
			}
		})
		watcher.WatchConfig()
	}

	server := &http.Server{
		Addr:              settings.GetString("listen"),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("headerfilterd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	cancelChan := make(chan os.Signal, 1)
	signal.Notify(cancelChan, syscall.SIGTERM, syscall.SIGINT)
	<-cancelChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
}

// loadChains builds both chains from path, or the default chains when path is empty
func loadChains(path string, logger *logrus.Logger, metrics *headerfilter.Metrics) (*headerfilter.Chain, *headerfilter.Chain, error) {
	config := &headerfilter.Config{}
	if path != "" {
		loaded, err := headerfilter.LoadConfigFromFile(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "load filters")
		}
		config = loaded
	}
	if err := headerfilter.ApplyDefaults(config); err != nil {
		return nil, nil, err
	}

	request, response, err := headerfilter.BuildChains(config,
		headerfilter.WithLogger(logger.WithField("component", "headerfilter")),
		headerfilter.WithMetrics(metrics),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build filter chains")
	}
	return request, response, nil
}
