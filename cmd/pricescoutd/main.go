package main

import (
	"flag"
	"log/slog"
	"net/http"
	"time"

	"pricescout-backend/lib/configutil"
	"pricescout-backend/lib/runstore"
	"pricescout-backend/lib/serviceutil"
	"pricescout-backend/services/amazon"
	"pricescout-backend/services/compare"
	"pricescout-backend/services/costco"
	"pricescout-backend/services/matcher"
)

func newCatalogSource(cfg CostcoConfig) costco.CatalogSource {
	if cfg.Source == "searchapi" {
		return costco.NewSearchApiSource(costco.SearchApiOptions{
			Endpoint: cfg.SearchUrl,
			MaxPages: cfg.MaxPages,
		})
	}
	return costco.NewBrowserSource(costco.BrowserOptions{
		SearchUrl: cfg.SearchUrl,
		Bin:       cfg.Bin,
		MaxPages:  cfg.MaxPages,
	})
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	err = cfg.Amazon.Validate()
	if err != nil {
		serviceutil.Fatal("validate amazon credentials", err)
	}

	var store *runstore.Store
	if cfg.Database != "" {
		opened, err := runstore.Open(cfg.Database)
		if err != nil {
			serviceutil.Fatal("open run store", err)
		}
		defer opened.Close()
		store = &opened
	}

	marketplace := amazon.NewClient(
		cfg.Amazon,
		amazon.NewTokenCache(cfg.Amazon),
		amazon.ClientOptions{},
	)
	service := compare.NewService(
		newCatalogSource(cfg.Costco),
		marketplace,
		matcher.New(matcher.Options{Threshold: cfg.Matcher.Threshold}),
		store,
		compare.Options{
			Timeout:       time.Duration(cfg.Compare.TimeoutSeconds) * time.Second,
			MaxInFlight:   cfg.Compare.MaxInFlight,
			MinPercentage: cfg.Compare.MinPercentage,
		},
	)

	mux := http.NewServeMux()
	mux.Handle("/", NewServer(service))

	port := cfg.Server.Port
	if port <= 0 {
		port = 8200
	}
	slog.Info("listening", "port", port)
	go serviceutil.StartHttpServer(port, mux)
	<-ctx.Done()
}
