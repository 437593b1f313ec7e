package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"pricescout-backend/lib/runstore"
)

const starterConfig = `{
	server: {
		port: 8200,
	},
	costco: {
		// "browser" drives headless chromium, "searchapi" hits the
		// json search endpoint directly
		source: "browser",
		max_pages: 2,
	},
	amazon: {
		client_id: "",
		client_secret: "",
		refresh_token: "",
		access_key_id: "",
		secret_access_key: "",
		region: "us-west-2",
		marketplace_id: "A1VC38T7YXB528",
		endpoint: "sellingpartnerapi-fe.amazon.com",
	},
	matcher: {
		threshold: 0.75,
	},
	compare: {
		timeout_seconds: 30,
		max_in_flight: 5,
		min_percentage: 20,
	},
	database: "pricescout.db",
}
`

const starterTelemetry = `{
	otlp: {
		traces: {
			http_endpoint: "http://localhost:4318/v1/traces",
		},
		metrics: {
			http_endpoint: "http://localhost:4318/v1/metrics",
		},
	},
}
`

func writeIfMissing(path, contents string) error {
	_, err := os.Stat(path)
	if !os.IsNotExist(err) {
		slog.Info("already exists, leaving untouched", "path", path)
		return err
	}
	return os.WriteFile(path, []byte(contents), 0666)
}

func create(recreate bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.Remove("cmd/pricescoutd/pricescout.db")
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	err = writeIfMissing("cmd/pricescoutd/config.json5", starterConfig)
	if err != nil {
		return err
	}
	err = writeIfMissing("telemetry.json5", starterTelemetry)
	if err != nil {
		return err
	}

	store, err := runstore.Open("cmd/pricescoutd/pricescout.db")
	if err != nil {
		return err
	}
	defer store.Close()

	slog.Info("fill in the amazon credentials in cmd/pricescoutd/config.json5 (or a config.local.json5 next to it) before starting the daemon")
	return nil
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	flag.Parse()

	err := create(*recreate)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created sucessfully!")
}
