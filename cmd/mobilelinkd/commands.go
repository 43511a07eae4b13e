package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kmansel/mobilelink/internal/config"
	"github.com/kmansel/mobilelink/internal/coordinator"
	"github.com/kmansel/mobilelink/internal/diagnostics"
	"github.com/kmansel/mobilelink/internal/hass"
	"github.com/kmansel/mobilelink/internal/logging"
	"github.com/kmansel/mobilelink/internal/mobilelink"
	"github.com/kmansel/mobilelink/internal/server"
)

var (
	configPath string
	logLevel   string

	discoverEmail        string
	discoverPasswordFile string
	discoverCookieFile   string
	discoverBaseURL      string
	discoverJSON         bool
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "path to config file")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	discoverCmd.Flags().StringVar(&discoverEmail, "email", "", "Mobile Link account email")
	discoverCmd.Flags().StringVar(&discoverPasswordFile, "password-file", "", "file holding the account password")
	discoverCmd.Flags().StringVar(&discoverCookieFile, "cookie-file", "", "file holding a pasted Cookie header (skips the login handshake)")
	discoverCmd.Flags().StringVar(&discoverBaseURL, "base-url", "", "override the dashboard base URL")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "print tanks as JSON")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poller",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log, err := logging.New(logLevel)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		return serve(cfg, log)
	},
}

func serve(cfg *config.Config, log *zap.Logger) error {
	var hassPublisher *hass.Publisher
	if cfg.MQTT != nil {
		mqttCfg := hass.MQTTConfig{
			Host:     cfg.MQTT.Host,
			Port:     cfg.MQTT.Port,
			TLS:      cfg.MQTT.TLS,
			Username: cfg.MQTT.Username,
		}
		if cfg.MQTT.PasswordFile != "" {
			password, err := config.ReadSecretFile(cfg.MQTT.PasswordFile)
			if err != nil {
				return fmt.Errorf("mqtt password: %w", err)
			}
			mqttCfg.Password = password
		}
		conn, err := hass.Dial(mqttCfg)
		if err != nil {
			return fmt.Errorf("connect mqtt: %w", err)
		}
		hassPublisher = hass.NewPublisher(conn, cfg.MQTT.DiscoveryPrefix, cfg.MQTT.StatePrefix, log.Named("hass"))
	}

	var blobStore diagnostics.BlobStore
	if cfg.Diagnostics != nil {
		store, err := diagnostics.NewS3Store(diagnostics.S3Config{
			Endpoint:      cfg.Diagnostics.BlobEndpoint,
			Bucket:        cfg.Diagnostics.BlobBucket,
			Region:        cfg.Diagnostics.BlobRegion,
			AccessKeyFile: cfg.Diagnostics.BlobAccessKeyFile,
			SecretKeyFile: cfg.Diagnostics.BlobSecretKeyFile,
		})
		if err != nil {
			return fmt.Errorf("diagnostics store: %w", err)
		}
		blobStore = store
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mobilelink_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))

	coordinators := make([]*coordinator.Coordinator, 0, len(cfg.Accounts))
	sources := make([]diagnostics.Source, 0, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		client, err := mobilelink.NewClient(mobilelink.Config{BaseURL: cfg.BaseURL})
		if err != nil {
			return fmt.Errorf("account %s: %w", account.Email, err)
		}

		creds, err := resolveCredentials(account)
		if err != nil {
			return fmt.Errorf("account %s: %w", account.Email, err)
		}

		var publishers []coordinator.Publisher
		if hassPublisher != nil {
			publishers = append(publishers, hassPublisher)
		}

		c := coordinator.New(
			account.Email,
			client,
			creds,
			account.SelectedTanks,
			time.Duration(account.IntervalSeconds)*time.Second,
			log,
			publishers...,
		)
		if blobStore != nil {
			c.AddPublisher(diagnostics.NewArchiver(blobStore, cfg.Diagnostics.BlobPrefix, c))
		}

		registry.MustRegister(coordinator.NewMetricsCollector(c))
		coordinators = append(coordinators, c)
		sources = append(sources, c)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, c := range coordinators {
		go c.Run(ctx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HealthHandler)
	mux.Handle("/metrics", server.MetricsHandler(registry))
	mux.Handle("/diagnostics", diagnostics.Handler(sources...))

	httpServer := server.NewHTTPServer(cfg.HTTPAddr, mux)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Server.Shutdown(shutdownCtx)
}

func resolveCredentials(account config.AccountConfig) (coordinator.Credentials, error) {
	if account.CookieFile != "" {
		cookie, err := config.ReadSecretFile(account.CookieFile)
		if err != nil {
			return coordinator.Credentials{}, fmt.Errorf("cookie file: %w", err)
		}
		return coordinator.Credentials{CookieHeader: cookie}, nil
	}

	password, err := config.ReadSecretFile(account.PasswordFile)
	if err != nil {
		return coordinator.Credentials{}, fmt.Errorf("password file: %w", err)
	}
	return coordinator.Credentials{Email: account.Email, Password: password}, nil
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Log in once and list the account's propane tanks",
	RunE: func(_ *cobra.Command, _ []string) error {
		if discoverEmail == "" && discoverCookieFile == "" {
			return fmt.Errorf("--email or --cookie-file is required")
		}
		if discoverPasswordFile == "" && discoverCookieFile == "" {
			return fmt.Errorf("--password-file or --cookie-file is required")
		}

		client, err := mobilelink.NewClient(mobilelink.Config{BaseURL: discoverBaseURL})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if discoverCookieFile != "" {
			cookie, err := config.ReadSecretFile(discoverCookieFile)
			if err != nil {
				return err
			}
			if err := client.LoginWithCookie(ctx, cookie); err != nil {
				return err
			}
		} else {
			password, err := config.ReadSecretFile(discoverPasswordFile)
			if err != nil {
				return err
			}
			if err := client.Login(ctx, discoverEmail, password); err != nil {
				return err
			}
		}

		tanks, err := client.DiscoverTanks(ctx)
		if err != nil {
			return err
		}

		if discoverJSON {
			return json.NewEncoder(os.Stdout).Encode(tanks)
		}

		ids := make([]int64, 0, len(tanks))
		for id := range tanks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			tank := tanks[id]
			fuel := "n/a"
			if tank.FuelLevelPercent != nil {
				fuel = fmt.Sprintf("%.1f%%", *tank.FuelLevelPercent)
			}
			connected := "unknown"
			if tank.IsConnected != nil {
				connected = fmt.Sprintf("%t", *tank.IsConnected)
			}
			fmt.Printf("%d\t%s\tfuel=%s\tconnected=%s\tlast_reading=%s\n",
				tank.ApparatusID, tank.Name, fuel, connected, tank.LastReading)
		}
		return nil
	},
}
