package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/app/server"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/app/version"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/commands"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/config"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/database"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/directory"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/geolite"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/jobs/poller"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/snapshot"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/support"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn/providers"
)

const (
	verdictStoreFile     = "file"
	verdictStorePostgres = "postgres"

	geoLiteMaxAge        = 7 * 24 * time.Hour
	geoLiteCheckInterval = 24 * time.Hour
	finalFlushTimeout    = 10 * time.Second
)

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	settingsFlag := flag.String("settings", config.DefaultSettingsPath, "Path to the settings file")
	portFlag := flag.Int("port", 0, "Port for the HTTP API (overrides settings)")
	storeFlag := flag.String("verdict-store", verdictStoreFile, "Where VPN verdicts are persisted: file or postgres")
	flag.Parse()

	if err := config.ReadSettings(*settingsFlag); err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	cfg := config.GetConfig()

	logFile, err := configureLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	defer logFile.Close()

	build := version.Get()
	log.Info("Starting Teeworlds bot", "version", build.BuildVersion, "built_at", build.BuiltAt, "go", build.GoVersion)

	creds := config.LoadCredentials()
	if slices.Contains(cfg.VPN.Providers, providers.GetIPIntelName) {
		if err := config.ValidateEmail(creds.Email); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openVerdictBackend(resolveStore(*storeFlag), cfg)
	if err != nil {
		return err
	}

	cache := vpn.NewCache(backend)
	if err := cache.Load(ctx); err != nil {
		return fmt.Errorf("failed to load verdict cache: %w", err)
	}

	if creds.RedisURL != "" {
		client, err := support.GetRedisClient(ctx, creds.RedisURL)
		if err != nil {
			log.Warn("Redis mirror disabled", "error", err)
		} else {
			cache.SetMirror(vpn.NewRedisMirror(client, vpn.DefaultMirrorKey))
			log.Info("Redis verdict mirror enabled")
		}
	}
	defer func() {
		if err := support.CloseRedisClient(); err != nil {
			log.Warn("error closing redis client", "error", err)
		}
	}()

	set, err := providers.Build(cfg.VPN.Providers, providers.Settings{
		Email:            creds.Email,
		IPHubToken:       creds.IPHubToken,
		Threshold:        cfg.VPN.GetIPIntel.Threshold,
		BlocklistSources: cfg.VPN.Blocklist.Sources,
		ASNDatabase:      cfg.VPN.GeoLite.ASNDatabase,
		Timeout:          cfg.RequestTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to build VPN providers: %w", err)
	}
	if set.GeoLite != nil {
		defer set.GeoLite.Close()
	}

	guard := vpn.DefaultGuard()
	if len(cfg.VPN.ReservedRanges) > 0 {
		guard, err = vpn.NewGuard(cfg.VPN.ReservedRanges...)
		if err != nil {
			return fmt.Errorf("invalid reserved ranges: %w", err)
		}
	}

	chain := vpn.NewChain(cache, set.Providers,
		vpn.WithGuard(guard),
		vpn.WithMaxBatch(int(cfg.VPN.MaxBatch)),
		vpn.WithMassCheck(support.GetEnvBool("VPN_ALLOW_MASS_CHECK", cfg.VPN.AllowMassCheck)),
	)
	log.Info("VPN classifier ready", "providers", chain.Providers(), "cached", cache.Len())

	dir, err := directory.NewTeeworlds(directory.Options{
		MasterServers: cfg.Poller.MasterServers,
		Timeout:       cfg.QueryTimeout(),
		Workers:       int(cfg.Poller.QueryWorkers),
	})
	if err != nil {
		return err
	}
	defer dir.Close()

	store := snapshot.NewStore()
	poll := poller.New(dir, store,
		poller.WithRetries(int(cfg.Poller.Retries)),
		poller.WithInterval(cfg.PollInterval()),
	)

	api := server.New(store, chain, commands.NewHandler(store, chain))
	port := resolvePort("PORT", "TWBOT_PORT", cfg.Server.Port)
	if *portFlag != 0 {
		port = *portFlag
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poll.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cache.RunFlusher(gctx, cfg.FlushInterval())
		return nil
	})
	if set.Blocklist != nil {
		g.Go(func() error {
			set.Blocklist.Run(gctx, cfg.BlocklistRefreshInterval())
			return nil
		})
	}
	if set.GeoLite != nil && creds.GeoLiteLicenseKey != "" {
		updater := geolite.NewUpdater(creds.GeoLiteLicenseKey, cfg.VPN.GeoLite.ASNDatabase)
		g.Go(func() error {
			runGeoLiteUpdates(gctx, updater, set.GeoLite)
			return nil
		})
	}
	g.Go(func() error {
		return api.ListenAndServe(gctx, port)
	})

	runErr := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	if _, err := cache.Flush(flushCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("final verdict flush: %w", err))
	}

	log.Info("Shutdown complete", "verdicts", cache.Len())
	return runErr
}

func resolveStore(flagValue string) string {
	if v := strings.TrimSpace(os.Getenv("VERDICT_STORE")); v != "" {
		return strings.ToLower(v)
	}
	return strings.ToLower(flagValue)
}

func openVerdictBackend(kind string, cfg config.Config) (vpn.Backend, error) {
	switch kind {
	case verdictStoreFile, "":
		log.Info("Using verdict file", "path", cfg.VPN.CacheFile)
		return vpn.NewFileBackend(cfg.VPN.CacheFile), nil
	case verdictStorePostgres:
		db, err := database.SetupDB()
		if err != nil {
			return nil, fmt.Errorf("failed to open verdict database: %w", err)
		}
		log.Info("Using verdict database")
		return database.NewVerdictBackend(db), nil
	default:
		return nil, fmt.Errorf("unknown verdict store %q", kind)
	}
}

// runGeoLiteUpdates keeps the ASN database fresh and reloads the provider
// whenever a new copy was written.
func runGeoLiteUpdates(ctx context.Context, updater *geolite.Updater, provider *providers.GeoLiteASN) {
	update := func() {
		replaced, err := updater.Update(ctx, geoLiteMaxAge)
		if err != nil {
			log.Warn("GeoLite update failed", "error", err)
			return
		}
		if !replaced {
			return
		}
		if err := provider.Reload(); err != nil {
			log.Error("GeoLite reload failed", "error", err)
			return
		}
		log.Info("GeoLite ASN database reloaded")
	}

	update()

	ticker := time.NewTicker(geoLiteCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

func resolvePort(primaryEnv, legacyEnv string, fallback int) int {
	if port := readPort(primaryEnv); port != 0 {
		return port
	}
	if port := readPort(legacyEnv); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
