package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/urfave/cli/v2"

	"alertrelay/config"
	"alertrelay/internal/credential"
	"alertrelay/internal/logger"
)

const defaultConfigName = "alertrelay.yml"

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return defaultConfigName
}

func applyDefaults(cfg *config.Config) {
	c := &cfg.AlertRelay

	if c.Backend.APIHost == "" {
		c.Backend.APIHost = "https://pushy.ioref.app"
	}
	if c.Backend.AppID == "" {
		c.Backend.AppID = "66c20ac875260a035a3af7b2"
	}
	if c.Backend.SDKVersion == 0 {
		c.Backend.SDKVersion = 10117
	}
	if c.Backend.Platform == "" {
		c.Backend.Platform = "android"
	}
	if c.Backend.DeviceSuffix == "" {
		c.Backend.DeviceSuffix = credential.DefaultSuffix
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 10 * time.Second
	}

	if c.Transport.Mode == "" {
		c.Transport.Mode = "mqtt"
	}
	if c.Transport.HostTemplate == "" {
		c.Transport.HostTemplate = "mqtt-{timestamp}.ioref.io"
	}
	if c.Transport.Port == 0 {
		c.Transport.Port = 443
	}
	if c.Transport.QoS == 0 {
		c.Transport.QoS = 1
	}
	if c.Transport.KeepAlive <= 0 {
		c.Transport.KeepAlive = 300 * time.Second
	}
	if c.Transport.ConnectTimeout <= 0 {
		c.Transport.ConnectTimeout = 10 * time.Second
	}
	if c.Transport.MessageBuffer <= 0 {
		c.Transport.MessageBuffer = 64
	}
	if c.Transport.Reconnect.Policy == "" {
		c.Transport.Reconnect.Policy = "constant"
	}
	if c.Transport.Reconnect.Delay <= 0 {
		c.Transport.Reconnect.Delay = 5 * time.Second
	}
	if c.Transport.Reconnect.MaxDelay <= 0 {
		c.Transport.Reconnect.MaxDelay = 5 * time.Minute
	}
	if c.Transport.Redis.Addr == "" {
		c.Transport.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Transport.Redis.Key == "" {
		c.Transport.Redis.Key = "alertrelay:inbound"
	}
	if c.Transport.Redis.BlockTimeout <= 0 {
		c.Transport.Redis.BlockTimeout = 5 * time.Second
	}

	if c.Subscription.UnsubscribeAllOnBootstrap == nil {
		v := true
		c.Subscription.UnsubscribeAllOnBootstrap = &v
	}

	if c.Alerts.MaxAge <= 0 {
		c.Alerts.MaxAge = 45 * time.Second
	}
	if c.Alerts.SourceTimezone == "" {
		c.Alerts.SourceTimezone = "Asia/Jerusalem"
	}
	if c.Alerts.DedupSize <= 0 {
		c.Alerts.DedupSize = 2000
	}

	if c.Aggregate.Expiry <= 0 {
		c.Aggregate.Expiry = 600 * time.Second
	}
	if c.Aggregate.SweepInterval <= 0 {
		c.Aggregate.SweepInterval = 30 * time.Second
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "alertrelay:state"
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = filepath.Join(c.Storage.Dir, "alertrelay.db")
	}

	if len(c.Output.Modes) == 0 {
		c.Output.Modes = []string{"log"}
	}
	if c.Output.WriteTimeout <= 0 {
		c.Output.WriteTimeout = 10 * time.Second
	}
	if c.Output.MQTT.Port == 0 {
		c.Output.MQTT.Port = 1883
	}
	if c.Output.MQTT.ConnectTimeout <= 0 {
		c.Output.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.Output.HTTP.Timeout <= 0 {
		c.Output.HTTP.Timeout = 5 * time.Second
	}
	if c.Output.File.Path == "" {
		c.Output.File.Path = "output/snapshots.jsonl"
	}
	if c.Output.Redis.Addr == "" {
		c.Output.Redis.Addr = "127.0.0.1:6379"
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9108"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

func loadConfig(c *cli.Context) (*config.Config, string, error) {
	configPath := findConfigFile(c.String("config"))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	applyDefaults(cfg)

	lc := cfg.AlertRelay.Logging
	if c.Bool("debug") {
		lc.Level = "debug"
	}
	if err := logger.Init(lc.Enabled, lc.Level, lc.File, lc.Console, lc.Format); err != nil {
		return nil, "", fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, configPath, nil
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to " + defaultConfigName,
	}
	debugFlag := &cli.BoolFlag{
		Name:  "debug",
		Usage: "force debug logging",
	}

	return &cli.App{
		Name:   "alertrelay",
		Usage:  "relay emergency alerts from the push backend to home automation",
		Flags:  []cli.Flag{configFlag, debugFlag},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "connect and relay alerts (default)",
				Flags:  []cli.Flag{configFlag, debugFlag},
				Action: runAction,
			},
			{
				Name:   "reset",
				Usage:  "delete the persisted device identity, credential and subscriptions",
				Flags:  []cli.Flag{configFlag, debugFlag},
				Action: resetAction,
			},
			{
				Name:   "status",
				Usage:  "print the persisted device identity, credential and subscriptions",
				Flags:  []cli.Flag{configFlag, debugFlag},
				Action: statusAction,
			},
		},
	}
}

func runAction(c *cli.Context) error {
	cfg, configPath, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer logger.Close()

	logger.Infof("alertrelay starting")
	logger.Infof("Config loaded from: %s", configPath)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, credential.ErrRegistration) {
			logger.Errorf("Fatal: %v", err)
		} else {
			logger.Errorf("Relay failed: %v", err)
		}
		return cli.Exit(err.Error(), 1)
	}
	logger.Infof("alertrelay stopped")
	return nil
}

func main() {
	if err := newApp().RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
