package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"alertrelay/config"
	"alertrelay/internal/aggregate"
	"alertrelay/internal/alerts"
	"alertrelay/internal/backend"
	"alertrelay/internal/credential"
	"alertrelay/internal/httpapi"
	inputmqtt "alertrelay/internal/input/mqtt"
	inputredis "alertrelay/internal/input/redis"
	"alertrelay/internal/logger"
	"alertrelay/internal/metrics"
	"alertrelay/internal/output/mqttpub"
	"alertrelay/internal/output/redispub"
	"alertrelay/internal/output/snapshothttp"
	"alertrelay/internal/output/snapshotjson"
	"alertrelay/internal/output/snapshotlog"
	"alertrelay/internal/pipeline"
	"alertrelay/internal/rules"
	"alertrelay/internal/storage"
	storageredis "alertrelay/internal/storage/redis"
	"alertrelay/internal/storage/sqlite"
	"alertrelay/internal/subscription"
	"alertrelay/pkg/models"
)

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	var (
		st  storage.Store
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		st, err = storage.NewFileStore(cfg.Dir)
	case "redis":
		st, err = storageredis.NewStore(storageredis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "sqlite":
		st, err = sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLite.Path})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func buildClassifier(cfg config.AlertsConfig) (rules.Classifier, error) {
	titles := rules.NewTitleClassifier(cfg.ActiveTitles)
	if !cfg.Rules.Enabled {
		return titles, nil
	}
	if strings.TrimSpace(cfg.Rules.Path) == "" {
		logger.Warnf("Rules enabled but rules.path is empty; using title classification")
		return titles, nil
	}
	sigmaClassifier, stats, err := rules.NewSigmaClassifier(cfg.Rules.Path, titles)
	if err != nil {
		return nil, fmt.Errorf("load sigma rules from %s: %w", cfg.Rules.Path, err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedDatasource,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; title classification only")
	}
	return sigmaClassifier, nil
}

func buildWriters(cfg config.OutputConfig) ([]pipeline.NamedWriter, error) {
	var writers []pipeline.NamedWriter
	closeAll := func() {
		for _, w := range writers {
			w.Writer.Close()
		}
	}

	for _, mode := range cfg.Modes {
		mode = strings.ToLower(strings.TrimSpace(mode))
		var (
			w   pipeline.SnapshotWriter
			err error
		)
		switch mode {
		case "mqtt":
			w, err = mqttpub.NewWriter(mqttpub.Config{
				Host:           cfg.MQTT.Host,
				Port:           cfg.MQTT.Port,
				Username:       cfg.MQTT.Username,
				Password:       cfg.MQTT.Password,
				ClientID:       cfg.MQTT.ClientID,
				Layout:         cfg.MQTT.Layout,
				StateTopic:     cfg.MQTT.StateTopic,
				AttrTopic:      cfg.MQTT.AttrTopic,
				TopicPrefix:    cfg.MQTT.TopicPrefix,
				QoS:            byte(cfg.MQTT.QoS),
				Retained:       cfg.MQTT.Retained,
				ConnectTimeout: cfg.MQTT.ConnectTimeout,
			})
		case "http":
			w, err = snapshothttp.NewWriter(snapshothttp.Config{
				URL:     cfg.HTTP.URL,
				Timeout: cfg.HTTP.Timeout,
				Headers: cfg.HTTP.Headers,
			})
		case "file":
			w, err = snapshotjson.NewWriter(cfg.File.Path)
		case "redis":
			w, err = redispub.NewWriter(redispub.Config{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Key:      cfg.Redis.Key,
				Channel:  cfg.Redis.Channel,
			})
		case "log":
			w = snapshotlog.NewWriter()
		default:
			err = fmt.Errorf("unknown output mode %q", mode)
		}
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("output %s: %w", mode, err)
		}
		logger.Infof("Snapshot output enabled: %s", mode)
		writers = append(writers, pipeline.NamedWriter{Name: mode, Writer: w})
	}
	return writers, nil
}

// pushSource prepares the device and returns the push session.
func pushSource(ctx context.Context, cfg *config.AlertRelayConfig, st storage.Store, m *metrics.Metrics) (*inputmqtt.Session, error) {
	client, err := backend.NewClient(backend.Config{
		APIHost:    cfg.Backend.APIHost,
		AppID:      cfg.Backend.AppID,
		SDKVersion: cfg.Backend.SDKVersion,
		Platform:   cfg.Backend.Platform,
		UserAgent:  cfg.Backend.UserAgent,
		Timeout:    cfg.Backend.Timeout,
	})
	if err != nil {
		return nil, err
	}

	creds := credential.New(st, client, cfg.Backend.DeviceSuffix)
	identity, err := creds.EnsureIdentity(ctx)
	if err != nil {
		return nil, err
	}
	cred, err := creds.EnsureCredential(ctx, identity)
	if err != nil {
		return nil, err
	}
	logger.Infof("Device %s ready", identity.AndroidID)

	reconciler := subscription.NewReconciler(st, client, *cfg.Subscription.UnsubscribeAllOnBootstrap)
	topics, err := reconciler.Reconcile(ctx, models.NewTopicSet(cfg.Alerts.Regions...), cred)
	if err != nil {
		logger.Warnf("Subscription reconciliation incomplete, retrying on next start: %v", err)
	}
	logger.Infof("Subscribed topics: %v", topics.Topics)

	inputmqtt.RouteClientLogs(cfg.Logging.MQTTDebug)

	var connects int
	listener := func(from, to inputmqtt.State) {
		logger.Debugf("Session %s -> %s", from, to)
		m.SetSessionState(to.String(), sessionStates)
		if to == inputmqtt.StateConnecting {
			connects++
			if connects > 1 {
				m.Reconnects.Inc()
			}
		}
	}

	t := cfg.Transport
	return inputmqtt.NewSession(inputmqtt.Config{
		HostTemplate:   t.HostTemplate,
		Port:           t.Port,
		Credential:     cred,
		QoS:            byte(t.QoS),
		KeepAlive:      t.KeepAlive,
		ConnectTimeout: t.ConnectTimeout,
		RotateInterval: t.RotateInterval,
		TLS: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: t.InsecureSkipVerify,
		},
		MessageBuffer: t.MessageBuffer,
	},
		inputmqtt.NewBackOff(t.Reconnect.Policy, t.Reconnect.Delay, t.Reconnect.MaxDelay),
		inputmqtt.WithStateListener(listener),
	), nil
}

var sessionStates = []string{
	inputmqtt.StateDisconnected.String(),
	inputmqtt.StateConnecting.String(),
	inputmqtt.StateConnected.String(),
	inputmqtt.StateStopping.String(),
	inputmqtt.StateStopped.String(),
}

func run(ctx context.Context, cfg *config.Config) error {
	c := &cfg.AlertRelay

	loc, err := time.LoadLocation(c.Alerts.SourceTimezone)
	if err != nil {
		return fmt.Errorf("load source timezone %q: %w", c.Alerts.SourceTimezone, err)
	}
	if len(c.Alerts.Regions) == 0 {
		logger.Warnf("No regions configured; every alert will be dropped")
	}

	st, err := openStore(ctx, c.Storage)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", c.Storage.Backend, err)
	}
	defer st.Close()

	m := metrics.New()

	var source pipeline.MessageSource
	var sessionState func() string
	switch strings.ToLower(c.Transport.Mode) {
	case "mqtt":
		session, err := pushSource(ctx, c, st, m)
		if err != nil {
			return err
		}
		source = session
		sessionState = func() string { return session.State().String() }
	case "redis":
		consumer, err := inputredis.NewConsumer(inputredis.Config{
			Addr:         c.Transport.Redis.Addr,
			Password:     c.Transport.Redis.Password,
			DB:           c.Transport.Redis.DB,
			Key:          c.Transport.Redis.Key,
			BlockTimeout: c.Transport.Redis.BlockTimeout,
		})
		if err != nil {
			return fmt.Errorf("create redis consumer: %w", err)
		}
		defer consumer.Close()
		source = consumer
	default:
		return fmt.Errorf("unknown transport mode %q", c.Transport.Mode)
	}

	classifier, err := buildClassifier(c.Alerts)
	if err != nil {
		return err
	}
	processor := alerts.NewProcessor(alerts.Config{
		Regions:     c.Alerts.Regions,
		RegionNames: c.Alerts.RegionNames,
		MaxAge:      c.Alerts.MaxAge,
		Location:    loc,
		DedupSize:   c.Alerts.DedupSize,
		LogRaw:      c.Alerts.LogRaw,
	}, classifier)

	store := aggregate.NewStore(c.Aggregate.Expiry, c.Alerts.Regions)
	sweeper := aggregate.NewSweeper(store, c.Aggregate.SweepInterval, nil)

	writers, err := buildWriters(c.Output)
	if err != nil {
		return err
	}

	relay := pipeline.NewRelay(source, processor, store, sweeper, writers,
		pipeline.WithMetrics(m),
		pipeline.WithWriteTimeout(c.Output.WriteTimeout),
	)
	defer relay.Close()

	if c.HTTP.Enabled {
		srv := httpapi.New(httpapi.Options{
			State:        store,
			SessionState: sessionState,
			Metrics:      m.Handler(),
		})
		if err := srv.Start(c.HTTP.Addr); err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
		defer func() {
			if err := srv.Stop(5 * time.Second); err != nil {
				logger.Errorf("Status server stopped: %v", err)
			}
		}()
	}

	logger.Infof("Watching %d regions (max_age=%s expiry=%s)", len(c.Alerts.Regions), c.Alerts.MaxAge, c.Aggregate.Expiry)
	return relay.Run(ctx)
}

func resetAction(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer logger.Close()

	st, err := openStore(c.Context, cfg.AlertRelay.Storage)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open storage: %v", err), 1)
	}
	defer st.Close()

	if err := storage.Reset(c.Context, st); err != nil {
		return cli.Exit(fmt.Sprintf("reset: %v", err), 1)
	}
	logger.Infof("Persisted device state cleared (%s)", strings.Join(storage.Keys, ", "))
	return nil
}

type statusReport struct {
	Identity      *models.DeviceIdentity `json:"identity"`
	Token         string                 `json:"token,omitempty"`
	Registered    bool                   `json:"registered"`
	Subscriptions []string               `json:"subscriptions"`
}

func loadStatus(ctx context.Context, st storage.Store) (statusReport, error) {
	report := statusReport{Subscriptions: []string{}}

	var id models.DeviceIdentity
	if err := st.Load(ctx, storage.KeyIdentity, &id); err == nil {
		report.Identity = &id
	} else if !errors.Is(err, storage.ErrNotFound) {
		return report, err
	}

	var cred models.Credential
	if err := st.Load(ctx, storage.KeyCredential, &cred); err == nil {
		report.Registered = cred.Valid()
		report.Token = cred.Token
	} else if !errors.Is(err, storage.ErrNotFound) {
		return report, err
	}

	var topics models.TopicSet
	if err := st.Load(ctx, storage.KeySubscriptions, &topics); err == nil {
		if set := models.NewTopicSet(topics.Topics...); set.Len() > 0 {
			report.Subscriptions = set.Topics
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return report, err
	}
	return report, nil
}

func statusAction(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	st, err := openStore(c.Context, cfg.AlertRelay.Storage)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open storage: %v", err), 1)
	}
	defer st.Close()

	report, err := loadStatus(c.Context, st)
	if err != nil {
		return cli.Exit(fmt.Sprintf("status: %v", err), 1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
