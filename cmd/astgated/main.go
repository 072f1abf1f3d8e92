package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"example.com/astgate/internal/asterix"
	"example.com/astgate/internal/common"
	"example.com/astgate/internal/ingest"
	"example.com/astgate/internal/render"
	"example.com/astgate/internal/schema"
	"example.com/astgate/internal/store"
)

type listenConfig struct {
	Addr           string `yaml:"addr"`
	MulticastGroup string `yaml:"multicastGroup"`
	Interface      string `yaml:"interface"`
}

type outputConfig struct {
	Path string `yaml:"path"`
	Mode string `yaml:"mode"`
}

type natsConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type logConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type config struct {
	Listen        listenConfig `yaml:"listen"`
	SchemaDir     string       `yaml:"schemaDir"`
	Output        outputConfig `yaml:"output"`
	StorePath     string       `yaml:"storePath"`
	NATS          natsConfig   `yaml:"nats"`
	StatsInterval int          `yaml:"statsIntervalSeconds"`
	Logs          logConfig    `yaml:"logs"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		candidate := filepath.Clean(filepath.Join(baseDir, p))
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		return filepath.Clean(p)
	}
	if cfg.Listen.Addr == "" && cfg.Listen.MulticastGroup == "" {
		cfg.Listen.Addr = ":8600"
	}
	cfg.SchemaDir = resolvePath(cfg.SchemaDir)
	if cfg.SchemaDir == "" {
		return cfg, errors.New("no schema directory configured")
	}
	if cfg.Output.Mode == "" {
		cfg.Output.Mode = "json"
	}
	cfg.Output.Path = resolvePath(cfg.Output.Path)
	cfg.StorePath = resolvePath(cfg.StorePath)
	if cfg.NATS.URL != "" && cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "asterix.records"
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = 60
	}
	if cfg.Logs.Directory == "" {
		cfg.Logs.Directory = filepath.Join(".", "logs")
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	return cfg, nil
}

func setupLogging(cfg config) error {
	if err := os.MkdirAll(cfg.Logs.Directory, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile := filepath.Join(cfg.Logs.Directory, "astgated.log")
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    cfg.Logs.MaxSizeMB,
		MaxAge:     cfg.Logs.MaxAgeDays,
		MaxBackups: cfg.Logs.MaxBackups,
		Compress:   cfg.Logs.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	addr := flag.String("addr", "", "UDP listen address (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := setupLogging(cfg); err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	if *addr != "" {
		cfg.Listen.Addr = *addr
		cfg.Listen.MulticastGroup = ""
	}

	mode, err := render.ParseMode(cfg.Output.Mode)
	if err != nil {
		log.Fatalf("output mode: %v", err)
	}
	if mode == render.ModeLine || mode == render.ModeText {
		log.Fatalf("output mode %q: the daemon emits NDJSON, use json, json-human or json-verbose", cfg.Output.Mode)
	}

	reg, loadErrs, err := schema.LoadDir(cfg.SchemaDir)
	if err != nil {
		log.Fatalf("load schemas: %v", err)
	}
	for _, le := range loadErrs {
		common.Logf("schema: %v", le)
	}
	if len(reg.Categories()) == 0 {
		log.Fatalf("no usable category definitions in %s", cfg.SchemaDir)
	}
	common.Logf("loaded %d category definitions from %s", len(reg.Categories()), cfg.SchemaDir)

	var out io.Writer = os.Stdout
	if cfg.Output.Path != "" {
		f, err := os.OpenFile(cfg.Output.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open output: %v", err)
		}
		defer f.Close()
		out = f
	}
	ndjson := render.NewNDJSONWriter(out)

	var db *store.DB
	if cfg.StorePath != "" {
		db, err = store.Open(cfg.StorePath)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		defer db.Close()
	}

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name("astgated"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second))
		if err != nil {
			log.Fatalf("nats connect: %v", err)
		}
		defer nc.Drain()
		common.Logf("publishing records to %s on %s", cfg.NATS.Subject, cfg.NATS.URL)
	}

	source, err := ingest.ListenUDP(cfg.Listen.Addr, cfg.Listen.MulticastGroup, cfg.Listen.Interface)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer source.Close()
	common.Logf("astgated listening on %s", source.LocalAddr())

	metrics := common.NewMetrics()
	metrics.Start()
	decoder := asterix.NewDecoder(reg)
	decoder.SetMetrics(metrics)
	renderer := render.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		cancel()
	}()

	captures := make(chan ingest.Capture, 64)
	runErr := make(chan error, 1)
	go func() {
		runErr <- source.Run(ctx, captures)
	}()

	statsTicker := time.NewTicker(time.Duration(cfg.StatsInterval) * time.Second)
	defer statsTicker.Stop()

loop:
	for {
		select {
		case capture, ok := <-captures:
			if !ok {
				break loop
			}
			handleCapture(capture, decoder, renderer, mode, ndjson, db, nc, cfg.NATS.Subject)
		case <-statsTicker.C:
			common.Logf("%s", metrics.Snapshot().Summary())
		case <-ctx.Done():
			break loop
		}
	}

	if err := <-runErr; err != nil {
		log.Printf("udp source: %v", err)
	}
	metrics.Stop()
	common.Logf("astgated stopped: %s", metrics.Snapshot().Summary())
}

func handleCapture(capture ingest.Capture, decoder *asterix.Decoder, renderer *render.Renderer,
	mode render.Mode, ndjson *render.NDJSONWriter, db *store.DB, nc *nats.Conn, subject string) {
	msg := decoder.Decode(capture.Data, capture.Timestamp)
	for _, blk := range msg.Blocks {
		if blk.Status == asterix.StatusSkipped {
			continue
		}
		for _, rec := range blk.Records {
			obj := renderer.RecordObject(rec, mode)
			if err := ndjson.WriteObject(obj); err != nil {
				common.Logf("write record: %v", err)
			}
			if db == nil && nc == nil {
				continue
			}
			payload, err := json.Marshal(obj)
			if err != nil {
				common.Logf("marshal record: %v", err)
				continue
			}
			if db != nil {
				if _, err := db.Insert(rec, string(payload)); err != nil {
					common.Logf("store record: %v", err)
				}
			}
			if nc != nil {
				if err := nc.Publish(subject, payload); err != nil {
					common.Logf("publish record: %v", err)
				}
			}
		}
	}
}
