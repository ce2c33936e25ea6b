package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/indidrv/internal/admin"
	"github.com/danmuck/indidrv/internal/catalog"
	"github.com/danmuck/indidrv/internal/config"
	"github.com/danmuck/indidrv/internal/indi"
	"github.com/danmuck/indidrv/internal/logging"
	"github.com/danmuck/indidrv/internal/logx"
	"github.com/danmuck/indidrv/internal/plugins"
	"github.com/danmuck/indidrv/internal/snoop"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "indi-weatherd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var verbose bool
	flag.StringVar(&configPath, "config", "", "path to the driver's TOML bootstrap config")
	flag.BoolVar(&verbose, "v", false, "echo every inbound element to stderr")
	flag.Parse()

	cfg, err := config.LoadDriverConfig(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Verbose = true
	}

	logging.ConfigureRuntime(cfg.Device)

	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if _, ok := cat.Device(cfg.Device); !ok {
		logx.Warnf("no catalog entry for device %q in %s, starting with empty default properties", cfg.Device, cfg.CatalogDir)
	}

	relay := snoop.NewRelay()
	driver := indi.NewDriver(cfg.Device, os.Stdout, nil)
	driver.Dispatch.Verbose = cfg.Verbose
	if cfg.PingTimeoutMS > 0 {
		driver.Emitter.SetPingTimeout(time.Duration(cfg.PingTimeoutMS) * time.Millisecond)
	}

	numbers := cat.BuildNumberVectors(cfg.Device)
	switches := cat.BuildSwitchVectors(cfg.Device)
	texts := cat.BuildTextVectors(cfg.Device)
	blobs := cat.BuildBlobVectors(cfg.Device)

	params := firstOrNew(numbers, "WEATHER_PARAMETERS")
	conn := firstSwitchOrNew(switches, "CONNECTION")
	port := firstTextOrNew(texts, "DEVICE_PORT")
	sky := firstBlobOrNew(blobs, "SKY_IMAGE")

	station := NewStation(cfg.Device, driver, relay, params, conn, port, sky)
	driver.Dispatch.CB = station

	registerPlugins(cat, relay, driver)

	adminSrv := admin.New(cfg.Device, cfg.CorsOrigins)
	go func() {
		if err := adminSrv.Run(cfg.AdminListenAddr); err != nil {
			log.Error().Err(err).Msg("admin server exited")
		}
	}()

	station.OnGetProperties("")

	logx.Infof("%s: serving on stdio, admin surface on %s", cfg.Device, cfg.AdminListenAddr)
	return driver.Serve(os.Stdin)
}

func registerPlugins(cat *catalog.Catalog, relay *snoop.Relay, driver *indi.Driver) {
	plugins.Register(catalogPlugin{cat: cat})
	plugins.Register(snoopPlugin{relay: relay, device: driver.Me})
}

func firstOrNew(vs []*indi.NumberVector, name string) *indi.NumberVector {
	for _, v := range vs {
		if v.Name == name {
			return v
		}
	}
	return &indi.NumberVector{Name: name, State: indi.StateIdle, Perm: indi.PermReadOnly}
}

func firstSwitchOrNew(vs []*indi.SwitchVector, name string) *indi.SwitchVector {
	for _, v := range vs {
		if v.Name == name {
			return v
		}
	}
	return &indi.SwitchVector{Name: name, State: indi.StateIdle, Perm: indi.PermReadWrite, Rule: indi.RuleOneOfMany}
}

func firstTextOrNew(vs []*indi.TextVector, name string) *indi.TextVector {
	for _, v := range vs {
		if v.Name == name {
			return v
		}
	}
	return &indi.TextVector{Name: name, State: indi.StateIdle, Perm: indi.PermReadWrite}
}

func firstBlobOrNew(vs []*indi.BlobVector, name string) *indi.BlobVector {
	for _, v := range vs {
		if v.Name == name {
			return v
		}
	}
	return &indi.BlobVector{Name: name, State: indi.StateIdle, Perm: indi.PermReadOnly}
}
