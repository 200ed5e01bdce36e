package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/flashwatch/internal/app"
	"github.com/buckleypaul/flashwatch/internal/config"
	"github.com/buckleypaul/flashwatch/internal/monitor"
	"github.com/buckleypaul/flashwatch/internal/programmer"
	"github.com/buckleypaul/flashwatch/internal/runner"
	"github.com/buckleypaul/flashwatch/internal/serial"
	"github.com/buckleypaul/flashwatch/internal/store"
	"github.com/buckleypaul/flashwatch/internal/watcher"
)

const usage = `usage: flashwatch [flags] mode exe support_dir runlog pattern success_pattern [family args]

modes:
  upload   program the board
  run      program the board, then watch its console for pattern
  dump     read the AVR eeprom and decode it
  watch    watch the console without programming
  monitor  interactive serial console
  ports    list serial ports
  history  show recorded runs
  config   save the effective configuration to ./.flashwatch/config.json

family args:
  avr  mcu hex_file eeprom_settings [avrdude flags...]
  arm  binary

flags:
`

func main() {
	os.Exit(run())
}

func run() int {
	family := flag.String("family", "", "target family: avr or arm (default from config)")
	configFile := flag.String("config", "", "extra config file, applied over the workspace config")
	baud := flag.Int("baud", 0, "console baud rate")
	timeout := flag.Duration("timeout", 0, "how long to wait for the end-of-run pattern")
	device := flag.String("device", "", "serial device for the console and reset touch")
	noHistory := flag.Bool("no-history", false, "do not record this run")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	cfg := config.Load(cwd, *configFile)
	if *family != "" {
		cfg.Family = *family
	}
	if *baud > 0 {
		cfg.BaudRate = *baud
	}
	if *timeout > 0 {
		cfg.Timeout = config.Duration(*timeout)
		if time.Duration(cfg.ReadTimeout) > *timeout {
			cfg.ReadTimeout = config.Duration(*timeout)
		}
	}
	if *device != "" {
		cfg.SerialDevice = *device
	}
	if *noHistory {
		off := false
		cfg.History = &off
	}

	logger := newLogger(cfg.LogLevel, *verbose)

	fam, err := programmer.ParseFamily(cfg.Family)
	if err != nil {
		logger.WithError(err).Error("invalid family")
		return 1
	}

	args, err := app.ParseArgs(fam, flag.Args())
	if err != nil {
		var usageErr *app.UsageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			flag.Usage()
			return 1
		}
		logger.WithError(err).Error("invalid arguments")
		return 1
	}

	exec := &runner.Exec{
		LogPath: args.RunLog,
		Stdout:  os.Stdout,
		Env:     runner.WithToolPath(cfg.ToolPath),
		Logger:  logger,
	}

	prog, err := programmer.New(fam, programmer.Options{
		Runner:          exec,
		Logger:          logger,
		Port:            cfg.Port,
		Device:          cfg.Device(),
		Avrdude:         cfg.Avrdude,
		Bossac:          cfg.Bossac,
		DumpFile:        cfg.DumpFile,
		Resetter:        serial.NewToucher(cfg.ResetBaudRate),
		BootloaderDelay: time.Duration(cfg.BootloaderDelay),
	})
	if err != nil {
		logger.WithError(err).Error("creating programmer")
		return 1
	}

	var st *store.Store
	if cfg.HistoryEnabled() {
		st = store.New(cfg.HistoryDir)
	}

	a := &app.App{
		Config:     cfg,
		ConfigDir:  cwd,
		Family:     fam,
		Programmer: prog,
		Runner:     exec,
		Verifier:   watcher.New(logger),
		Store:      st,
		Stdout:     os.Stdout,
		Logger:     logger,
		Monitor:    runMonitor,
		ListPorts:  serial.ListPorts,
	}
	return a.Run(args)
}

func runMonitor(device string, baudRate int) error {
	m := serial.NewMonitor()
	if err := m.Connect(device, baudRate); err != nil {
		return err
	}
	defer m.Disconnect()
	return monitor.Run(m)
}

func newLogger(level string, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if verbose {
		lvl = logrus.DebugLevel
	}
	logger.SetLevel(lvl)
	return logger
}
