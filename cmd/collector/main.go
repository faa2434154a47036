// Command collector relays EPICS Channel Access broadcast traffic
// (name search, beacon, version) from a local EPICS subnet to one or
// more emitter peers over unicast UDP. See spec.md §6 for the CLI and
// config surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NSLS-II/epics-relay/internal/caproto"
	"github.com/NSLS-II/epics-relay/internal/collector"
	"github.com/NSLS-II/epics-relay/internal/config"
	"github.com/NSLS-II/epics-relay/internal/iface"
	"github.com/NSLS-II/epics-relay/internal/logging"
	flag "github.com/spf13/pflag"
)

type cliConfig struct {
	Debug      bool
	ConfigPath string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "collector:", err)
		os.Exit(1)
	}
}

func run() error {
	cli := parseFlags()
	log := logging.New(cli.Debug)

	cfg, err := config.LoadCollector(cli.ConfigPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	localIface, err := iface.Resolve(cfg.Interface)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	epicsIface, err := iface.Resolve(cfg.EpicsInterface)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	filter, err := caproto.NewFilter(cfg.Regex.Sense, cfg.Regex.Logic, cfg.Regex.Rules)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	c, err := collector.New(collector.Config{
		Logger:     log,
		LocalIface: localIface,
		EpicsIface: epicsIface,
		Filter:     filter,
		Emitters:   cfg.Emitters,
	})
	if err != nil {
		return fmt.Errorf("setup error: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	log.Info("collector shutdown complete")
	return nil
}

func parseFlags() cliConfig {
	var cli cliConfig

	flag.BoolVarP(&cli.Debug, "debug", "d", false, "Enable debug logging")
	flag.StringVarP(&cli.ConfigPath, "config", "c", "/etc/epics-relay/collector.yaml", "Path to collector config file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "collector - relay EPICS CA broadcast traffic to remote emitters\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n  collector [--debug] [--config <path>]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return cli
}
