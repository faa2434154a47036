// Command emitter receives framed EPICS Channel Access broadcast
// datagrams from a collector peer and re-synthesizes them as a native
// broadcast on the local EPICS subnet, preserving the original
// source IP. See spec.md §6 for the CLI and config surface; note this
// binary needs CAP_NET_RAW (or equivalent) to forge source addresses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NSLS-II/epics-relay/internal/config"
	"github.com/NSLS-II/epics-relay/internal/emitter"
	"github.com/NSLS-II/epics-relay/internal/iface"
	"github.com/NSLS-II/epics-relay/internal/logging"
	"github.com/NSLS-II/epics-relay/internal/rawsend"
	flag "github.com/spf13/pflag"
)

type cliConfig struct {
	Debug      bool
	ConfigPath string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "emitter:", err)
		os.Exit(1)
	}
}

func run() error {
	cli := parseFlags()
	log := logging.New(cli.Debug)

	cfg, err := config.LoadEmitter(cli.ConfigPath)
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

	sender, err := rawsend.New(log, epicsIface.Name, epicsIface.HWAddr, *cfg.LinkLayer)
	if err != nil {
		return fmt.Errorf("setup error: failed to open packet sender: %w", err)
	}

	e, err := emitter.New(emitter.Config{
		Logger:     log,
		LocalIface: localIface,
		EpicsIface: epicsIface,
		Sender:     sender,
	})
	if err != nil {
		return fmt.Errorf("setup error: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := e.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	log.Info("emitter shutdown complete")
	return nil
}

func parseFlags() cliConfig {
	var cli cliConfig

	flag.BoolVarP(&cli.Debug, "debug", "d", false, "Enable debug logging")
	flag.StringVarP(&cli.ConfigPath, "config", "c", "/etc/epics-relay/emitter.yaml", "Path to emitter config file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "emitter - re-broadcast framed EPICS CA traffic from a collector\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n  emitter [--debug] [--config <path>]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return cli
}
