package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"

	"github.com/microruri/micromdns"
)

const usage = `mdnsd broadcasts a host name over multicast DNS, resolving
<name>.local to the machine's current non-loopback addresses.

Usage:
  mdnsd [--interface=<iface>]... (--name=<name> | <name>)
  mdnsd -h | --help

Options:
  -n <name>, --name <name>         Host name, resolves as <name>.local.
  -i <iface>, --interface <iface>  Interface name, repeatable. Default is '*' (all).
  -h, --help                       Show this help.`

func main() {
	// Help exits 0 and usage errors exit 1 inside ParseArgs; the
	// ambiguous both-forms name case fails the usage pattern there too.
	opts, err := docopt.ParseArgs(usage, os.Args[1:], "")
	if err != nil {
		log.Fatalf("[ERR] mdnsd: invalid arguments: %v", err)
	}

	name, _ := opts["--name"].(string)
	if name == "" {
		name, _ = opts["<name>"].(string)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		log.Fatalf("[ERR] mdnsd: name cannot be empty")
	}

	var ifaceArgs []string
	if values, ok := opts["--interface"].([]string); ok {
		ifaceArgs = values
	}
	filter := micromdns.ParseFilter(ifaceArgs)

	log.Printf("[mdnsd] config loaded: name=%s interfaces=%s", name, filter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Printf("[mdnsd] received signal %v, shutting down", sig)
		cancel()
	}()

	rec := micromdns.NewReconciler(micromdns.Config{
		Name:   name,
		Filter: filter,
	}, nil, nil)

	if err := rec.Run(ctx); err != nil {
		log.Fatalf("[ERR] mdnsd: %v", err)
	}
	log.Printf("[mdnsd] stopped")
}
