// Command smq-cli is a command-line SMQ client.
//
// Usage:
//
//	smq-cli <command> [flags] [args]
//
// Commands:
//
//	pub       Publish a message
//	sub       Subscribe and print messages
//	observe   Print subscriber count changes
//	shell     Interactive session
//	bridge    Forward SMQ topics to an MQTT broker
//	discover  Find brokers on the local network
//
// Connection flags are shared by every command except discover and may
// also be set in a YAML file given with -config. Flags override the file.
//
// Examples:
//
//	# Publish a text message
//	smq-cli pub -url https://broker.local/smq.lsp sensors "21.5"
//
//	# Print everything sent to the temp subtopic, reconnecting on loss
//	smq-cli sub -url https://broker.local/smq.lsp -subtopic temp -reconnect sensors
//
//	# Bridge routes from a config file
//	smq-cli bridge -config bridge.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/smq-protocol/smq-go/pkg/bridge"
	"github.com/smq-protocol/smq-go/pkg/discovery"
	"github.com/smq-protocol/smq-go/pkg/smq"
)

const usage = `smq-cli - SMQ command-line client

Usage:
  smq-cli <command> [flags] [args]

Commands:
  pub       Publish a message
  sub       Subscribe and print messages
  observe   Print subscriber count changes
  shell     Interactive session
  bridge    Forward SMQ topics to an MQTT broker
  discover  Find brokers on the local network

Use "smq-cli <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "pub":
		err = runPub(args)
	case "sub":
		err = runSub(args)
	case "observe":
		err = runObserve(args)
	case "shell":
		err = runShell(args)
	case "bridge":
		err = runBridge(args)
	case "discover":
		err = runDiscover(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func newFlagSet(name, synopsis, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\nUsage:\n  smq-cli %s [flags] %s\n\nFlags:\n", synopsis, name, args)
		fs.PrintDefaults()
	}
	return fs
}

// loadConfig resolves the configuration and builds the console logger.
func loadConfig(fs *flag.FlagSet, common *commonFlags, logOut io.Writer) (Config, *slog.Logger, error) {
	cfg, err := common.resolve(fs)
	if err != nil {
		return cfg, nil, err
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, slog.New(newConsoleHandler(logOut, level)), nil
}

// start connects a session. setup runs after every connect, reconnects
// included.
func start(ctx context.Context, cfg Config, logger *slog.Logger, setup func(*smq.Client) error) (*session, error) {
	s, err := newSession(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.setup = setup
	if err := s.connect(ctx); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runPub(args []string) error {
	fs := newFlagSet("pub", "smq-cli pub - Publish a message", "<topic> <message>")
	common := addCommonFlags(fs)
	subtopic := fs.String("subtopic", "", "Subtopic name")
	repeat := fs.Int("repeat", 1, "Number of times to publish")
	interval := fs.Duration("interval", time.Second, "Delay between repeated publishes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return errors.New("topic and message required")
	}
	topic := fs.Arg(0)
	payload := []byte(strings.Join(fs.Args()[1:], " "))

	ctx, cancel := signalContext()
	defer cancel()

	cfg, logger, err := loadConfig(fs, common, os.Stderr)
	if err != nil {
		return err
	}
	s, err := start(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer s.close()

	for i := 0; i < *repeat; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(*interval):
			}
		}
		if err := s.client.PublishSubtopic(topic, *subtopic, payload); err != nil {
			return err
		}
	}
	return nil
}

func runSub(args []string) error {
	fs := newFlagSet("sub", "smq-cli sub - Subscribe and print messages", "<topic>...")
	common := addCommonFlags(fs)
	subtopic := fs.String("subtopic", "", "Only print messages of this subtopic")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("at least one topic required")
	}
	topics := fs.Args()

	ctx, cancel := signalContext()
	defer cancel()

	cfg, logger, err := loadConfig(fs, common, os.Stderr)
	if err != nil {
		return err
	}
	s, err := start(ctx, cfg, logger, func(c *smq.Client) error {
		out := printer{w: os.Stdout, names: c}
		for _, t := range topics {
			var err error
			if *subtopic == "" {
				err = c.Subscribe(t, out.message, ackPrinter(os.Stderr, "subscribe"))
			} else {
				err = c.SubscribeSubtopic(t, *subtopic, out.message, ackPrinter(os.Stderr, "subscribe"))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer s.close()

	<-ctx.Done()
	return nil
}

func runObserve(args []string) error {
	fs := newFlagSet("observe", "smq-cli observe - Print subscriber count changes", "<topic|etid>...")
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("at least one topic or ephemeral ID required")
	}
	targets := fs.Args()

	ctx, cancel := signalContext()
	defer cancel()

	cfg, logger, err := loadConfig(fs, common, os.Stderr)
	if err != nil {
		return err
	}
	s, err := start(ctx, cfg, logger, func(c *smq.Client) error {
		out := printer{w: os.Stdout, names: c}
		for _, t := range targets {
			var err error
			if id, ok := parseID(t); ok {
				err = c.ObserveID(id, out.change)
			} else {
				err = c.Observe(t, out.change)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer s.close()

	<-ctx.Done()
	return nil
}

func runShell(args []string) error {
	fs := newFlagSet("shell", "smq-cli shell - Interactive session", "")
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	rl, err := newReadline()
	if err != nil {
		return err
	}
	// Log through readline so output does not garble the prompt.
	cfg, logger, err := loadConfig(fs, common, rl.Stdout())
	if err != nil {
		rl.Close()
		return err
	}
	s, err := start(ctx, cfg, logger, nil)
	if err != nil {
		rl.Close()
		return err
	}
	defer s.close()

	go newShell(s.client, rl).Run(ctx, cancel)
	<-ctx.Done()
	return nil
}

// routeFlags collects repeated -route values.
type routeFlags []bridge.Route

func (r *routeFlags) String() string {
	parts := make([]string, len(*r))
	for i, route := range *r {
		parts[i] = route.String()
	}
	return strings.Join(parts, ", ")
}

func (r *routeFlags) Set(v string) error {
	route, err := parseRoute(v)
	if err != nil {
		return err
	}
	*r = append(*r, route)
	return nil
}

// parseRoute parses "topic[/subtopic][=mqtt/topic]".
func parseRoute(s string) (bridge.Route, error) {
	src, target, _ := strings.Cut(s, "=")
	topic, subtopic, _ := strings.Cut(src, "/")
	if topic == "" {
		return bridge.Route{}, fmt.Errorf("invalid route %q: empty SMQ topic", s)
	}
	return bridge.Route{SMQTopic: topic, Subtopic: subtopic, MQTTTopic: target}, nil
}

func runBridge(args []string) error {
	fs := newFlagSet("bridge", "smq-cli bridge - Forward SMQ topics to an MQTT broker", "")
	common := addCommonFlags(fs)
	mqttBroker := fs.String("mqtt", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	var routes routeFlags
	fs.Var(&routes, "route", "Route topic[/subtopic][=mqtt/topic] (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(fs, common, os.Stderr)
	if err != nil {
		return err
	}
	mqttCfg := cfg.MQTT
	if *mqttBroker != "" {
		mqttCfg.Broker = *mqttBroker
	}
	if mqttCfg.ClientID == "" {
		mqttCfg.ClientID = "smq-bridge"
	}
	allRoutes := append(cfg.Routes, routes...)
	if len(allRoutes) == 0 {
		return bridge.ErrNoRoutes
	}

	ctx, cancel := signalContext()
	defer cancel()

	pub, err := bridge.NewPahoPublisher(mqttCfg, logger)
	if err != nil {
		return err
	}
	if err := pub.Connect(ctx); err != nil {
		return err
	}
	defer pub.Close()

	s, err := start(ctx, cfg, logger, func(c *smq.Client) error {
		return bridge.New(c, pub, allRoutes, logger).Start()
	})
	if err != nil {
		return err
	}
	defer s.close()

	for _, r := range allRoutes {
		logger.Info("route", "route", r.String())
	}
	<-ctx.Done()
	return nil
}

func runDiscover(args []string) error {
	fs := newFlagSet("discover", "smq-cli discover - Find brokers on the local network", "")
	timeout := fs.Duration("timeout", 5*time.Second, "How long to browse")
	iface := fs.String("interface", "", "Network interface (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	browser := discovery.NewBrowser(discovery.BrowserConfig{Interface: *iface})
	brokers, err := browser.Browse(ctx)
	if err != nil {
		return err
	}

	found := 0
	for b := range brokers {
		found++
		fmt.Printf("%s %s\n", color.GreenString(b.Instance), b.URL)
		if len(b.Addresses) > 0 {
			fmt.Printf("  addresses: %s\n", strings.Join(b.Addresses, ", "))
		}
	}
	if found == 0 {
		fmt.Println("No brokers found.")
	}
	return nil
}
