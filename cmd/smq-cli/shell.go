package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/smq-protocol/smq-go/pkg/smq"
)

// shell is the interactive command loop.
type shell struct {
	client *smq.Client
	rl     *readline.Instance
	out    printer
}

func newReadline() (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "smq> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, nil
}

func newShell(client *smq.Client, rl *readline.Instance) *shell {
	return &shell{
		client: client,
		rl:     rl,
		out:    printer{w: rl.Stdout(), names: client},
	}
}

// Run reads commands until quit, EOF or ctx is done.
func (s *shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			cancel()
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd := strings.ToLower(fields[0])
		if cmd == "quit" || cmd == "exit" || cmd == "q" {
			cancel()
			return
		}
		if err := s.exec(cmd, line); err != nil {
			fmt.Fprintln(s.rl.Stdout(), color.RedString("error: %v", err))
		}
	}
}

func (s *shell) printHelp() {
	fmt.Fprint(s.rl.Stdout(), `
SMQ Shell Commands:
  Publishing:
    pub <topic> <text>                 - Publish text to a topic
    pubsub <topic> <subtopic> <text>   - Publish text to a subtopic
    reply <etid> <text>                - Publish to a client's ephemeral ID
    create <topic> [subtopic]          - Resolve a topic (and subtopic) ID

  Subscribing:
    sub <topic> [subtopic]             - Subscribe and print messages
    unsub <topic>                      - Remove a subscription
    observe <topic|etid>               - Print subscriber count changes
    unobserve <topic|etid>             - Stop observing

  General:
    status                             - Show connection status
    help                               - Show this help
    quit                               - Exit
`)
}

// splitArgs splits line into n fields; the last field keeps the rest of
// the line, inner spaces included.
func splitArgs(line string, n int) ([]string, bool) {
	rest := strings.TrimSpace(line)
	args := make([]string, 0, n)
	for len(args) < n-1 {
		if rest == "" {
			return nil, false
		}
		field, tail, _ := strings.Cut(rest, " ")
		args = append(args, field)
		rest = strings.TrimLeft(tail, " \t")
	}
	if rest == "" {
		return nil, false
	}
	return append(args, rest), true
}

// parseID parses a numeric ephemeral or topic ID.
func parseID(s string) (uint32, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint32(v), true
}

func (s *shell) exec(cmd, line string) error {
	w := s.rl.Stdout()
	switch cmd {
	case "help", "?":
		s.printHelp()
		return nil

	case "status":
		fmt.Fprintf(w, "State:        %s\n", s.client.State())
		fmt.Fprintf(w, "EphemeralID:  %d\n", s.client.EphemeralID())
		fmt.Fprintf(w, "Address:      %s\n", s.client.IPAddr())
		fmt.Fprintf(w, "Connection:   %s\n", s.client.ConnectionID())
		return nil

	case "pub":
		args, ok := splitArgs(line, 3)
		if !ok {
			return fmt.Errorf("usage: pub <topic> <text>")
		}
		return s.client.PublishString(args[1], args[2])

	case "pubsub":
		args, ok := splitArgs(line, 4)
		if !ok {
			return fmt.Errorf("usage: pubsub <topic> <subtopic> <text>")
		}
		return s.client.PublishSubtopic(args[1], args[2], []byte(args[3]))

	case "reply":
		args, ok := splitArgs(line, 3)
		if !ok {
			return fmt.Errorf("usage: reply <etid> <text>")
		}
		etid, ok := parseID(args[1])
		if !ok {
			return fmt.Errorf("invalid ephemeral ID: %s", args[1])
		}
		return s.client.PublishID(etid, 0, []byte(args[2]))
	}

	fields := strings.Fields(line)[1:]
	switch cmd {
	case "create":
		switch len(fields) {
		case 1:
			return s.client.Create(fields[0], ackPrinter(w, "create"))
		case 2:
			return s.client.CreateWithSubtopic(fields[0], fields[1], ackPrinter(w, "create"))
		}
		return fmt.Errorf("usage: create <topic> [subtopic]")

	case "sub":
		switch len(fields) {
		case 1:
			return s.client.Subscribe(fields[0], s.out.message, ackPrinter(w, "subscribe"))
		case 2:
			return s.client.SubscribeSubtopic(fields[0], fields[1], s.out.message, ackPrinter(w, "subscribe"))
		}
		return fmt.Errorf("usage: sub <topic> [subtopic]")

	case "unsub":
		if len(fields) != 1 {
			return fmt.Errorf("usage: unsub <topic>")
		}
		return s.client.Unsubscribe(fields[0])

	case "observe":
		if len(fields) != 1 {
			return fmt.Errorf("usage: observe <topic|etid>")
		}
		if id, ok := parseID(fields[0]); ok {
			return s.client.ObserveID(id, s.out.change)
		}
		return s.client.Observe(fields[0], s.out.change)

	case "unobserve":
		if len(fields) != 1 {
			return fmt.Errorf("usage: unobserve <topic|etid>")
		}
		if id, ok := parseID(fields[0]); ok {
			return s.client.UnobserveID(id)
		}
		return s.client.Unobserve(fields[0])
	}

	return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
}
