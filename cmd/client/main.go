package main

import (
	"KoordeDHT/internal/client"
	"KoordeDHT/internal/logger"
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "address of the ring node to talk to (entry point)")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout (e.g. 5s)")
	flag.Parse()

	c, err := client.New(&logger.NopLogger{})
	if err != nil {
		fmt.Printf("failed to open client socket: %v\n", err)
		return
	}
	defer func() { _ = c.Close() }()

	currentAddr := *addr
	fmt.Printf("Koorde interactive client. Entry point: %s\n", currentAddr)
	fmt.Println("Available commands: put/lookup/ping/successors/use/exit")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(fmt.Sprintf("koorde[%s]> ", currentAddr))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		cmd := args[0]

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)

		switch cmd {
		case "put":
			if len(args) < 3 {
				fmt.Println("Usage: put <key> <value>")
				break
			}
			key, value := args[1], args[2]
			delay, err := c.Put(ctx, currentAddr, key, value, *timeout)
			if err != nil {
				fmt.Printf("Put failed (%v) | latency=%s\n", err, delay)
			} else {
				fmt.Printf("Put sent (key=%s, value=%s) | latency=%s\n", key, value, delay)
			}

		case "lookup":
			if len(args) < 2 {
				fmt.Println("Usage: lookup <key>")
				break
			}
			key := args[1]
			val, delay, err := c.Lookup(ctx, currentAddr, key, *timeout)
			switch {
			case err == nil:
				fmt.Printf("Lookup succeeded (key=%s, value=%s) | latency=%s\n", key, val, delay)
			case errors.Is(err, client.ErrNotFound):
				fmt.Printf("Key not found: %s | latency=%s\n", key, delay)
			default:
				fmt.Printf("Lookup failed: %v | latency=%s\n", err, delay)
			}

		case "ping":
			delay, err := c.Ping(ctx, currentAddr, *timeout)
			if err != nil {
				fmt.Printf("Ping failed: %v | latency=%s\n", err, delay)
			} else {
				fmt.Printf("Pong | latency=%s\n", delay)
			}

		case "successors":
			succs, delay, err := c.RoutingSnapshot(ctx, currentAddr, *timeout)
			if err != nil {
				fmt.Printf("RoutingSnapshot failed: %v | latency=%s\n", err, delay)
				break
			}
			fmt.Printf("Successor list (count=%d) | latency=%s\n", len(succs), delay)
			for i, s := range succs {
				fmt.Printf("  [%d] %s\n", i, s)
			}

		case "use":
			if len(args) < 2 {
				fmt.Println("Usage: use <addr>")
				break
			}
			currentAddr = args[1]
			fmt.Printf("Switched entry point to %s\n", currentAddr)

		case "exit", "quit":
			fmt.Println("Bye!")
			cancel()
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}

		cancel()
	}
}
