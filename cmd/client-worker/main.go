// Command client-worker drives a steady stream of synthetic lookups
// against a running ring. The first node list is the bootstrap's
// successor list; on a timer it is refreshed from a randomly chosen
// known node's successor list. Used by the churn-test harness to keep
// load flowing while nodes join and leave.
package main

import (
	"KoordeDHT/internal/client"
	"KoordeDHT/internal/logger"
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"log"
	"math/big"
	"time"
)

func randomKey(bytes int) string {
	b := make([]byte, bytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func pickRandom(nodes []string) string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(nodes))))
	return nodes[n.Int64()]
}

func main() {
	bootstrap := flag.String("bootstrap", "127.0.0.1:5000", "bootstrap node address")
	rate := flag.Float64("rate", 1.0, "lookup requests per second")
	timeout := flag.Duration("timeout", 2*time.Second, "per-request timeout")
	refresh := flag.Duration("refresh", 30*time.Second, "node list refresh interval")
	flag.Parse()

	c, err := client.New(&logger.NopLogger{})
	if err != nil {
		log.Fatalf("failed to open client socket: %v", err)
	}
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	nodes, _, err := c.RoutingSnapshot(ctx, *bootstrap, *timeout)
	if err != nil || len(nodes) == 0 {
		log.Fatalf("failed to fetch routing snapshot from bootstrap %s: %v", *bootstrap, err)
	}
	nodes = append(nodes, *bootstrap)
	log.Printf("bootstrap succeeded, discovered %d nodes", len(nodes))

	interval := time.Duration(float64(time.Second) / *rate)
	ticker := time.NewTicker(*refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n := pickRandom(nodes)
			newNodes, _, err := c.RoutingSnapshot(ctx, n, *timeout)
			if err == nil && len(newNodes) > 0 {
				nodes = append(newNodes, n)
				log.Printf("refreshed node list, now have %d nodes", len(nodes))
			}
		default:
			key := randomKey(16)
			n := pickRandom(nodes)

			reqCtx, cancel := context.WithTimeout(context.Background(), *timeout)
			start := time.Now()
			_, _, err := c.Lookup(reqCtx, n, key, *timeout)
			cancel()
			if err != nil {
				log.Printf("[lookup] key=%s via %s ERROR: %v latency=%s", key, n, err, time.Since(start))
			} else {
				log.Printf("[lookup] key=%s via %s OK latency=%s", key, n, time.Since(start))
			}

			time.Sleep(interval)
		}
	}
}
