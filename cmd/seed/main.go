// Command seed submits synthetic match reports to a running service.
// It is a smoke-load tool: it fabricates guilds, rosters, and duplicate
// reports so the dedup and ranking paths see realistic traffic.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultCount     = 1000
	defaultGuilds    = 3
	defaultPlayers   = 12
	defaultTimeout   = 10 * time.Second
	defaultRunBudget = 5 * time.Minute
	duplicateRate    = 0.2
	rosterMin        = 3
	rosterMax        = 4
	maxScore         = 12
)

type rosterEntry struct {
	Alias    string `json:"alias"`
	Score    int    `json:"score"`
	IsBot    bool   `json:"is_bot"`
	IsWinner bool   `json:"is_winner"`
}

type submission struct {
	GuildID    string        `json:"guild_id"`
	ReportedAt string        `json:"reported_at"`
	Roster     []rosterEntry `json:"roster"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		apiKey  = flag.String("key", "", "API key of a registered identity (required)")
		count   = flag.Int("count", defaultCount, "Number of submissions to send")
		guilds  = flag.Int("guilds", defaultGuilds, "Number of distinct guilds")
		players = flag.Int("players", defaultPlayers, "Size of the synthetic player pool")
		workers = flag.Int("workers", runtime.NumCPU(), "Number of concurrent senders")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed for reproducible runs")
	)
	flag.Parse()

	if *apiKey == "" {
		os.Stderr.WriteString("missing -key; register an identity first (POST /identities)\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunBudget)
	defer cancel()

	rng := rand.New(rand.NewSource(*seed))
	subs := generate(rng, *count, *guilds, *players)

	client := &http.Client{Timeout: *timeout}
	jobs := make(chan submission)
	var accepted, rejected atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				if send(ctx, client, *baseURL, *apiKey, s) {
					accepted.Add(1)
				} else {
					rejected.Add(1)
				}
			}
		}()
	}

	start := time.Now()
	for _, s := range subs {
		select {
		case <-ctx.Done():
			break
		case jobs <- s:
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("sent=%d accepted=%d rejected=%d elapsed=%s rate=%.0f/s\n",
		len(subs), accepted.Load(), rejected.Load(), elapsed,
		float64(len(subs))/elapsed.Seconds())
}

// generate builds count submissions across the guild and player pools.
// A slice of them are near-duplicates of the previous submission with a
// slightly shifted timestamp, which exercises the dedup window.
func generate(rng *rand.Rand, count, guilds, players int) []submission {
	pool := make([]string, players)
	for i := range pool {
		pool[i] = fmt.Sprintf("player-%02d", i)
	}

	subs := make([]submission, 0, count)
	base := time.Now().Add(-24 * time.Hour).UTC()
	for i := 0; i < count; i++ {
		if len(subs) > 0 && rng.Float64() < duplicateRate {
			dup := subs[len(subs)-1]
			ts, _ := time.Parse(time.RFC3339, dup.ReportedAt)
			dup.ReportedAt = ts.Add(time.Duration(rng.Intn(4)) * time.Second).Format(time.RFC3339)
			subs = append(subs, dup)
			continue
		}

		size := rosterMin + rng.Intn(rosterMax-rosterMin+1)
		perm := rng.Perm(len(pool))[:size]
		roster := make([]rosterEntry, size)
		winner := rng.Intn(size)
		for j, p := range perm {
			roster[j] = rosterEntry{
				Alias:    pool[p],
				Score:    rng.Intn(maxScore),
				IsBot:    rng.Float64() < 0.1,
				IsWinner: j == winner,
			}
		}
		roster[winner].Score = maxScore

		subs = append(subs, submission{
			GuildID:    fmt.Sprintf("guild-%d", rng.Intn(guilds)),
			ReportedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Roster:     roster,
		})
	}
	return subs
}

func send(ctx context.Context, client *http.Client, baseURL, apiKey string, s submission) bool {
	body, err := json.Marshal(s)
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusAccepted
}
