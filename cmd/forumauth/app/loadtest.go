package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	forumauth "github.com/MrEthical07/forumauth"
)

const (
	keyLoadPrincipals  = "principals"
	keyLoadConcurrency = "concurrency"
	keyLoadOps         = "ops"
)

type principalState struct {
	principal string
	access    string

	mu      sync.Mutex
	renewal string
}

func newLoadtestCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure validation and refresh throughput against Redis",
		Long: `Seed renewal credentials for a set of principals, then run a validation
phase and a refresh phase with concurrent workers and print latency
percentiles. Without --redis-addr an in-memory Redis is used.

Workers pick principals at random, so refreshes on the same principal
contend for its critical section. Each refresh replaces the principal's
renewal credential, so the next one must present the new value.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadtest(cmd.Context(), v, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int(keyLoadPrincipals, 1000, "Number of principals to seed")
	cmd.Flags().Int(keyLoadConcurrency, 64, "Number of concurrent workers")
	cmd.Flags().Int(keyLoadOps, 20000, "Operations per phase")
	bindFlags(v, cmd)

	return cmd
}

func runLoadtest(ctx context.Context, v *viper.Viper, out io.Writer) error {
	principals := v.GetInt(keyLoadPrincipals)
	concurrency := v.GetInt(keyLoadConcurrency)
	ops := v.GetInt(keyLoadOps)
	if principals <= 0 || concurrency <= 0 || ops <= 0 {
		return fmt.Errorf("principals, concurrency and ops must be > 0")
	}

	// The load generator always owns its Redis when none is given.
	v.Set(keyDev, true)
	cfg, err := engineConfig(v)
	if err != nil {
		return err
	}
	cfg.Security.EnableRenewalThrottle = false
	cfg.Metrics.Enabled = true

	logger := slog.New(slog.DiscardHandler)
	client, closeRedis, err := openRedis(v, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	noLogins := forumauth.AccountVerifierFunc(func(context.Context, string, string) (string, error) {
		return "", &forumauth.AuthFailure{Kind: forumauth.UnknownAccount}
	})
	engine, err := forumauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountVerifier(noLogins).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(out, "seeding %d principals...\n", principals)
	states := make([]*principalState, principals)
	startSeed := time.Now()
	for i := range states {
		principal := fmt.Sprintf("load-%d", i)
		access, err := engine.IssueAccessToken(principal)
		if err != nil {
			return err
		}
		renewal, err := engine.IssueRenewalToken(ctx, principal)
		if err != nil {
			return fmt.Errorf("seed %s: %w", principal, err)
		}
		states[i] = &principalState{principal: principal, access: access, renewal: renewal}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validate := runPhase(ops, concurrency, func(r *rand.Rand) bool {
		s := states[r.IntN(len(states))]
		return engine.ValidateAccessToken(s.access, s.principal)
	})
	refresh := runPhase(ops, concurrency, func(r *rand.Rand) bool {
		s := states[r.IntN(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Refresh(ctx, s.renewal)
		if err != nil {
			return false
		}
		s.renewal = pair.RenewalToken
		return true
	})

	snap := engine.MetricsSnapshot()
	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validate)
	printStats(out, "refresh", refresh)
	fmt.Fprintf(out, "lock: contention=%d exhausted=%d store_errors=%d\n",
		snap.Counters[forumauth.MetricLockContention],
		snap.Counters[forumauth.MetricLockExhausted],
		snap.Counters[forumauth.MetricStoreError],
	)
	return nil
}

// runPhase runs ops calls of op across concurrency workers. op reports success.
func runPhase(ops, concurrency int, op func(*rand.Rand) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for cursor.Add(1) <= int64(ops) {
				t0 := time.Now()
				if !op(r) {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	return computeStats(time.Since(start), latencies, failures.Load())
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	slices.Sort(samples)
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
