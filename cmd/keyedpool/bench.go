package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/keyedpool/pool"
)

type benchOptions struct {
	*rootOptions
	tasks        int
	rounds       int
	workerCounts []int
	progress     bool
	metricsAddr  string
}

// benchRun is the outcome of one Map over the workload.
type benchRun struct {
	Workers   int
	Elapsed   time.Duration
	Identical bool
	Failed    int
}

func newBenchCmd(root *rootOptions) *cobra.Command {
	opts := &benchOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run one CPU-bound workload through Map at several worker counts",
		Long: `Hashes every task repeatedly through pool.Map, once per worker count, and
checks that each run returns exactly the same ordered output as the first.
The report compares wall time and throughput.

With --metrics-addr the pool metrics are served at /metrics until the
command is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.tasks, "tasks", "n", 2000, "Number of tasks per run")
	cmd.Flags().IntVar(&opts.rounds, "rounds", 500, "SHA-256 rounds per task")
	cmd.Flags().IntSliceVar(&opts.workerCounts, "worker-counts", []int{1, 2, 4, 8}, "Worker counts to compare")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Show a progress bar on stderr")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func runBench(cmd *cobra.Command, opts *benchOptions) error {
	if opts.tasks < 1 || opts.rounds < 1 {
		return fmt.Errorf("--tasks and --rounds must be positive")
	}
	if len(opts.workerCounts) == 0 {
		return fmt.Errorf("--worker-counts must not be empty")
	}
	cfg, err := opts.poolConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	reg := prometheus.NewRegistry()

	if opts.metricsAddr != "" {
		srv, addr, err := serveMetrics(opts.metricsAddr, reg)
		if err != nil {
			return err
		}
		defer srv.Close()
		fmt.Fprintf(out, "Serving metrics on http://%s/metrics\n", addr)
	}

	tasks := lo.Map(lo.Range(opts.tasks), func(i int, _ int) string {
		return "task-" + strconv.Itoa(i)
	})
	workload := hashWorkload(opts.rounds)

	var bar *progressbar.ProgressBar
	if opts.progress {
		bar = progressbar.NewOptions(len(tasks)*len(opts.workerCounts),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Benchmarking"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionClearOnFinish(),
		)
	}

	bold.Fprintf(out, "Hashing %d tasks x %d rounds\n", len(tasks), opts.rounds)

	var (
		baseline []string
		runs     = make([]benchRun, 0, len(opts.workerCounts))
	)
	for _, workers := range opts.workerCounts {
		poolOpts := append(cfg.Options(),
			pool.WithWorkerCount(workers),
			pool.WithMetrics(reg),
			pool.WithLogger(opts.logger(cmd.ErrOrStderr())),
		)
		if bar != nil {
			poolOpts = append(poolOpts, pool.WithOnTaskEnd(func(string, string, error) {
				_ = bar.Add(1)
			}))
		}

		run, results, err := benchOnce(ctx, workload, tasks, workers, poolOpts)
		if err != nil {
			return err
		}
		if baseline == nil {
			baseline = results
		}
		run.Identical = slices.Equal(baseline, results)
		runs = append(runs, run)
	}

	if err := renderBench(out, runs, len(tasks)); err != nil {
		return err
	}

	if mismatched := lo.CountBy(runs, func(r benchRun) bool { return !r.Identical }); mismatched > 0 {
		return fmt.Errorf("%d runs returned different output", mismatched)
	}
	if opts.metricsAddr != "" {
		fmt.Fprintln(out, "Press Ctrl+C to exit")
		<-ctx.Done()
	}
	return nil
}

func benchOnce(ctx context.Context, fn pool.ProcessFunc[string, string], tasks []string, workers int, opts []pool.Option) (benchRun, []string, error) {
	p, err := pool.New(fn, opts...)
	if err != nil {
		return benchRun{}, nil, err
	}

	start := time.Now()
	results, err := p.Map(ctx, tasks)
	run := benchRun{Workers: workers, Elapsed: time.Since(start)}

	var taskErr *pool.TaskError
	if err != nil && !errors.As(err, &taskErr) {
		return run, nil, err
	}
	run.Failed = int(p.Stats().Failed)
	return run, results, nil
}

// hashWorkload returns a deterministic CPU-bound pool function.
func hashWorkload(rounds int) pool.ProcessFunc[string, string] {
	return func(_ context.Context, task string) (string, error) {
		sum := sha256.Sum256([]byte(task))
		for range rounds - 1 {
			sum = sha256.Sum256(sum[:])
		}
		return hex.EncodeToString(sum[:8]), nil
	}
}

func renderBench(w io.Writer, runs []benchRun, tasks int) error {
	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("Workers", "Time", "Tasks/sec", "Speedup", "Failed", "Output")

	base := runs[0].Elapsed
	for _, r := range runs {
		output := green.Sprint("identical")
		if !r.Identical {
			output = red.Sprint("MISMATCH")
		}
		_ = table.Append(
			strconv.Itoa(r.Workers),
			r.Elapsed.Round(time.Microsecond).String(),
			strconv.Itoa(int(float64(tasks)/r.Elapsed.Seconds())),
			fmt.Sprintf("%.2fx", base.Seconds()/r.Elapsed.Seconds()),
			strconv.Itoa(r.Failed),
			output,
		)
	}
	return table.Render()
}

// serveMetrics exposes reg on addr in the background.
func serveMetrics(addr string, reg *prometheus.Registry) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	return srv, ln.Addr(), nil
}
