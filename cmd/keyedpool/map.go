package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/keyedpool/pool"
)

type mapOptions struct {
	*rootOptions
	transform string
	skipEmpty bool
	progress  bool
}

func newMapCmd(root *rootOptions) *cobra.Command {
	opts := &mapOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "map [file]",
		Short: "Transform every line of a file (or stdin) in parallel",
		Long: `Reads lines from the given file, or stdin when no file is given, applies
the chosen transform to each line on the worker pool, and prints the
results in input order. Lines whose transform fails are reported on stderr
and make the command exit non-zero.

Transforms: ` + strings.Join(transformNames(), ", "),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.transform, "transform", "t", "upper", "Transform to apply to each line")
	cmd.Flags().BoolVar(&opts.skipEmpty, "skip-empty", false, "Drop blank lines before processing")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Show a progress bar on stderr")
	return cmd
}

func runMap(cmd *cobra.Command, opts *mapOptions, args []string) error {
	fn, err := lookupTransform(opts.transform)
	if err != nil {
		return err
	}
	cfg, err := opts.poolConfig(cmd)
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	lines, err := readLines(in)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	// positions[i] is the 0-based input line that lines[i] came from.
	positions := lo.Range(len(lines))
	if opts.skipEmpty {
		positions = lo.Filter(positions, func(pos int, _ int) bool {
			return strings.TrimSpace(lines[pos]) != ""
		})
		lines = lo.Map(positions, func(pos int, _ int) string {
			return lines[pos]
		})
	}

	poolOpts := append(cfg.Options(), pool.WithLogger(opts.logger(cmd.ErrOrStderr())))
	if opts.progress {
		bar := progressbar.NewOptions(len(lines),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Transforming"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		poolOpts = append(poolOpts, pool.WithOnTaskEnd(func(string, string, error) {
			_ = bar.Add(1)
		}))
	}

	p, err := pool.New(fn, poolOpts...)
	if err != nil {
		return err
	}

	results, err := p.MapResults(cmd.Context(), lines)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(cmd.OutOrStdout())
	for _, r := range results {
		if r.Failed() {
			fmt.Fprintln(out)
			continue
		}
		fmt.Fprintln(out, r.Value)
	}
	if err := out.Flush(); err != nil {
		return err
	}

	failed := 0
	for i, r := range results {
		if !r.Failed() {
			continue
		}
		failed++
		red.Fprintf(cmd.ErrOrStderr(), "line %d: %v\n", positions[i]+1, r.Error)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d lines failed", failed, len(results))
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
