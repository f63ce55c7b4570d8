// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pkg/profile"
	"github.com/shenwei356/raptor/internal/build"
	"github.com/shenwei356/raptor/internal/cutoff"
	"github.com/shenwei356/raptor/internal/hibf"
	"github.com/shenwei356/raptor/internal/ibf"
	"github.com/shenwei356/raptor/internal/index"
	"github.com/shenwei356/raptor/internal/minimiser"
	"github.com/shenwei356/raptor/internal/query"
	"github.com/shenwei356/raptor/internal/raptorio"
	"github.com/shenwei356/raptor/internal/rlog"
	"github.com/shenwei356/raptor/internal/shape"
	"github.com/shenwei356/raptor/internal/threshold"
	"github.com/shenwei356/xopen"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

var version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "prepare":
		err = runPrepare(os.Args[2:])
	case "build":
		err = runBuild(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "upgrade":
		err = runUpgrade(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	checkError(err)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `raptor v%s — approximate membership queries over interleaved Bloom filters

Usage: raptor <subcommand> [options]

Subcommands:
  prepare   compute per-file minimiser tables with an occurrence cutoff
  build     fill one or more IBFs (flat, partitioned, or HIBF) from a bin list
  search    query an index with a FASTA/FASTQ file
  upgrade   re-serialize an older index at the current format version
`, version)
}

func checkError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// defaultThreads honors OMP_NUM_THREADS as a fallback default for --threads,
// per spec.md §6's Environment note; the CLI flag itself always wins when
// the user sets it explicitly.
func defaultThreads() int {
	if v := os.Getenv("OMP_NUM_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

func shapeFromFlags(k int, shapeMask uint64) (shape.Shape, error) {
	if shapeMask == 0 {
		return shape.Ungapped(uint8(k))
	}
	return shape.New(shapeMask, uint8(k))
}

func startProfiling(cpu, mem bool) func() {
	switch {
	case cpu:
		return profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop
	case mem:
		return profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop
	default:
		return func() {}
	}
}

// ---------------------------------------------------------------- prepare

func runPrepare(args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	window := fs.Int("window", 20, "minimiser window size")
	k := fs.Int("kmer", 20, "k-mer size")
	shapeMask := fs.Uint64("shape", 0, "gapped shape bitmask (overrides --kmer-derived ungapped shape if set)")
	outDir := fs.String("output", ".", "output directory for .minimiser/.header files")
	verbose := fs.Bool("verbose", false, "verbose logging")
	quiet := fs.Bool("quiet", false, "suppress informational logging")
	pfCPU := fs.Bool("pprof-cpu", false, "profile CPU")
	pfMEM := fs.Bool("pprof-mem", false, "profile memory")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("prepare: a bin-description file is required")
	}
	defer startProfiling(*pfCPU, *pfMEM)()

	logger := rlog.New(*verbose, *quiet)

	sh, err := shapeFromFlags(*k, *shapeMask)
	if err != nil {
		return index.Wrap(index.InvalidArgument, err)
	}
	extractor, err := minimiser.New(*k, *window, sh)
	if err != nil {
		return index.Wrap(index.InvalidArgument, err)
	}

	binPaths, err := raptorio.ReadBinPaths(fs.Arg(0))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return index.Wrap(index.IOError, err)
	}

	var policy cutoff.Policy
	sTime := time.Now()

	var bar *mpb.Bar
	var pbs *mpb.Progress
	if !*quiet {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(binPaths)),
			mpb.PrependDecorators(
				decor.Name("preparing user bins: ", decor.WC{W: len("preparing user bins: "), C: decor.DidentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	for _, group := range binPaths {
		groupStart := time.Now()
		res, err := cutoff.Prepare(*outDir, group, extractor, policy)
		if err != nil {
			return err
		}
		if res.Skipped {
			logger.Debug().Str("file", group[0]).Msg("already prepared, skipping")
		} else {
			logger.Info().Str("file", group[0]).Uint8("cutoff", res.Cutoff).Uint64("count", res.Count).Msg("prepared")
		}
		if bar != nil {
			bar.Increment()
			bar.DecoratorEwmaUpdate(time.Since(groupStart))
		}
	}
	if pbs != nil {
		pbs.Wait()
	}
	if err := cutoff.WriteListFile(*outDir, binPaths); err != nil {
		return err
	}
	logger.Info().Dur("elapsed", time.Since(sTime)).Int("files", len(binPaths)).Msg("prepare finished")
	return nil
}

// ------------------------------------------------------------------ build

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	window := fs.Int("window", 20, "minimiser window size")
	k := fs.Int("kmer", 20, "k-mer size")
	shapeMask := fs.Uint64("shape", 0, "gapped shape bitmask")
	threads := fs.Int("threads", defaultThreads(), "number of parallel build workers")
	fpr := fs.Float64("error", 0.05, "target false-positive rate")
	rows := fs.Uint64("rows", 0, "rows per hash function (0: derive from --error)")
	hashFns := fs.Int("hash-functions", 3, "number of hash functions, 2..5")
	hibfFlag := fs.Bool("hibf", false, "wrap the flat IBF as a single-level HIBF")
	parts := fs.Int("parts", 1, "number of partitioned IBFs (1 disables partitioning)")
	inputIsMinimiser := fs.Bool("input-is-minimiser", false, "input files are .minimiser streams, not sequence files")
	output := fs.String("output", "", "output index path")
	verbose := fs.Bool("verbose", false, "verbose logging")
	quiet := fs.Bool("quiet", false, "suppress informational logging")
	pfCPU := fs.Bool("pprof-cpu", false, "profile CPU")
	pfMEM := fs.Bool("pprof-mem", false, "profile memory")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("build: a bin-description file is required")
	}
	if *output == "" {
		return fmt.Errorf("build: --output is required")
	}
	defer startProfiling(*pfCPU, *pfMEM)()

	logger := rlog.New(*verbose, *quiet)

	sh, err := shapeFromFlags(*k, *shapeMask)
	if err != nil {
		return index.Wrap(index.InvalidArgument, err)
	}

	binPaths, err := raptorio.ReadBinPaths(fs.Arg(0))
	if err != nil {
		return err
	}

	buildArgs := build.Args{
		BinPaths:         binPaths,
		Window:           *window,
		Shape:            sh,
		Threads:          *threads,
		HashFunctions:    uint8(*hashFns),
		FPR:              *fpr,
		Rows:             *rows,
		Parts:            *parts,
		InputIsMinimiser: *inputIsMinimiser,
	}

	sTime := time.Now()
	var o build.Orchestrator
	rec, err := o.Build(context.Background(), buildArgs)
	if err != nil {
		return err
	}
	logger.Info().Dur("elapsed", time.Since(sTime)).Int("bins", len(binPaths)).Msg("fill finished")

	if *hibfFlag {
		f, ok := rec.Payload.(*ibf.IBF)
		if !ok {
			return index.Wrap(index.InvalidArgument, fmt.Errorf("build: --hibf requires a flat (non-partitioned) build"))
		}
		tree := hibf.NewFlatTree(f, len(binPaths))
		rec = index.NewHIBFRecord(*window, sh, binPaths, tree)
	}

	err = raptorio.AtomicWriteFile(*output, func(w io.Writer) error {
		_, err := rec.Write(w)
		return err
	})
	if err != nil {
		return err
	}
	logger.Info().Str("output", *output).Msg("index written")
	return nil
}

// ----------------------------------------------------------------- search

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	threads := fs.Int("threads", defaultThreads(), "number of parallel query workers")
	mode := fs.String("mode", "lemma", "threshold model: lemma, percentage, or probabilistic")
	errorRate := fs.Float64("error", 0.0, "maximum allowed errors (lemma) or per-base error rate (probabilistic)")
	rho := fs.Float64("rho", 0.1, "required minimiser fraction (percentage mode)")
	pvalue := fs.Float64("pvalue", 0.01, "false-negative tolerance (probabilistic mode)")
	fs.Float64Var(pvalue, "tau", 0.01, "alias for --pvalue")
	lengthMin := fs.Int("length-min", 50, "minimum minimiser count covered by the probabilistic table")
	lengthMax := fs.Int("length-max", 500, "maximum minimiser count covered by the probabilistic table")
	cacheDir := fs.String("cache-dir", ".", "directory for the probabilistic threshold table cache")
	parts := fs.Int("parts", 1, "expected number of partitions in the index (validated against the loaded index)")
	output := fs.String("output", "-", "output path, - for stdout")
	verbose := fs.Bool("verbose", false, "verbose logging")
	quiet := fs.Bool("quiet", false, "suppress informational logging")
	pfCPU := fs.Bool("pprof-cpu", false, "profile CPU")
	pfMEM := fs.Bool("pprof-mem", false, "profile memory")
	fs.Parse(args)

	if fs.NArg() < 2 {
		return fmt.Errorf("search: usage: raptor search [options] INDEX QUERY.fa")
	}
	defer startProfiling(*pfCPU, *pfMEM)()

	logger := rlog.New(*verbose, *quiet)

	indexPath := fs.Arg(0)
	queryPath := fs.Arg(1)

	// Load the index asynchronously: correctness does not depend on the
	// overlap, but starting the (potentially large) read in a goroutine
	// while the rest of this function validates flags and opens the
	// output stream mirrors the original's std::async-overlapped index
	// load (search_singular_ibf.hpp/search_partitioned_ibf.cpp).
	loadDone := make(chan error, 1)
	var rec *index.Record
	go func() {
		var err error
		rec, err = loadIndex(indexPath)
		loadDone <- err
	}()

	modeVal, err := parseMode(*mode)
	if err != nil {
		return index.Wrap(index.InvalidArgument, err)
	}

	params := &threshold.Parameters{
		Mode:      modeVal,
		ErrorRate: *errorRate,
		Rho:       *rho,
		PValue:    *pvalue,
		LengthMin: *lengthMin,
		LengthMax: *lengthMax,
	}

	outfh, err := xopen.Wopen(*output)
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	defer outfh.Close()

	if err := <-loadDone; err != nil {
		return err
	}

	if rec.IsPartitioned() {
		p := rec.Payload.(*build.PartitionedIBF)
		if *parts > 1 && p.Config.Parts != *parts {
			logger.Warn().Int("expected", *parts).Int("actual", p.Config.Parts).Msg("partition count mismatch")
		}
	}

	params.K = int(rec.Shape.K)
	params.Window = rec.Window
	if err := params.Validate(); err != nil {
		return index.Wrap(index.InvalidArgument, err)
	}
	if params.Mode == threshold.Probabilistic {
		if err := params.LoadOrBuildTable(*cacheDir); err != nil {
			return err
		}
	}

	extractor, err := minimiser.New(int(rec.Shape.K), rec.Window, rec.Shape)
	if err != nil {
		return index.Wrap(index.InvalidArgument, err)
	}

	engine := &query.Engine{
		Record:    rec,
		Extractor: extractor,
		Threshold: params,
		Out:       query.NewSyncOut(outfh),
		Threads:   *threads,
	}

	sTime := time.Now()
	if err := engine.Run(context.Background(), queryPath); err != nil {
		return err
	}
	logger.Info().Dur("elapsed", time.Since(sTime)).Msg("search finished")
	return nil
}

func parseMode(s string) (threshold.Mode, error) {
	switch s {
	case "lemma":
		return threshold.Lemma, nil
	case "percentage":
		return threshold.Percentage, nil
	case "probabilistic":
		return threshold.Probabilistic, nil
	default:
		return 0, fmt.Errorf("search: unknown --mode %q, want lemma, percentage, or probabilistic", s)
	}
}

// loadIndex reads an index.Record's header and dispatches to the right
// payload decoder based on the kind tag ReadHeader returns.
func loadIndex(path string) (*index.Record, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, index.Wrap(index.IOError, err)
	}
	defer fh.Close()

	window, sh, binPaths, kind, err := index.ReadHeader(fh)
	if err != nil {
		return nil, err
	}

	switch kind {
	case index.PayloadHIBF:
		tree, err := hibf.Read(fh)
		if err != nil {
			return nil, err
		}
		return index.NewHIBFRecord(window, sh, binPaths, tree), nil
	case index.PayloadPartitionedIBF:
		p, err := build.ReadPartitionedIBF(fh)
		if err != nil {
			return nil, err
		}
		return index.NewPartitionedRecord(window, sh, binPaths, p), nil
	default:
		f, err := ibf.Read(fh)
		if err != nil {
			return nil, err
		}
		return index.NewFlatRecord(window, sh, binPaths, f), nil
	}
}

// ---------------------------------------------------------------- upgrade

func runUpgrade(args []string) error {
	fs := flag.NewFlagSet("upgrade", flag.ExitOnError)
	output := fs.String("output", "", "path for the re-serialized index")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("upgrade: usage: raptor upgrade --output NEW_INDEX OLD_INDEX")
	}
	if *output == "" {
		return fmt.Errorf("upgrade: --output is required")
	}

	rec, err := loadIndex(fs.Arg(0))
	if err != nil {
		return err
	}

	return raptorio.AtomicWriteFile(*output, func(w io.Writer) error {
		_, err := rec.Write(w)
		return err
	})
}
