// Command smc-replay runs the analysis engine over a recorded candle file and
// prints the resulting analysis as indented JSON. It needs no Redis, database
// or network access.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"smc-engine/config"
	"smc-engine/internal/analysis"
	"smc-engine/internal/logging"
	"smc-engine/internal/smc"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "smc-replay: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	file             string
	symbol           string
	timeframe        string
	configPath       string
	split            int
	extended         bool
	maxOpportunities int
	logLevel         string
}

func parseFlags(args []string, stderr io.Writer) (options, map[string]bool, error) {
	var opts options
	fs := flag.NewFlagSet("smc-replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.file, "file", "-", "candle file (JSON array), - for stdin")
	fs.StringVar(&opts.symbol, "symbol", "BTCUSDT", "symbol to analyse")
	fs.StringVar(&opts.timeframe, "timeframe", "1h", "timeframe label")
	fs.StringVar(&opts.configPath, "config", "", "configuration file (json, yaml or toml)")
	fs.IntVar(&opts.split, "split", 0, "analyse the first N candles, then revalidate against the rest")
	fs.BoolVar(&opts.extended, "extended", false, "generate extended opportunity types")
	fs.IntVar(&opts.maxOpportunities, "max-opportunities", 0, "cap on opportunities per analysis")
	fs.StringVar(&opts.logLevel, "log-level", "WARN", "log level for diagnostics on stderr")

	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return opts, set, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, set, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logging.SetDefault(logging.New(&logging.Config{
		Level:     opts.logLevel,
		Writer:    stderr,
		Component: "smc-replay",
	}))

	if opts.configPath != "" {
		os.Setenv("SMC_CONFIG_FILE", opts.configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	params := cfg.EngineConfig.Params
	if set["extended"] {
		params.ExtendedOpportunities = opts.extended
	}
	if set["max-opportunities"] {
		params.MaxOpportunities = opts.maxOpportunities
	}

	candles, err := readCandles(opts.file, stdin)
	if err != nil {
		return err
	}

	engine := smc.NewEngine(params.WithDefaults())

	head, tail := candles, []analysis.Candle(nil)
	if opts.split > 0 {
		if opts.split >= len(candles) {
			return fmt.Errorf("split %d leaves no candles to revalidate (have %d)", opts.split, len(candles))
		}
		head, tail = candles[:opts.split], candles[opts.split:]
	}

	result, err := engine.Analyze(opts.symbol, opts.timeframe, head)
	if err != nil {
		return err
	}

	if len(tail) > 0 {
		summary, err := engine.Revalidate(opts.symbol, tail)
		if err != nil {
			return err
		}
		logging.Info("Revalidated against later candles",
			"candles", summary.CandlesEvaluated,
			"order_blocks_tested", summary.OrderBlocksTested,
			"order_blocks_breached", summary.OrderBlocksBreached,
			"fvgs_filled", summary.FVGsFilled,
			"pools_grabbed", summary.PoolsGrabbed,
		)
		result, _ = engine.Latest(opts.symbol)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// readCandles decodes a JSON array of candles from path, or stdin for "-"
func readCandles(path string, stdin io.Reader) ([]analysis.Candle, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open candle file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var candles []analysis.Candle
	if err := json.NewDecoder(r).Decode(&candles); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, smc.ErrNoCandles
		}
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	return candles, nil
}
