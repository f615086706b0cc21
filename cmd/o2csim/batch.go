package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/o2csim/o2csim/pkg/engine"
	"github.com/o2csim/o2csim/pkg/parser"
	"github.com/o2csim/o2csim/pkg/tui"
	"github.com/o2csim/o2csim/pkg/validation"
	"github.com/o2csim/o2csim/pkg/writer"
)

// Batch flags
var (
	batchOutput      string
	batchInputFormat string
	batchFormat      string
	batchCompression string
	batchDelimiter   string
	batchNoProgress  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <input>",
	Short: "Simulate many scenarios from a file",
	Long: `Simulate every scenario in a JSON, JSONL, CSV or XLSX file and write one
row per scenario to JSON, Parquet or XLSX.

CSV and XLSX inputs hold either one scenario per row (an "activities" column
with ">"-separated names) or an event log (case and activity columns).

Examples:
  o2csim batch scenarios.json -o results.parquet
  o2csim batch events.csv -o results.xlsx
  cat scenarios.jsonl | o2csim batch - --input-format jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVarP(&batchOutput, "output", "o", "-", "Output file (- for stdout)")
	f.StringVar(&batchInputFormat, "input-format", "", "Input format: json, jsonl, csv, xlsx (default: from extension)")
	f.StringVarP(&batchFormat, "format", "f", "", "Output format: json, parquet, xlsx (default: from extension)")
	f.StringVar(&batchCompression, "compression", "snappy", "Parquet compression: none, snappy, gzip, zstd")
	f.StringVarP(&batchDelimiter, "delimiter", "d", ",", "CSV delimiter")
	f.BoolVar(&batchNoProgress, "no-progress", false, "Disable the progress bar")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	input := args[0]
	inFormat := parser.ParseFormat(batchInputFormat)
	if batchInputFormat == "" {
		inFormat = parser.FormatFromPath(input)
	}
	if inFormat == parser.FormatUnknown {
		return fmt.Errorf("cannot infer input format of %s, use --input-format", input)
	}

	outFormat := strings.ToLower(batchFormat)
	if outFormat == "" {
		outFormat = validation.FormatFromPath(batchOutput)
	}
	if err := validation.ValidateFormat(outFormat); err != nil {
		return err
	}
	if err := validation.ValidateOutputPath(batchOutput); err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if input != "-" {
		path, err := validation.ValidateFilePath(input)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	pcfg := parser.DefaultConfig()
	if batchDelimiter != "" {
		pcfg.Delimiter = []rune(batchDelimiter)[0]
	}
	reqs, err := parser.Parse(ctx, r, inFormat, pcfg)
	if err != nil {
		return err
	}

	_, e, cleanup, err := setup(ctx, quietLogger("engine"))
	if err != nil {
		return err
	}
	defer cleanup()

	var progress engine.ProgressFunc
	if !batchNoProgress {
		bar := tui.ShowProgress(os.Stderr, len(reqs), "Simulating")
		progress = func(done, total int) { bar.Set(done) }
		defer bar.Finish()
	}

	start := time.Now()
	items, err := e.SimulateBatch(ctx, reqs, progress)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	var out io.Writer = os.Stdout
	if batchOutput != "-" {
		f, err := os.Create(batchOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	wcfg := writer.DefaultConfig()
	wcfg.Compression = writer.ParseCompression(batchCompression)
	w, err := writer.New(outFormat, out, wcfg)
	if err != nil {
		return err
	}
	if err := writer.WriteAll(ctx, w, writer.Rows(reqs, items)); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	report := &tui.BatchReport{
		Total:    len(items),
		Degraded: e.Degraded(),
		Duration: elapsed,
	}
	if batchOutput != "-" {
		report.OutputPath = batchOutput
	}
	for _, it := range items {
		switch {
		case !it.OK():
			report.Failed++
			if verbose {
				fmt.Fprintf(os.Stderr, "scenario %d: %s\n", it.Index, it.Error)
			}
		default:
			report.Succeeded++
			if it.Result.IsBaseline {
				report.Baseline++
			}
		}
	}
	tui.PrintBatchReport(os.Stderr, report)
	return nil
}
