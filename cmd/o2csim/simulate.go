package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/edits"
	"github.com/o2csim/o2csim/pkg/parser"
	"github.com/o2csim/o2csim/pkg/tui"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// Simulate flags
var (
	activitiesFlag []string
	addFlag        string
	afterFlag      string
	beforeFlag     string
	removeFlags    []string
	setTimeFlags   []string
	setCostFlags   []string
	editsFile      string
	entitiesFile   string
	usersFlag      []string
	itemsFlag      []string
	suppliersFlag  []string
	jsonOutput     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate one process scenario",
	Long: `Simulate one scenario and compare its KPIs with the baseline.

The scenario starts from --activities, or the baseline process when omitted,
and then applies --edits, --remove, --add and --set-time/--set-cost in that order.

Examples:
  o2csim simulate
  o2csim simulate --remove "Approve Order"
  o2csim simulate --add "Process Return Request" --after "Generate Pick List"
  o2csim simulate --activities "Receive Customer Order,Perform Credit Check,Reject Order"
  o2csim simulate --set-time "Ship Order=6" --users U001,U002 --items I003:2:80
  o2csim simulate --edits changes.json --entities session.yaml --json`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringSliceVarP(&activitiesFlag, "activities", "a", nil, "Comma-separated activity sequence (default: baseline)")
	f.StringVar(&addFlag, "add", "", "Activity to add")
	f.StringVar(&afterFlag, "after", "", "Insert --add after this activity")
	f.StringVar(&beforeFlag, "before", "", "Insert --add before this activity")
	f.StringArrayVar(&removeFlags, "remove", nil, "Activity to remove (repeatable)")
	f.StringArrayVar(&setTimeFlags, "set-time", nil, "Activity=hours override (repeatable)")
	f.StringArrayVar(&setCostFlags, "set-cost", nil, "Activity=cost override (repeatable)")
	f.StringVar(&editsFile, "edits", "", "JSON file with a list of edits")
	f.StringVar(&entitiesFile, "entities", "", "JSON or YAML entity assignment file")
	f.StringSliceVar(&usersFlag, "users", nil, "Assigned users (U001,...)")
	f.StringSliceVar(&itemsFlag, "items", nil, "Assigned items as id:quantity:line_total")
	f.StringSliceVar(&suppliersFlag, "suppliers", nil, "Assigned suppliers (S001,...)")
	f.BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	g, err := scenarioFromFlags()
	if err != nil {
		return err
	}
	ents, err := entitiesFromFlags()
	if err != nil {
		return err
	}

	_, e, cleanup, err := setup(ctx, quietLogger("engine"))
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := e.Simulate(ctx, requestFor(g, ents))
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if verbose {
		fmt.Println()
		tui.PrintActivities(os.Stdout, g.Activities)
	}
	tui.PrintResult(os.Stdout, res)
	return nil
}

// scenarioFromFlags builds the graph and applies the requested edits.
func scenarioFromFlags() (model.ProcessGraph, error) {
	g := model.ProcessGraph{Activities: vocab.BaselineActivities()}
	if len(activitiesFlag) > 0 {
		g.Activities = trimAll(activitiesFlag)
	}

	var list []edits.Edit
	if editsFile != "" {
		data, err := os.ReadFile(editsFile)
		if err != nil {
			return g, fmt.Errorf("read edits: %w", err)
		}
		fromFile, err := edits.Decode(data)
		if err != nil {
			return g, err
		}
		list = append(list, fromFile...)
	}
	for _, name := range removeFlags {
		list = append(list, edits.RemoveStep{Activity: name})
	}
	if addFlag != "" {
		list = append(list, edits.AddStep{Activity: addFlag, After: afterFlag, Before: beforeFlag})
	} else if afterFlag != "" || beforeFlag != "" {
		return g, fmt.Errorf("--after and --before need --add")
	}
	for _, kv := range setTimeFlags {
		name, v, err := parseAssignment(kv)
		if err != nil {
			return g, fmt.Errorf("--set-time: %w", err)
		}
		list = append(list, edits.ModifyKPI{Activity: name, AvgTimeHours: &v})
	}
	for _, kv := range setCostFlags {
		name, v, err := parseAssignment(kv)
		if err != nil {
			return g, fmt.Errorf("--set-cost: %w", err)
		}
		list = append(list, edits.ModifyKPI{Activity: name, Cost: &v})
	}

	out, err := edits.Apply(g, list...)
	if err != nil {
		return g, err
	}
	if verbose {
		for _, e := range list {
			fmt.Fprintln(os.Stderr, "edit:", edits.Describe(e))
		}
	}
	return out, nil
}

func parseAssignment(kv string) (string, float64, error) {
	name, val, ok := strings.Cut(kv, "=")
	if !ok {
		return "", 0, fmt.Errorf("expected Activity=value, got %q", kv)
	}
	var v float64
	if _, err := fmt.Sscanf(strings.TrimSpace(val), "%g", &v); err != nil {
		return "", 0, fmt.Errorf("invalid number in %q", kv)
	}
	return strings.TrimSpace(name), v, nil
}

// entitiesFromFlags loads --entities or builds an assignment from the
// --users, --items and --suppliers flags. With none set the assignment is empty.
func entitiesFromFlags() (*model.EntityAssignment, error) {
	if entitiesFile != "" {
		data, err := os.ReadFile(entitiesFile)
		if err != nil {
			return nil, fmt.Errorf("read entities: %w", err)
		}
		var a model.EntityAssignment
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("parse entities %s: %w", entitiesFile, err)
		}
		return &a, nil
	}

	a := &model.EntityAssignment{
		Users:     trimAll(usersFlag),
		Suppliers: trimAll(suppliersFlag),
	}
	for _, spec := range itemsFlag {
		it, err := parser.ParseItem(spec)
		if err != nil {
			return nil, fmt.Errorf("--items %q: %w", spec, err)
		}
		a.Items = append(a.Items, it)
	}
	return a, nil
}

func requestFor(g model.ProcessGraph, ents *model.EntityAssignment) model.SimulateRequest {
	return model.SimulateRequest{
		Activities:       g.Activities,
		KPIOverrides:     g.KPIOverrides,
		EntityAssignment: ents,
	}
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
