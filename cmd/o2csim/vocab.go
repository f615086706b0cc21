package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/tui"
	"github.com/o2csim/o2csim/pkg/vocab"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "List known activities, the baseline and historical variants",
	RunE:  runVocab,
}

func init() {
	rootCmd.AddCommand(vocabCmd)
}

func runVocab(cmd *cobra.Command, args []string) error {
	fmt.Println("Activities:")
	fmt.Printf("  %-28s %10s %8s\n", "NAME", "MINUTES", "COST")
	for _, a := range vocab.All() {
		fmt.Printf("  %-28s %10.0f %8.2f\n", a.Name, a.DefaultDurationMin, a.DefaultCost)
	}

	fmt.Println()
	fmt.Println("Baseline process:")
	tui.PrintActivities(os.Stdout, vocab.BaselineActivities())

	fmt.Println()
	fmt.Println("Baseline KPIs:")
	for _, k := range model.AllKPIs {
		fmt.Printf("  %-24s %8.2f%s\n", k.Label(), vocab.DefaultBaselineKPIs[k], k.Unit())
	}

	fmt.Println()
	fmt.Println("Variants:")
	for _, v := range vocab.KnownVariants() {
		fmt.Printf("  %-14s %s\n", v.Name, v.Description)
		fmt.Printf("  %-14s %s\n", "", strings.Join(v.Activities, " > "))
	}
	return nil
}
