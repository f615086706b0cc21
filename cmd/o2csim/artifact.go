package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/artifactstore"
	"github.com/o2csim/o2csim/pkg/predictor"
)

var artifactOut string

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Inspect, validate and publish model artifacts",
	Long: `Work with model artifacts stored on disk, in S3 or in Redis.

Examples:
  o2csim artifact inspect model.json
  o2csim artifact validate s3://models/o2c/v3.json
  o2csim artifact reference --out redis://localhost:6379/o2csim:model`,
}

var artifactInspectCmd = &cobra.Command{
	Use:   "inspect <uri>",
	Short: "Show artifact metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtifactInspect,
}

var artifactValidateCmd = &cobra.Command{
	Use:   "validate <uri>",
	Short: "Check that an artifact loads",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtifactValidate,
}

var artifactReferenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Publish the built-in reference artifact",
	RunE:  runArtifactReference,
}

func init() {
	artifactReferenceCmd.Flags().StringVarP(&artifactOut, "out", "o", "", "Destination URI")
	artifactReferenceCmd.MarkFlagRequired("out")

	artifactCmd.AddCommand(artifactInspectCmd, artifactValidateCmd, artifactReferenceCmd)
	rootCmd.AddCommand(artifactCmd)
}

// readArtifact fetches uri using the configured store settings.
func readArtifact(cmd *cobra.Command, uri string) ([]byte, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := artifactstore.Open(cmd.Context(), uri, cfg.StoreOptions())
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return artifactstore.ReadAll(cmd.Context(), st)
}

func runArtifactInspect(cmd *cobra.Command, args []string) error {
	data, err := readArtifact(cmd, args[0])
	if err != nil {
		return err
	}
	a, err := predictor.DecodeArtifact(bytes.NewReader(data))
	if err != nil {
		return err
	}

	fmt.Printf("Model version:  %s\n", a.ModelVersion)
	fmt.Printf("Format version: %d\n", a.Version)
	fmt.Printf("Feature dim:    %d\n", a.FeatureDim)
	fmt.Printf("Size:           %d bytes\n", len(data))

	layers := make([]string, len(a.Layers))
	for i, l := range a.Layers {
		layers[i] = l.Type
	}
	fmt.Printf("Layers:         %s\n", strings.Join(layers, " > "))

	heads := make([]string, len(a.Heads))
	for i, h := range a.Heads {
		heads[i] = h.KPI
	}
	fmt.Printf("Heads:          %s\n", strings.Join(heads, ", "))

	if len(a.BaselineKPIs) > 0 {
		fmt.Println("Baseline KPIs:")
		for _, k := range model.AllKPIs {
			if v, ok := a.BaselineKPIs[k.String()]; ok {
				fmt.Printf("  %-24s %8.2f%s\n", k.Label(), v, k.Unit())
			}
		}
	}

	if err := a.Validate(); err != nil {
		fmt.Printf("Status:         invalid (%v)\n", err)
		return nil
	}
	fmt.Println("Status:         valid")
	return nil
}

func runArtifactValidate(cmd *cobra.Command, args []string) error {
	data, err := readArtifact(cmd, args[0])
	if err != nil {
		return err
	}
	m, err := predictor.Load(bytes.NewReader(data))
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s is valid (model %s, %d layers)\n", args[0], m.Version(), len(m.LayerNames()))
	return nil
}

func runArtifactReference(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := predictor.ReferenceArtifact().Encode(&buf); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	st, err := artifactstore.Open(cmd.Context(), artifactOut, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Put(cmd.Context(), buf.Bytes()); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %s (%d bytes) to %s\n", predictor.ReferenceModelVersion, buf.Len(), st.Name())
	return nil
}
