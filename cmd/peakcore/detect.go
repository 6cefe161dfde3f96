package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/detector"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/groupfilter"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/identifier"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/metagroup"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/msdata"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakgroup"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/progress"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/slicegen"
)

type detectFlags struct {
	paramsFile    string
	samplesFile   string
	compoundsFile string
	outputFile    string
}

func newDetectCmd() *cobra.Command {
	f := &detectFlags{}
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run one detection pass over a sample set and write the resulting group tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(f)
		},
	}
	cmd.Flags().StringVar(&f.paramsFile, "params", "", "YAML Parameters file (defaults used if omitted)")
	cmd.Flags().StringVar(&f.samplesFile, "samples", "", "JSON file with an array of msdata.MemorySample (required)")
	cmd.Flags().StringVar(&f.compoundsFile, "compounds", "", "JSON compound library file (omit for untargeted detection)")
	cmd.Flags().StringVar(&f.outputFile, "out", "groups.json", "output file for the resulting group tree")
	cmd.MarkFlagRequired("samples")
	return cmd
}

func runDetect(f *detectFlags) error {
	p := params.Default()
	if f.paramsFile != "" {
		loaded, err := params.LoadFile(f.paramsFile)
		if err != nil {
			return err
		}
		p = loaded
	}

	samples, err := loadSamples(f.samplesFile)
	if err != nil {
		return fmt.Errorf("loading samples: %w", err)
	}

	compounds, err := loadCompounds(f.compoundsFile)
	if err != nil {
		return fmt.Errorf("loading compounds: %w", err)
	}

	groups, err := detect(context.Background(), p, compounds, samples, progress.NewLogger(log.Default()))
	if err != nil {
		return err
	}

	return writeGroups(f.outputFile, groups)
}

func loadSamples(filename string) ([]msdata.EicSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mem []*msdata.MemorySample
	if err := json.NewDecoder(f).Decode(&mem); err != nil {
		return nil, err
	}
	out := make([]msdata.EicSource, len(mem))
	for i, s := range mem {
		out[i] = s
	}
	return out, nil
}

func loadCompounds(filename string) ([]*mzmodel.Compound, error) {
	if filename == "" {
		return nil, nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var compounds []*mzmodel.Compound
	if err := json.NewDecoder(f).Decode(&compounds); err != nil {
		return nil, err
	}
	return compounds, nil
}

func writeGroups(filename string, groups []*peakgroup.Group) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(groups)
}

// detect wires together the full pipeline for one run: Detector builds
// untargeted/targeted groups, Identifier folds in target-library
// matches when compounds were supplied, and MetaGrouper nests
// isotope/adduct children under their parents.
func detect(ctx context.Context, p *params.Parameters, compounds []*mzmodel.Compound,
	samples []msdata.EicSource, prog progress.Sink) ([]*peakgroup.Group, error) {

	det, err := detector.New(samples)
	if err != nil {
		return nil, err
	}
	defer det.Close()
	det.Progress = prog

	gen := &slicegen.Generator{}
	groups, err := det.Run(ctx, gen, compounds, p)
	if err != nil {
		return nil, err
	}

	gf, err := groupfilter.New()
	if err != nil {
		return nil, err
	}
	defer gf.Close()

	if len(compounds) > 0 {
		idf := identifier.New(gf, prog)
		targetSlices, err := gen.Generate(compounds, p)
		if err != nil {
			return nil, err
		}
		groups = idf.Annotate(groups, targetSlices, p, det.AllocID())
	}

	return metagroup.Run(groups, p, gf, sampleIDs(samples), det.AverageScanTime()), nil
}

func sampleIDs(samples []msdata.EicSource) []string {
	ids := make([]string, len(samples))
	for i, s := range samples {
		ids[i] = s.ID()
	}
	return ids
}
