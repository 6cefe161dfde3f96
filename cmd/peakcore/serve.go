package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

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
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/service"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/slicegen"
)

type serveFlags struct {
	addr        string
	samplesFile string
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection pipeline over HTTP (POST /runs, GET /runs/{id}/progress, /groups)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(f)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&f.samplesFile, "samples", "", "JSON file with an array of msdata.MemorySample (required)")
	cmd.MarkFlagRequired("samples")
	return cmd
}

func runServe(f *serveFlags) error {
	samples, err := loadSamples(f.samplesFile)
	if err != nil {
		return fmt.Errorf("loading samples: %w", err)
	}

	runner := func(ctx context.Context, p *params.Parameters, compounds []*mzmodel.Compound, prog progress.Sink) ([]*peakgroup.Group, error) {
		return runOnce(ctx, p, compounds, samples, prog)
	}

	srv := service.New(runner)
	log.Printf("peakcore serving on %s", f.addr)
	return http.ListenAndServe(f.addr, srv.Routes())
}

// runOnce is the service-side copy of detect() in detect.go, with the
// same signature and the same steps; runServe's Runner closure binds
// the sample set loaded at startup. Both delegate to the same
// detector/identifier/metagroup packages.
func runOnce(ctx context.Context, p *params.Parameters, compounds []*mzmodel.Compound,
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
