package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/optimizer"
)

type annealFlags struct {
	dir         string
	out         string
	iterations  int
	temperature float64
	cooling     float64
	timeout     time.Duration
	seed        int64
	verbose     bool
}

func newAnnealCommand() *cobra.Command {
	flags := &annealFlags{}

	cmd := &cobra.Command{
		Use:   "anneal",
		Short: "Run the institution-wide annealer over CSV fixtures",
		Long: `Loads sections.csv, blocks.csv, classrooms.csv and professors.csv
from the fixture directory, runs simulated annealing and writes the
resulting assignments as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnneal(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.dir, "dir", "d", ".", "fixture directory")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&flags.iterations, "iterations", 10000, "maximum iterations")
	cmd.Flags().Float64Var(&flags.temperature, "temperature", 1000, "initial temperature")
	cmd.Flags().Float64Var(&flags.cooling, "cooling", 0.995, "cooling rate")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "wall-clock limit")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "random seed (0 = time-based)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log search progress")

	return cmd
}

func runAnneal(cmd *cobra.Command, flags *annealFlags) error {
	data, err := loadFixtures(flags.dir)
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}

	log := zap.NewNop()
	if flags.verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}

	problem := optimizer.InstitutionProblem{
		Sections:   data.Sections,
		Classrooms: data.Classrooms,
		Professors: data.Professors,
		Catalog:    data.Blocks,
	}
	cfg := optimizer.AnnealConfig{
		MaxIterations:      flags.iterations,
		InitialTemperature: flags.temperature,
		CoolingRate:        flags.cooling,
		Timeout:            flags.timeout,
		Seed:               flags.seed,
	}

	annealer, err := optimizer.NewAnnealer(problem, cfg, optimizer.DefaultWeights(), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	result := annealer.Run(ctx)

	fmt.Fprintf(cmd.ErrOrStderr(), "placed %d/%d sections, cost %.0f, %d iterations in %s\n",
		len(result.Assignments), len(data.Sections), result.Cost, result.Iterations, time.Since(started).Round(time.Millisecond))

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')

	if flags.out == "" {
		_, err = cmd.OutOrStdout().Write(encoded)
		return err
	}
	return os.WriteFile(flags.out, encoded, 0o644)
}
