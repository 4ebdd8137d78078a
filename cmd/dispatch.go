package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/carrierchain/core/dispatch"
)

var (
	maxCarriers int
	minScore    int
)

var generateCmd = &cobra.Command{
	Use:   "generate <order-id>",
	Short: "Print the dispatch chain an order would get, without persisting it",
	Args:  cobra.ExactArgs(1),
	RunE:  generateChain,
}

var startCmd = &cobra.Command{
	Use:   "start <order-id>",
	Short: "Generate the chain of an order and offer it to the first carrier",
	Args:  cobra.ExactArgs(1),
	RunE:  startDispatch,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single timeout sweep and escalate exhausted orders",
	Args:  cobra.NoArgs,
	RunE:  sweepOnce,
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, startCmd} {
		c.Flags().IntVar(&maxCarriers, "max-carriers", 0, "override the chain length")
		c.Flags().IntVar(&minScore, "min-score", 0, "override the minimum carrier score")
	}
	rootCmd.AddCommand(generateCmd, startCmd, sweepCmd)
}

func options() dispatch.Options {
	return dispatch.Options{MaxCarriers: maxCarriers, MinScore: minScore}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func generateChain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	order, err := svc.Store.FindOrder(ctx, args[0])
	if err != nil {
		return fmt.Errorf("find order: %w", err)
	}
	res := svc.Generator.Generate(ctx, order, options())
	if res.Error != nil {
		return res.Error
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func startDispatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.Manager.StartDispatch(ctx, args[0], options())
	if res.Error != nil {
		return res.Error
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func sweepOnce(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.Sweeper.RunOnce(ctx)
	if res.Error != nil {
		return res.Error
	}
	return printJSON(cmd.OutOrStdout(), res)
}
