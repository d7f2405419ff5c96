package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foodbridge/dispatch/app"
	"github.com/foodbridge/dispatch/config"
	"github.com/foodbridge/dispatch/infra/logger"
)

var auctionCmd = &cobra.Command{
	Use:   "auction [auction-id]",
	Short: "Settle one auction and print the winner",
	Args:  cobra.ExactArgs(1),
	RunE:  processAuction,
}

func init() {
	rootCmd.AddCommand(auctionCmd)
}

func processAuction(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("auction-command").Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Coordinator.Process(ctx, args[0])
	if err != nil {
		return fmt.Errorf("process auction: %w", err)
	}
	if res.WinnerID == "" {
		cmd.Printf("auction %s closed without usable bids\n", res.AuctionID)
		return nil
	}
	cmd.Printf("auction %s won by %s\n", res.AuctionID, res.WinnerID)
	for _, b := range res.Bids {
		if b.Score == nil {
			continue
		}
		cmd.Printf("  %s score=%.4f\n", b.VolunteerID, *b.Score)
	}
	return nil
}
