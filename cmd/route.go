package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foodbridge/dispatch/app"
	"github.com/foodbridge/dispatch/config"
	"github.com/foodbridge/dispatch/core/routing"
	"github.com/foodbridge/dispatch/infra/logger"
)

var routeAuctionID string

var routeCmd = &cobra.Command{
	Use:   "route [pickup-request-id]",
	Short: "Solve and apply routes for a pickup request",
	Args:  cobra.ExactArgs(1),
	RunE:  solveRoutes,
}

func init() {
	routeCmd.Flags().StringVar(&routeAuctionID, "auction", "", "restrict volunteers to the bidders of this auction")
	rootCmd.AddCommand(routeCmd)
}

func solveRoutes(cmd *cobra.Command, args []string) error {
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
			logger.New("route-command").Errorf("service close: %v", err)
		}
	}()

	result, err := executeRoutes(ctx, svc, args[0])
	if err != nil {
		return err
	}
	if len(result.Routes) == 0 {
		cmd.Printf("no feasible routes for %s\n", result.PickupRequestID)
		return nil
	}
	for _, r := range result.Routes {
		stops := make([]string, len(r.Stops))
		for i, s := range r.Stops {
			stops[i] = fmt.Sprintf("%s(%d)", s.LocationID, s.Load)
		}
		cmd.Printf("%s: %s\n", r.VolunteerID, strings.Join(stops, " -> "))
	}
	for _, d := range result.Applied.Deliveries {
		cmd.Printf("delivered %d x %s to %s by %s\n", d.Quantity, d.VariantID, d.DropOffID, d.VolunteerID)
	}
	return nil
}

func executeRoutes(ctx context.Context, svc *app.Service, pickupRequestID string) (*routing.Result, error) {
	if routeAuctionID != "" {
		return svc.Router.ExecuteForAuction(ctx, routeAuctionID)
	}
	return svc.Router.Execute(ctx, pickupRequestID)
}
