package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pricelens/backend/internal/app"
	"github.com/pricelens/backend/internal/domain"
)

var userID string

var searchCmd = &cobra.Command{
	Use:   "search <product name>",
	Short: "Compare prices for a product name",
	Example: `  pricelens search leche gloria 400g
  pricelens search "inca kola 1.5l" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withPipeline(func(ctx context.Context, a *app.App) error {
			result, err := a.Pricing.IdentifyAndPrice(ctx, domain.ResolveInput{FreeText: query, UserID: userID})
			return printResult(cmd, result, err)
		})
	},
}

var barcodeCmd = &cobra.Command{
	Use:   "barcode <code>",
	Short: "Identify a product by barcode and compare its prices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, a *app.App) error {
			result, err := a.Pricing.IdentifyAndPrice(ctx, domain.ResolveInput{Barcode: args[0], UserID: userID})
			return printResult(cmd, result, err)
		})
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <image file>",
	Short: "Identify a product from a photo and compare its prices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		barcode, _ := cmd.Flags().GetString("barcode")
		return withPipeline(func(ctx context.Context, a *app.App) error {
			result, err := a.Pricing.IdentifyAndPrice(ctx, domain.ResolveInput{
				Image:   image,
				Barcode: barcode,
				UserID:  userID,
			})
			return printResult(cmd, result, err)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withPipeline(func(ctx context.Context, a *app.App) error {
			if a.History == nil {
				return errors.New("history is disabled; set history.driver to postgres or sqlite")
			}
			entries, err := a.History.Recent(ctx, userID, limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), entries)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, barcodeCmd, identifyCmd, historyCmd} {
		c.Flags().StringVar(&userID, "user", "", "User ID recorded with the search")
	}
	identifyCmd.Flags().String("barcode", "", "Barcode printed on the package, if readable")
	historyCmd.Flags().Int("limit", 20, "Number of entries to show")
}

func printResult(cmd *cobra.Command, result *domain.PriceResult, err error) error {
	if err != nil && !(errors.Is(err, domain.ErrNoOffers) && result != nil) {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), result)
	}
	return printTable(cmd.OutOrStdout(), result)
}
