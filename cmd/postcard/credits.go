package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/postcard/internal/credits"
)

var (
	grantAmount int64
	grantTier   string
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Email credit commands",
}

var creditsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the credit balance and available tiers",
	RunE:  runCreditsShow,
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Add credits by amount or tier",
	RunE:  runCreditsGrant,
}

func init() {
	creditsGrantCmd.Flags().Int64Var(&grantAmount, "amount", 0, "number of credits")
	creditsGrantCmd.Flags().StringVar(&grantTier, "tier", "", "tier ID")
	creditsGrantCmd.MarkFlagsOneRequired("amount", "tier")
	creditsGrantCmd.MarkFlagsMutuallyExclusive("amount", "tier")

	creditsCmd.AddCommand(creditsShowCmd, creditsGrantCmd)
	rootCmd.AddCommand(creditsCmd)
}

func printBalance(b credits.Balance) {
	fmt.Printf("Total:     %d\n", b.Total)
	fmt.Printf("Used:      %d (%.1f%%)\n", b.Used, b.PercentUsed())
	fmt.Printf("Remaining: %d\n", b.Remaining())
}

func runCreditsShow(cmd *cobra.Command, args []string) error {
	stores, db, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := stores.Credits.Balance(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	printBalance(b)

	fmt.Println("\nTiers:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tCREDITS\tPRICE")
	for _, t := range credits.Tiers() {
		fmt.Fprintf(w, "  %s\t%d\t%s\n", t.ID, t.Credits, t.Price)
	}
	w.Flush()
	return nil
}

func runCreditsGrant(cmd *cobra.Command, args []string) error {
	stores, db, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	var b credits.Balance
	if grantTier != "" {
		b, err = stores.Credits.GrantTier(cmd.Context(), grantTier)
	} else {
		b, err = stores.Credits.Grant(cmd.Context(), grantAmount)
	}
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}

	fmt.Println("Credits granted")
	printBalance(b)
	return nil
}
