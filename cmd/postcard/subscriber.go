package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/postcard/internal/subscriber"
)

var (
	subscriberName   string
	subscriberStatus string
	subscriberSearch string
	subscriberLimit  int
)

var subscriberCmd = &cobra.Command{
	Use:     "subscriber",
	Aliases: []string{"subscribers"},
	Short:   "Subscriber management commands",
}

var subscriberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribers",
	RunE:  runSubscriberList,
}

var subscriberAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubscriberAdd,
}

var subscriberImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import subscribers from CSV (email,name,status)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubscriberImport,
}

var subscriberStatusCmd = &cobra.Command{
	Use:   "status <email> <active|inactive>",
	Short: "Change a subscriber's status",
	Args:  cobra.ExactArgs(2),
	RunE:  runSubscriberStatus,
}

var subscriberRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubscriberRemove,
}

func init() {
	subscriberListCmd.Flags().StringVar(&subscriberStatus, "status", "", "filter by status")
	subscriberListCmd.Flags().StringVar(&subscriberSearch, "search", "", "search email and name")
	subscriberListCmd.Flags().IntVar(&subscriberLimit, "limit", 100, "maximum rows")

	subscriberAddCmd.Flags().StringVar(&subscriberName, "name", "", "display name")

	subscriberCmd.AddCommand(
		subscriberListCmd,
		subscriberAddCmd,
		subscriberImportCmd,
		subscriberStatusCmd,
		subscriberRemoveCmd,
	)
	rootCmd.AddCommand(subscriberCmd)
}

func getSubscriberStorage() (*subscriber.Storage, func(), error) {
	stores, db, err := openStores()
	if err != nil {
		return nil, nil, err
	}
	return stores.Subscribers, func() { db.Close() }, nil
}

func runSubscriberList(cmd *cobra.Command, args []string) error {
	storage, cleanup, err := getSubscriberStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	filter := subscriber.ListFilter{Search: subscriberSearch, Limit: subscriberLimit}
	if subscriberStatus != "" {
		filter.Status = subscriber.ParseStatus(subscriberStatus)
	}

	list, err := storage.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list subscribers: %w", err)
	}
	counts, err := storage.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count subscribers: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tNAME\tSTATUS\tADDED")
	for _, sub := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			sub.Email,
			sub.Name,
			sub.Status,
			sub.CreatedAt.Format("2006-01-02"),
		)
	}
	w.Flush()

	fmt.Printf("\nActive: %d, inactive: %d\n", counts[subscriber.StatusActive], counts[subscriber.StatusInactive])
	return nil
}

func runSubscriberAdd(cmd *cobra.Command, args []string) error {
	storage, cleanup, err := getSubscriberStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	sub := &subscriber.Subscriber{Email: args[0], Name: subscriberName}
	if err := storage.Add(cmd.Context(), sub); err != nil {
		return fmt.Errorf("failed to add subscriber: %w", err)
	}

	fmt.Printf("Subscriber %s added\n", sub.Email)
	return nil
}

func runSubscriberImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	storage, cleanup, err := getSubscriberStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := storage.ImportCSV(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("failed to import subscribers: %w", err)
	}

	fmt.Printf("Imported %d of %d rows (%d skipped)\n", result.Imported, result.Total, result.Skipped)
	for _, msg := range result.Errors {
		fmt.Printf("  %s\n", msg)
	}
	return nil
}

func runSubscriberStatus(cmd *cobra.Command, args []string) error {
	status := subscriber.Status(args[1])
	if status != subscriber.StatusActive && status != subscriber.StatusInactive {
		return fmt.Errorf("status must be active or inactive")
	}

	storage, cleanup, err := getSubscriberStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	sub, err := findSubscriber(cmd, storage, args[0])
	if err != nil {
		return err
	}
	if _, err := storage.SetStatus(cmd.Context(), sub.ID, status); err != nil {
		return fmt.Errorf("failed to update subscriber: %w", err)
	}

	fmt.Printf("Subscriber %s is now %s\n", sub.Email, status)
	return nil
}

func runSubscriberRemove(cmd *cobra.Command, args []string) error {
	storage, cleanup, err := getSubscriberStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	sub, err := findSubscriber(cmd, storage, args[0])
	if err != nil {
		return err
	}
	if err := storage.Delete(cmd.Context(), sub.ID); err != nil {
		return fmt.Errorf("failed to remove subscriber: %w", err)
	}

	fmt.Printf("Subscriber %s removed\n", sub.Email)
	return nil
}

func findSubscriber(cmd *cobra.Command, storage *subscriber.Storage, addr string) (*subscriber.Subscriber, error) {
	sub, err := storage.GetByEmail(cmd.Context(), addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("subscriber not found: %s", addr)
	}
	return sub, nil
}
