package main

import (
	"fmt"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/mhd-core/internal/domain"
	"github.com/DaDevFox/task-systems/mhd-core/internal/query"
	"github.com/DaDevFox/task-systems/mhd-core/internal/scheduler"
	"github.com/DaDevFox/task-systems/mhd-core/internal/service"
)

const itemSelectionFailed = "item selection failed"

type itemFlags struct {
	name     string
	sku      string
	category string
	supplier string
	lot      string
	quantity int
	received string
	expiry   string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Item name")
	cmd.Flags().StringVarP(&f.expiry, "expiry", "e", "", "Best-before date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.sku, "sku", "", "Stock keeping unit")
	cmd.Flags().StringVar(&f.category, "category", "", "Category")
	cmd.Flags().StringVar(&f.supplier, "supplier", "", "Supplier")
	cmd.Flags().StringVar(&f.lot, "lot", "", "Lot or batch number")
	cmd.Flags().IntVarP(&f.quantity, "quantity", "q", domain.DefaultQuantity, "Number of units")
	cmd.Flags().StringVar(&f.received, "received", "", "Date received (YYYY-MM-DD)")
}

// apply overlays the flags the user actually set onto in
func (f *itemFlags) apply(cmd *cobra.Command, in service.ItemInput) service.ItemInput {
	changed := cmd.Flags().Changed
	if changed("name") {
		in.Name = f.name
	}
	if changed("expiry") {
		in.ExpiryDate = f.expiry
	}
	if changed("sku") {
		in.SKU = f.sku
	}
	if changed("category") {
		in.Category = f.category
	}
	if changed("supplier") {
		in.Supplier = f.supplier
	}
	if changed("lot") {
		in.Lot = f.lot
	}
	if changed("quantity") {
		in.Quantity = f.quantity
	}
	if changed("received") {
		in.ReceivedDate = f.received
	}
	return in
}

func inputFromItem(item domain.Item) service.ItemInput {
	return service.ItemInput{
		ID:           item.ID,
		Name:         item.Name,
		SKU:          item.SKU,
		Category:     item.Category,
		Supplier:     item.Supplier,
		Lot:          item.Lot,
		Quantity:     item.Quantity,
		ReceivedDate: item.ReceivedDate,
		ExpiryDate:   item.ExpiryDate,
	}
}

func newAddCommand() *cobra.Command {
	var flags itemFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := flags.apply(cmd, service.ItemInput{Quantity: domain.DefaultQuantity})

			item, err := app.service.UpsertItem(cmd.Context(), in)
			if err != nil && item.ID == "" {
				return errors.Wrap(err, "add item operation failed")
			}
			app.refreshResolver()

			fmt.Printf("Created item: %s (ID: %s, short: %s)\n", item.Name, item.ID, app.resolver.MinimumUniquePrefix(item.ID))
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

func newEditCommand() *cobra.Command {
	var flags itemFlags

	cmd := &cobra.Command{
		Use:   "edit [item-id-or-prefix]",
		Short: "Change an item; unset flags keep their value. Editing re-arms its alerts.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := resolveOrSelect(args)
			if err != nil {
				return err
			}

			item, err := app.service.UpsertItem(cmd.Context(), flags.apply(cmd, inputFromItem(current)))
			if err != nil && item.ID == "" {
				return errors.Wrapf(err, "edit operation failed for item '%s'", current.ID)
			}

			fmt.Printf("Updated item: %s (ID: %s)\n", item.Name, item.ID)
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete [item-id-or-prefix]",
		Aliases: []string{"rm"},
		Short:   "Delete an item",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := resolveOrSelect(args)
			if err != nil {
				return err
			}

			if err := app.service.DeleteItem(cmd.Context(), item.ID); err != nil {
				return errors.Wrapf(err, "delete operation failed for item '%s'", item.ID)
			}

			fmt.Printf("Deleted item: %s (ID: %s)\n", item.Name, item.ID)
			return nil
		},
	}

	return cmd
}

func newListCommand() *cobra.Command {
	var search, status, sortKey string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List items with their status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := query.ParseFilter(status)
			if err != nil {
				return err
			}
			key, err := query.ParseSortKey(sortKey)
			if err != nil {
				return err
			}

			items := app.service.List(service.ListOptions{Search: search, Filter: filter, Sort: key})
			summary := app.service.Summary()

			fmt.Printf("Items (%d shown, %d total: %d ok, %d soon, %d expired):\n",
				len(items), summary.Total, summary.OK, summary.Soon, summary.Expired)
			for _, item := range items {
				printItemLine(item)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive text matched against name, sku, category, supplier and lot")
	cmd.Flags().StringVar(&status, "status", "all", "Filter by status (all, ok, soon, expired)")
	cmd.Flags().StringVar(&sortKey, "sort", string(query.SortMHDAsc), "Sort key ("+joinSortKeys()+")")

	return cmd
}

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate all items once and send due alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := app.service.Evaluate(cmd.Context(), scheduler.TriggerManual)

			if len(due) == 0 {
				fmt.Println("No new alerts.")
			}
			for _, alert := range due {
				fmt.Printf("  [%s] %s: %s\n", alert.Kind, alert.Title, alert.Body)
			}
			return err
		},
	}

	return cmd
}

func printItemLine(item domain.AnnotatedItem) {
	expiry := item.ExpiryDate
	if expiry == "" {
		expiry = "-"
	}

	var details []string
	if item.Lot != "" {
		details = append(details, "lot "+item.Lot)
	}
	if item.Quantity > 1 {
		details = append(details, fmt.Sprintf("%d units", item.Quantity))
	}
	if item.Supplier != "" {
		details = append(details, item.Supplier)
	}

	line := fmt.Sprintf("  %-8s %-7s %-10s %4s  %s",
		app.resolver.MinimumUniquePrefix(item.ID), item.Status, expiry, item.DaysRemaining, item.Name)
	if len(details) > 0 {
		line += " (" + strings.Join(details, ", ") + ")"
	}
	fmt.Println(line)
}

func joinSortKeys() string {
	keys := make([]string, len(query.SortKeys))
	for i, key := range query.SortKeys {
		keys[i] = string(key)
	}
	return strings.Join(keys, ", ")
}

// resolveOrSelect resolves args[0] or, without arguments, lets the user pick an item
func resolveOrSelect(args []string) (domain.Item, error) {
	if len(args) == 1 {
		return app.resolver.Item(args[0])
	}
	return selectItemInteractively()
}

func selectItemInteractively() (domain.Item, error) {
	items := app.service.List(service.ListOptions{Sort: query.SortMHDAsc})
	if len(items) == 0 {
		return domain.Item{}, errors.New("no items found for selection")
	}

	idx, err := fuzzyfinder.Find(items,
		func(i int) string {
			return fmt.Sprintf("%s  %s  %s", items[i].Name, items[i].ExpiryDate, items[i].Lot)
		},
		fuzzyfinder.WithPromptString("item> "),
		fuzzyfinder.WithPreviewWindow(func(i, width, height int) string {
			if i < 0 {
				return ""
			}
			item := items[i]
			return fmt.Sprintf("%s\n\nID:       %s\nStatus:   %s\nExpiry:   %s\nDays:     %s\nSKU:      %s\nCategory: %s\nSupplier: %s\nLot:      %s\nQuantity: %d",
				item.Name, item.ID, item.Status, item.ExpiryDate, item.DaysRemaining,
				item.SKU, item.Category, item.Supplier, item.Lot, item.Quantity)
		}),
	)
	if err != nil {
		return domain.Item{}, errors.Wrap(err, itemSelectionFailed)
	}
	return items[idx].Item, nil
}
