package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gearshelf/api/internal/model"
)

func NewInventoryCmd(deps *Dependencies) *cobra.Command {
	var filter model.InventoryFilter

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List equipment units",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := deps.Backend.ListInventory(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printRows(cmd.OutOrStdout(), []string{"inventory_id", "sku_id", "barcode", "condition", "status", "location"}, resp.Inventory)
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status (available, booked, maintenance, retired)")
	cmd.Flags().StringVar(&filter.Condition, "condition", "", "Filter by condition")
	cmd.Flags().StringVar(&filter.SKUID, "sku", "", "Filter by equipment type ID")

	return cmd
}

func NewSKUsCmd(deps *Dependencies) *cobra.Command {
	var filter model.SKUFilter

	cmd := &cobra.Command{
		Use:   "skus",
		Short: "List equipment types",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := deps.Backend.ListSKUs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			columns := []string{"sku_id", "name", "brand", "model", "category"}
			out := cmd.OutOrStdout()
			if !filter.GroupByCategory {
				return printRows(out, columns, resp.SKUs)
			}

			categories := make([]string, 0, len(resp.SKUsByCategory))
			for c := range resp.SKUsByCategory {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			for _, c := range categories {
				fmt.Fprintf(out, "%s\n", c)
				if err := printRows(out, columns, resp.SKUsByCategory[c]); err != nil {
					return err
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Category, "category", "", "Filter by category")
	cmd.Flags().BoolVar(&filter.GroupByCategory, "group", false, "Group by category")

	return cmd
}

func printRows(w io.Writer, columns []string, rows []map[string]any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, c := range columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
	for _, row := range rows {
		for i, c := range columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			if v, ok := row[c]; ok && v != nil {
				fmt.Fprint(tw, v)
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
