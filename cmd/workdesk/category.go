package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCategoryCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage article categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Create a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			category, err := a.categorySvc.Create(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created category %d: %s\n", category.ID, category.Name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			categories, err := a.categorySvc.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range categories {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", c.ID, c.Name)
			}
			return nil
		},
	})

	return cmd
}
