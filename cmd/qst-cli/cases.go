package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/poker26/qdrant-search-tester/internal/cases"
)

func casesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Manage the test case suite",
	}
	cmd.AddCommand(casesListCmd())
	cmd.AddCommand(casesAddCmd())
	cmd.AddCommand(casesUpdateCmd())
	cmd.AddCommand(casesDeleteCmd())
	return cmd
}

func loadRegistry() (*cases.Registry, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return cases.Load(cfg.TestsFile)
}

func casesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all test cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}

			all := registry.All()
			if len(all) == 0 {
				fmt.Println("no test cases")
				return nil
			}
			for _, tc := range all {
				name := tc.Name
				if name == "" {
					name = "-"
				}
				fmt.Printf("%-24s %-30s expect=%s", tc.ID, name, strings.Join(tc.Expected(), ","))
				if tc.Category != "" {
					fmt.Printf(" [%s]", tc.Category)
				}
				if tc.MaxRank != nil {
					fmt.Printf(" max_rank=%d", *tc.MaxRank)
				}
				if tc.MinScore != nil {
					fmt.Printf(" min_score=%.2f", *tc.MinScore)
				}
				fmt.Println()
			}
			fmt.Printf("%d test cases\n", len(all))
			return nil
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func casesAddCmd() *cobra.Command {
	var tc cases.TestCase
	var maxRank int
	var minScore float64

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a test case to the suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("max-rank") {
				tc.MaxRank = &maxRank
			}
			if cmd.Flags().Changed("min-score") {
				tc.MinScore = &minScore
			}

			if err := registry.Add(tc); err != nil {
				return err
			}
			all := registry.All()
			fmt.Printf("added test case %s\n", all[len(all)-1].ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tc.ID, "id", "", "test case id (generated if empty)")
	cmd.Flags().StringVar(&tc.Name, "name", "", "display name")
	cmd.Flags().StringVarP(&tc.Query, "query", "q", "", "search query")
	cmd.Flags().StringVarP(&tc.ExpectedID, "expect", "e", "", "expected document id")
	cmd.Flags().StringSliceVar(&tc.ExpectedIDs, "expect-any", nil, "additional accepted document ids")
	cmd.Flags().StringVar(&tc.Category, "category", "", "grouping label")
	cmd.Flags().StringVar(&tc.SearchMode, "mode", "", "search mode: dense, sparse or hybrid")
	cmd.Flags().IntVar(&maxRank, "max-rank", 3, "maximum acceptable rank")
	cmd.Flags().Float64Var(&minScore, "min-score", 0.3, "minimum acceptable score")
	cmd.MarkFlagRequired("query")
	cmd.SilenceUsage = true
	return cmd
}

func casesUpdateCmd() *cobra.Command {
	var tc cases.TestCase
	var maxRank int
	var minScore float64

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update fields of an existing test case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}
			existing, ok := registry.Get(args[0])
			if !ok {
				return fmt.Errorf("test case not found: %s", args[0])
			}

			if cmd.Flags().Changed("name") {
				existing.Name = tc.Name
			}
			if cmd.Flags().Changed("query") {
				existing.Query = tc.Query
			}
			if cmd.Flags().Changed("expect") {
				existing.ExpectedID = tc.ExpectedID
			}
			if cmd.Flags().Changed("expect-any") {
				existing.ExpectedIDs = tc.ExpectedIDs
			}
			if cmd.Flags().Changed("category") {
				existing.Category = tc.Category
			}
			if cmd.Flags().Changed("mode") {
				existing.SearchMode = tc.SearchMode
			}
			if cmd.Flags().Changed("max-rank") {
				existing.MaxRank = &maxRank
			}
			if cmd.Flags().Changed("min-score") {
				existing.MinScore = &minScore
			}

			if err := registry.Update(existing); err != nil {
				return err
			}
			fmt.Printf("updated test case %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&tc.Name, "name", "", "display name")
	cmd.Flags().StringVarP(&tc.Query, "query", "q", "", "search query")
	cmd.Flags().StringVarP(&tc.ExpectedID, "expect", "e", "", "expected document id")
	cmd.Flags().StringSliceVar(&tc.ExpectedIDs, "expect-any", nil, "additional accepted document ids")
	cmd.Flags().StringVar(&tc.Category, "category", "", "grouping label")
	cmd.Flags().StringVar(&tc.SearchMode, "mode", "", "search mode: dense, sparse or hybrid")
	cmd.Flags().IntVar(&maxRank, "max-rank", 0, "maximum acceptable rank")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum acceptable score")
	cmd.SilenceUsage = true
	return cmd
}

func casesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a test case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}
			if err := registry.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted test case %s\n", args[0])
			return nil
		},
	}
	cmd.SilenceUsage = true
	return cmd
}
