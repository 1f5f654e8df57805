package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var coverageGaps bool

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show nugget coverage across files",
	Long: `Shows which files carry extracted context. With --gaps, lists files
that get queried more often than they have nuggets: the places where a
targeted 'openqed extract' pays off most.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCoverage()
	},
}

func init() {
	coverageCmd.Flags().BoolVar(&coverageGaps, "gaps", false, "show files with high queries but few nuggets")
	rootCmd.AddCommand(coverageCmd)
}

func runCoverage() error {
	ws, err := currentWorkspace()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if coverageGaps {
		gaps, err := st.CoverageGaps(ws.ID)
		if err != nil {
			return err
		}
		if len(gaps) == 0 {
			fmt.Println("No query gaps found.")
			return nil
		}

		fmt.Println("Files with high queries but low nugget coverage:")
		fmt.Printf("\n%-50s %-10s %s\n", "Path", "Queries", "Nuggets")
		fmt.Println(strings.Repeat("─", 70))
		for _, gap := range gaps {
			fmt.Printf("%-50s %-10d %d\n", gap.Path, gap.QueryCount, gap.NuggetCount)
		}
		return nil
	}

	coverage, err := st.NuggetCoverage(ws.ID)
	if err != nil {
		return err
	}
	if len(coverage) == 0 {
		fmt.Println("No nuggets found. Run 'openqed extract' first.")
		return nil
	}

	maxCount := coverage[0].Count
	for _, pc := range coverage {
		if pc.Count > maxCount {
			maxCount = pc.Count
		}
	}
	const barWidth = 30

	fmt.Println("Nugget coverage by file:")
	fmt.Println()
	for _, pc := range coverage {
		bar := strings.Repeat("█", (pc.Count*barWidth+maxCount-1)/maxCount)
		path := pc.Path
		if len(path) > 40 {
			path = "..." + path[len(path)-37:]
		}
		fmt.Printf("  %-42s %s %d\n", path, bar, pc.Count)
	}
	fmt.Printf("\n%d file(s) with context nuggets.\n", len(coverage))
	return nil
}
