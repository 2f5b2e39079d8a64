package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/studykit/internal/content"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import subjects, lessons and exercises from .xlsx or .csv",
	Long: `Import study content from the first sheet of an .xlsx workbook or a .csv file.

Columns: Subject | Color | Lesson | Summary | Key points | Common mistakes |
Question | Options | Correct | Explanation | Difficulty

Options are separated by "|" and Correct is the 1-based option number.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := content.NewImporter(st.StudyRepo(), log).ImportFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Rows:      %d\n", res.Rows)
		fmt.Printf("Subjects:  %d created\n", res.Subjects)
		fmt.Printf("Lessons:   %d created\n", res.Lessons)
		fmt.Printf("Exercises: %d created\n", res.Exercises)
		if len(res.Errors) > 0 {
			fmt.Printf("\n%d row(s) skipped:\n", len(res.Errors))
			for _, e := range res.Errors {
				fmt.Println("  " + e)
			}
		}
		return nil
	},
}
