package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/studykit/internal/config"
	"github.com/abhisek/studykit/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show progress, review recommendations and today's summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		svc := dashboard.NewService(st.StudyRepo(),
			dashboard.WithLimit(cfg.Recommendations),
			dashboard.WithLogger(log))
		view, err := svc.Refresh(cmd.Context())
		if err != nil {
			return fmt.Errorf("refresh dashboard: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}
		printDashboard(view)
		return nil
	},
}

func printDashboard(view *dashboard.View) {
	sep := strings.Repeat("─", 56)
	s := view.Summary

	fmt.Println("Today")
	fmt.Println(sep)
	if s.DailyGoalMinutes > 0 {
		fmt.Printf("Studied:     %d / %d min (%.0f%%)\n", s.MinutesToday, s.DailyGoalMinutes, s.GoalPercent)
	} else {
		fmt.Printf("Studied:     %d min\n", s.MinutesToday)
	}
	fmt.Printf("Streak:      %d day(s)\n", s.StreakDays)
	if s.HasExamDate {
		fmt.Printf("Exam in:     %d day(s)\n", s.DaysUntilExam)
	}

	fmt.Println()
	fmt.Println("Progress")
	fmt.Println(sep)
	if len(view.Subjects) == 0 {
		fmt.Println("No subjects yet. Add some with `studykit import`.")
	}
	for _, sp := range view.Subjects {
		fmt.Printf("%-28s  %3d/%-3d  %5.1f%%\n", truncate(sp.SubjectName, 28), sp.CompletedLessons, sp.TotalLessons, sp.ProgressPercent)
	}
	if len(view.Subjects) > 0 {
		fmt.Printf("%-28s  %3d/%-3d  %5.1f%%\n", "Overall", view.Overall.CompletedLessons, view.Overall.TotalLessons, view.Overall.ProgressPercent)
	}

	fmt.Println()
	fmt.Println("Review next")
	fmt.Println(sep)
	if len(view.Recommendations) == 0 {
		fmt.Println("Nothing to review.")
	}
	for i, r := range view.Recommendations {
		fmt.Printf("%d. %-24s  %-16s  weak %d/%d\n",
			i+1, truncate(r.LessonTitle, 24), truncate(r.SubjectName, 16), r.Weak, r.Exercises)
	}
}

func init() {
	dashboardCmd.Flags().Bool("json", false, "Print the view model as JSON")
	dashboardCmd.Flags().Int(config.KeyRecommendations, 3, "Number of review recommendations")
}
