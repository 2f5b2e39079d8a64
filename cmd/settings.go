package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/studykit/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update the exam date, daily goal and onboarding flag",
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := settingsPatch(cmd)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		settings, err := st.StudyRepo().UpdateSettings(cmd.Context(), patch)
		if err != nil {
			return fmt.Errorf("update settings: %w", err)
		}

		exam := "(not set)"
		if settings.ExamDate != nil {
			exam = settings.ExamDate.Format(store.DateLayout)
		}
		fmt.Printf("Exam date:   %s\n", exam)
		fmt.Printf("Daily goal:  %d min\n", settings.DailyGoalMinutes)
		fmt.Printf("Onboarded:   %v\n", settings.OnboardingDone)
		return nil
	},
}

func settingsPatch(cmd *cobra.Command) (store.SettingsPatch, error) {
	var p store.SettingsPatch
	f := cmd.Flags()

	if f.Changed("exam-date") {
		s, _ := f.GetString("exam-date")
		d, err := time.ParseInLocation(store.DateLayout, s, time.Local)
		if err != nil {
			return p, fmt.Errorf("invalid --exam-date %q (want %s)", s, store.DateLayout)
		}
		p.ExamDate = &d
	}
	if clear, _ := f.GetBool("clear-exam-date"); clear {
		if p.ExamDate != nil {
			return p, fmt.Errorf("--exam-date and --clear-exam-date are mutually exclusive")
		}
		p.ClearExamDate = true
	}
	if f.Changed("daily-goal") {
		g, _ := f.GetInt("daily-goal")
		p.DailyGoalMinutes = &g
	}
	if f.Changed("onboarding-done") {
		b, _ := f.GetBool("onboarding-done")
		p.OnboardingDone = &b
	}
	return p, nil
}

func init() {
	f := settingsCmd.Flags()
	f.String("exam-date", "", "Exam date as YYYY-MM-DD")
	f.Bool("clear-exam-date", false, "Remove the exam date")
	f.Int("daily-goal", 0, "Daily study goal in minutes")
	f.Bool("onboarding-done", false, "Mark onboarding as done")
}
