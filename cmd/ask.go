package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/studykit/internal/config"
	"github.com/abhisek/studykit/internal/docqa"
)

var askCmd = &cobra.Command{
	Use:   "ask <file.pdf>",
	Short: "Ask a question about a PDF document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question, _ := cmd.Flags().GetString("question")
		lang, _ := cmd.Flags().GetString("lang")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if int64(len(data)) > cfg.MaxUploadBytes() {
			return fmt.Errorf("%s exceeds %d MB", args[0], cfg.MaxUploadMB)
		}
		if !docqa.IsPDF(data) {
			return fmt.Errorf("%s is not a PDF", args[0])
		}

		doc, err := newExtractor().Extract(ctx, data)
		if err != nil {
			if errors.Is(err, docqa.ErrNoText) {
				return fmt.Errorf("%s has no extractable text", args[0])
			}
			return fmt.Errorf("extract text: %w", err)
		}

		if question == "" {
			fmt.Printf("Pages: %d\n\n%s\n", doc.Pages, doc.Text)
			return nil
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		provider, err := openProvider(ctx, st.EventRepo())
		if err != nil {
			return fmt.Errorf("llm provider: %w", err)
		}
		if provider == nil {
			return errors.New("no LLM provider configured; set STUDYKIT_LLM_PROVIDER and an API key")
		}

		ans, err := docqa.NewQAService(provider, log).Answer(ctx, docqa.Question{
			Question:    question,
			ContextText: doc.Text,
			Lang:        lang,
		})
		if err != nil {
			return err
		}
		fmt.Println(ans.Answer)
		return nil
	},
}

func init() {
	f := askCmd.Flags()
	f.StringP("question", "q", "", "Question to ask; without it the extracted text is printed")
	f.StringP("lang", "l", docqa.LangFrench, "Answer language: ar or fr")
	f.String(config.KeyExtractor, config.ExtractorPDF, "PDF text extractor: pdf or tika")
	f.String(config.KeyTikaURL, docqa.DefaultTikaURL, "Apache Tika server URL")
	f.Int(config.KeyMaxUploadMB, 25, "Maximum PDF size in MB")
}
