package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/abhisek/studykit/internal/config"
	"github.com/abhisek/studykit/internal/dashboard"
	"github.com/abhisek/studykit/internal/docqa"
	"github.com/abhisek/studykit/internal/server"
	"github.com/abhisek/studykit/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		repo := st.StudyRepo()
		registry := session.NewRegistry(repo, log)
		deps := server.Deps{
			Repo:      repo,
			Dashboard: dashboard.NewService(repo, dashboard.WithLimit(cfg.Recommendations), dashboard.WithLogger(log)),
			Sessions:  registry,
			Planner:   session.NewPlanner(repo),
			Extractor: newExtractor(),
			Log:       log,
		}

		provider, err := openProvider(ctx, st.EventRepo())
		switch {
		case err != nil:
			return fmt.Errorf("llm provider: %w", err)
		case provider == nil:
			log.Warn("no LLM provider configured; /api/pdf/qa will return 503")
		default:
			deps.QA = docqa.NewQAService(provider, log)
			log.WithField("model", provider.ModelID()).Info("llm provider ready")
		}

		srv := server.New(deps, server.Config{
			MaxUploadBytes: cfg.MaxUploadBytes(),
			QARate:         rate.Limit(cfg.QARPS),
			QABurst:        cfg.QABurst,
			ExamSize:       cfg.ExamSize,
			ExamDuration:   cfg.ExamDuration,
			SessionMaxAge:  cfg.SessionMaxAge,
		})

		stopSweeper, err := srv.StartSweeper()
		if err != nil {
			return fmt.Errorf("start session sweeper: %w", err)
		}
		defer stopSweeper()

		if cfg.Lambda {
			log.Info("starting lambda handler")
			lambda.Start(srv.LambdaHandler())
			return nil
		}
		return srv.ListenAndServe(ctx, cfg.Addr)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String(config.KeyAddr, ":8080", "Listen address")
	f.Bool(config.KeyLambda, false, "Run as an AWS Lambda handler behind API Gateway")
	f.Int(config.KeyMaxUploadMB, 25, "Maximum PDF upload size in MB")
	f.String(config.KeyExtractor, config.ExtractorPDF, "PDF text extractor: pdf or tika")
	f.String(config.KeyTikaURL, docqa.DefaultTikaURL, "Apache Tika server URL")
	f.Float64(config.KeyQARPS, 1, "Question answering requests per second per client")
	f.Int(config.KeyQABurst, 5, "Question answering burst per client")
	f.Int(config.KeyRecommendations, 3, "Number of review recommendations on the dashboard")
	f.Int(config.KeyExamSize, session.DefaultExamSize, "Mock exam size")
	f.Duration(config.KeyExamDuration, session.DefaultExamDuration, "Mock exam duration")
	f.Duration(config.KeySessionMaxAge, 2*time.Hour, "Drop sessions idle for longer than this")
}
