package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"freshsync/internal/app"
	"freshsync/internal/app/config"
	"freshsync/internal/utils/logger"
)

var (
	envFile string
	cfg     *config.Config
	log     *slog.Logger
	a       *app.App
)

var rootCmd = &cobra.Command{
	Use:   "freshsync",
	Short: "FreshSync - миграция тикетов из Freshdesk в Octadesk",
	Long: `FreshSync переносит тикеты техподдержки из Freshdesk в Octadesk
через промежуточную staging-БД в Postgres.

Пайплайн состоит из четырёх шагов:
  sync    — выгрузка тикетов, переписок и вложений из Freshdesk
  verify  — сверка скачанных вложений с учётом в staging-БД
  repair  — повторный прогон тикетов из журнала аномалий
  export  — создание тикетов в Octadesk из подготовленных данных`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	defer func() {
		if a != nil {
			a.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg = config.Load(envFile)
	log = logger.New(cfg.Env)

	var err error
	a, err = app.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(app.NewContext(cmd.Context(), a))
	return nil
}

func init() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "файл с переменными окружения")
}
