package verify

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"freshsync/internal/app"
	verifyapp "freshsync/internal/app/verify"
)

var (
	moveOrphans     bool
	redownload      bool
	backfillMarkers bool
)

var VerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Сверить вложения на диске с учётом в staging-БД",
	Long: `Проверка находит папки вложений без тикета в staging-БД и
учтённые файлы, пропавшие с диска. По флагам осиротевшие папки
переносятся в old/, потерянные файлы докачиваются, а полностью
собранные тикеты получают отметку завершённости.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ok := app.FromContext(cmd.Context())
		if !ok {
			return fmt.Errorf("приложение не инициализировано")
		}

		fmt.Println("=== Проверка хранилища вложений ===")
		start := time.Now()

		report, err := a.Verify.Run(cmd.Context(), verifyapp.Options{
			MoveOrphans:     moveOrphans,
			Redownload:      redownload,
			BackfillMarkers: backfillMarkers,
		})
		if err != nil {
			return fmt.Errorf("ошибка проверки: %w", err)
		}

		fmt.Println()
		color.Green("✅ Проверка завершена за %v", time.Since(start).Round(time.Second))
		fmt.Printf("Тикетов в staging-БД: %d\n", report.StagedTickets)

		if len(report.OrphanDirs) > 0 {
			if moveOrphans {
				color.Yellow("Осиротевших папок перенесено в old/: %d", len(report.OrphanDirs))
			} else {
				color.Yellow("Осиротевших папок: %d (запустите с --move-orphans)", len(report.OrphanDirs))
			}
		}
		if report.MissingFiles > 0 {
			color.Yellow("Потерянных файлов: %d", report.MissingFiles)
		}
		if report.Redownloaded > 0 {
			fmt.Printf("Докачано файлов: %d\n", report.Redownloaded)
		}
		if report.MarkedDone > 0 {
			fmt.Printf("Проставлено отметок завершённости: %d\n", report.MarkedDone)
		}
		return nil
	},
}

func init() {
	VerifyCmd.Flags().BoolVar(&moveOrphans, "move-orphans", false, "переносить осиротевшие папки в old/")
	VerifyCmd.Flags().BoolVar(&redownload, "redownload", false, "докачивать потерянные файлы")
	VerifyCmd.Flags().BoolVar(&backfillMarkers, "backfill-markers", false, "проставлять отметки полностью собранным тикетам")
}
