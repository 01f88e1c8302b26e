package export

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"freshsync/internal/app"
	exportapp "freshsync/internal/app/export"
)

var (
	limit           int
	withAttachments bool
	ledgerPath      string
)

var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Создать тикеты в Octadesk из staging-БД",
	Long: `Выгрузка берёт тикеты без octa_ticket_id, собирает payload
с перепиской и вложениями и создаёт тикеты в Octadesk. Тикеты без
сверенного контакта заявителя пропускаются.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ok := app.FromContext(cmd.Context())
		if !ok {
			return fmt.Errorf("приложение не инициализировано")
		}
		if a.Export == nil {
			return fmt.Errorf("выгрузка недоступна: не заданы реквизиты Octadesk")
		}

		fmt.Println("=== Выгрузка тикетов в Octadesk ===")
		start := time.Now()

		stats, err := a.Export.Run(cmd.Context(), exportapp.Options{
			Limit:           limit,
			WithAttachments: withAttachments,
		})
		if err != nil {
			return fmt.Errorf("ошибка выгрузки: %w", err)
		}

		if err := a.Ledger.Flush(ledgerPath); err != nil {
			return fmt.Errorf("ошибка записи журнала аномалий: %w", err)
		}

		fmt.Println()
		color.Green("✅ Выгрузка завершена за %v", time.Since(start).Round(time.Second))
		fmt.Printf("Выгружено: %d\n", stats.Exported)
		if stats.Skipped > 0 {
			color.Yellow("Пропущено без контакта: %d", stats.Skipped)
		}
		if stats.Failed > 0 {
			color.Red("Сбоев: %d", stats.Failed)
		}
		if a.Ledger.Len() > 0 {
			color.Yellow("Аномалий в журнале: %d (%s)", a.Ledger.Len(), ledgerPath)
		}
		return nil
	},
}

func init() {
	ExportCmd.Flags().IntVar(&limit, "limit", 0, "максимум тикетов за прогон (0 — без лимита)")
	ExportCmd.Flags().BoolVar(&withAttachments, "attachments", false, "вкладывать файлы в payload")
	ExportCmd.Flags().StringVar(&ledgerPath, "ledger", "freshsync_export_errors.csv", "путь к CSV-журналу аномалий")
}
