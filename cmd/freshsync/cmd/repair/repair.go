package repair

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"freshsync/internal/app"
	repairapp "freshsync/internal/app/repair"
	syncapp "freshsync/internal/app/sync"
)

var (
	errorsCSV    string
	mappingCSV   string
	mapTable     string
	contactsCSV  string
	companiesCSV string
	attach       bool
	inline       bool
	ledgerPath   string
)

var RepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Починить последствия прошлых прогонов",
	Long: `Ремонт работает в нескольких режимах:

  --errors-csv     перегоняет тикеты из журнала аномалий через обычный
                   пайплайн синхронизации
  --mapping-csv    докладывает ручные соответствия (fresh_value,octa_value)
                   в таблицу status_map/priority_map/type_map
  --contacts-csv   докладывает заранее сверенные id контактов
                   (fresh_id,octa_contact_id[,octa_org_id])
  --companies-csv  докладывает заранее сверенные id организаций
                   (fresh_id,octa_org_id)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ok := app.FromContext(cmd.Context())
		if !ok {
			return fmt.Errorf("приложение не инициализировано")
		}

		switch {
		case errorsCSV != "":
			return rerunTickets(cmd, a)
		case mappingCSV != "":
			return applyMapping(cmd, a)
		case contactsCSV != "":
			return applyContactIDs(cmd, a)
		case companiesCSV != "":
			return applyCompanyIDs(cmd, a)
		default:
			return fmt.Errorf("укажите --errors-csv, --mapping-csv, --contacts-csv или --companies-csv")
		}
	},
}

func rerunTickets(cmd *cobra.Command, a *app.App) error {
	fmt.Println("=== Повторный прогон тикетов из журнала ===")
	start := time.Now()

	stats, err := a.Repair.RerunFromErrorCSV(cmd.Context(), errorsCSV, syncapp.Options{
		Attachments:  attach,
		InlineScrape: inline,
	})
	if err != nil {
		return fmt.Errorf("ошибка повторного прогона: %w", err)
	}

	if err := a.Ledger.Flush(ledgerPath); err != nil {
		return fmt.Errorf("ошибка записи журнала аномалий: %w", err)
	}

	fmt.Println()
	color.Green("✅ Повторный прогон завершён за %v", time.Since(start).Round(time.Second))
	fmt.Printf("Обработано тикетов: %d\n", stats.TicketsProcessed)
	if stats.TicketsFailed > 0 {
		color.Red("Сбоев: %d", stats.TicketsFailed)
	}
	if a.Ledger.Len() > 0 {
		color.Yellow("Новых аномалий: %d (%s)", a.Ledger.Len(), ledgerPath)
	}
	return nil
}

func applyMapping(cmd *cobra.Command, a *app.App) error {
	if mapTable == "" {
		return fmt.Errorf("укажите таблицу через --table (status_map, priority_map, type_map)")
	}

	report, err := a.Repair.ApplyMappingCSV(cmd.Context(), mappingCSV, mapTable)
	if err != nil {
		return fmt.Errorf("ошибка применения соответствий: %w", err)
	}

	color.Green("✅ Соответствия применены к %s", mapTable)
	printMappingReport(report)
	return nil
}

func applyContactIDs(cmd *cobra.Command, a *app.App) error {
	report, err := a.Repair.ApplyContactIDCSV(cmd.Context(), contactsCSV)
	if err != nil {
		return fmt.Errorf("ошибка применения id контактов: %w", err)
	}

	color.Green("✅ Сверенные id контактов применены")
	printMappingReport(report)
	return nil
}

func applyCompanyIDs(cmd *cobra.Command, a *app.App) error {
	report, err := a.Repair.ApplyCompanyIDCSV(cmd.Context(), companiesCSV)
	if err != nil {
		return fmt.Errorf("ошибка применения id организаций: %w", err)
	}

	color.Green("✅ Сверенные id организаций применены")
	printMappingReport(report)
	return nil
}

func printMappingReport(report *repairapp.MappingReport) {
	fmt.Printf("Обновлено: %d\n", report.Updated)
	fmt.Printf("Без изменений: %d\n", report.Unchanged)
	if report.Missing > 0 {
		color.Yellow("Нет в staging-БД: %d", report.Missing)
	}
	if report.Skipped > 0 {
		color.Yellow("Пропущено пустых: %d", report.Skipped)
	}
}

func init() {
	RepairCmd.Flags().StringVar(&errorsCSV, "errors-csv", "", "журнал аномалий прошлого прогона")
	RepairCmd.Flags().StringVar(&mappingCSV, "mapping-csv", "", "CSV с соответствиями fresh_value,octa_value")
	RepairCmd.Flags().StringVar(&mapTable, "table", "", "таблица соответствий для --mapping-csv")
	RepairCmd.Flags().StringVar(&contactsCSV, "contacts-csv", "", "CSV со сверенными id контактов")
	RepairCmd.Flags().StringVar(&companiesCSV, "companies-csv", "", "CSV со сверенными id организаций")
	RepairCmd.Flags().BoolVar(&attach, "attachments", false, "скачивать вложения при повторном прогоне")
	RepairCmd.Flags().BoolVar(&inline, "inline", false, "выдёргивать inline-картинки при повторном прогоне")
	RepairCmd.Flags().StringVar(&ledgerPath, "ledger", "freshsync_repair_errors.csv", "путь к CSV-журналу аномалий")
}
