package sync

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"freshsync/internal/app"
	syncapp "freshsync/internal/app/sync"
	"freshsync/internal/freshdesk"
)

var (
	ticketIDs   []int64
	createdFrom string
	createdTo   string
	updatedFrom string
	updatedTo   string
	pageSize    int
	batchSize   int
	attach      bool
	inline      bool
	ledgerPath  string
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Выгрузить тикеты из Freshdesk в staging-БД",
	Long: `Синхронизация перечисляет тикеты Freshdesk, тянет связанные
справочники (группы, агентов, контактов, компании), нормализует данные
и пишет их в staging-БД. С флагом --attachments скачиваются вложения.

Окно дат задаётся в формате YYYY-MM-DD; граница "до" включает весь день.
Аномалии прогона складываются в CSV-журнал.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ok := app.FromContext(cmd.Context())
		if !ok {
			return fmt.Errorf("приложение не инициализировано")
		}

		opts, err := buildOptions(a)
		if err != nil {
			return err
		}

		fmt.Println("=== Синхронизация тикетов ===")
		start := time.Now()

		runID, err := a.State.StartRun()
		if err != nil {
			return err
		}

		stats, err := a.Sync.Run(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("ошибка синхронизации: %w", err)
		}

		if err := a.State.FinishRun(runID, stats.TicketsProcessed, stats.TicketsFailed); err != nil {
			return err
		}
		if err := a.Ledger.Flush(ledgerPath); err != nil {
			return fmt.Errorf("ошибка записи журнала аномалий: %w", err)
		}

		printSummary(a, stats, time.Since(start))
		return nil
	},
}

func buildOptions(a *app.App) (syncapp.Options, error) {
	opts := syncapp.Options{
		TicketIDs:    ticketIDs,
		PageSize:     pageSize,
		BatchSize:    batchSize,
		Attachments:  attach,
		InlineScrape: inline || a.Cfg.Attachments.InlineScrape,
	}
	if pageSize == 0 {
		opts.PageSize = a.Cfg.Freshdesk.PageSize
	}

	var err error
	if opts.CreatedFrom, err = parseDate(createdFrom, false); err != nil {
		return opts, err
	}
	if opts.CreatedTo, err = parseDate(createdTo, true); err != nil {
		return opts, err
	}
	if opts.UpdatedFrom, err = parseDate(updatedFrom, false); err != nil {
		return opts, err
	}
	if opts.UpdatedTo, err = parseDate(updatedTo, true); err != nil {
		return opts, err
	}
	return opts, nil
}

// parseDate разбирает YYYY-MM-DD; верхняя граница растягивается
// до конца суток
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("неверная дата %q, ожидается YYYY-MM-DD", s)
	}
	t = t.UTC()
	if endOfDay {
		t = freshdesk.EndOfDay(t)
	}
	return &t, nil
}

func printSummary(a *app.App, stats *syncapp.RunStats, elapsed time.Duration) {
	fmt.Println()
	color.Green("✅ Синхронизация завершена за %v", elapsed.Round(time.Second))
	fmt.Printf("Обработано тикетов: %d\n", stats.TicketsProcessed)
	fmt.Printf("Сообщений: %d\n", stats.Messages)
	if attach {
		fmt.Printf("Вложений: %d\n", stats.Attachments)
	}
	if stats.ContactsMatched > 0 || stats.OrgsMatched > 0 {
		fmt.Printf("Сверено с CRM: контактов %d, организаций %d\n",
			stats.ContactsMatched, stats.OrgsMatched)
	}
	if stats.TicketsFailed > 0 {
		color.Red("Сбоев: %d", stats.TicketsFailed)
	}
	if a.Ledger.Len() > 0 {
		color.Yellow("Аномалий в журнале: %d (%s)", a.Ledger.Len(), ledgerPath)
	}
}

func init() {
	SyncCmd.Flags().Int64SliceVar(&ticketIDs, "tickets", nil, "явный список id тикетов")
	SyncCmd.Flags().StringVar(&createdFrom, "created-from", "", "нижняя граница даты создания (YYYY-MM-DD)")
	SyncCmd.Flags().StringVar(&createdTo, "created-to", "", "верхняя граница даты создания (YYYY-MM-DD)")
	SyncCmd.Flags().StringVar(&updatedFrom, "updated-from", "", "нижняя граница даты обновления (YYYY-MM-DD)")
	SyncCmd.Flags().StringVar(&updatedTo, "updated-to", "", "верхняя граница даты обновления (YYYY-MM-DD)")
	SyncCmd.Flags().IntVar(&pageSize, "page-size", 0, "размер страницы листинга (1-100)")
	SyncCmd.Flags().IntVar(&batchSize, "batch-size", 0, "размер пачки записи тикетов")
	SyncCmd.Flags().BoolVar(&attach, "attachments", false, "скачивать вложения")
	SyncCmd.Flags().BoolVar(&inline, "inline", false, "выдёргивать inline-картинки из HTML")
	SyncCmd.Flags().StringVar(&ledgerPath, "ledger", "freshsync_errors.csv", "путь к CSV-журналу аномалий")
}
