package services

import (
	"bufio"
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/yeremiapane/billiard-pos/models"
	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
)

// TransactionTypeSale marks order payments in the export; ledger rows use
// their entry type.
const TransactionTypeSale = "SALE"

// TransactionHeader is the first row of every export.
var TransactionHeader = []string{"Date", "Type", "Customer", "Description", "Method", "Amount", "Reference ID"}

// ExportService flattens payments and ledger entries for bookkeeping.
type ExportService struct {
	db *gorm.DB
}

// TransactionFilter narrows an export. Search matches customer and reference
// case-insensitively, plus the payment method of sales and the description of
// ledger entries; Type matches the Type column. Both run in SQL.
type TransactionFilter struct {
	Search string
	Type   string
}

type TransactionRow struct {
	Date        time.Time
	Type        string
	Customer    string
	Description string
	Method      string
	AmountCents int64
	ReferenceID string
}

// Fields renders the row in header order.
func (r TransactionRow) Fields() []string {
	return []string{
		r.Date.Format("2006-01-02 15:04:05"),
		r.Type,
		r.Customer,
		r.Description,
		r.Method,
		utils.FormatCents(r.AmountCents),
		r.ReferenceID,
	}
}

// sources reports which tables the Type filter selects and the ledger type
// to match, empty meaning every ledger type.
func (f TransactionFilter) sources() (payments, ledger bool, ledgerType string) {
	t := strings.ToUpper(strings.TrimSpace(f.Type))
	switch {
	case t == "" || t == "ALL":
		return true, true, ""
	case t == TransactionTypeSale:
		return true, false, ""
	case models.ValidLedgerType(t):
		return false, true, t
	default:
		return false, false, ""
	}
}

// likePattern escapes LIKE wildcards so the search is a plain substring.
func likePattern(search string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return "%" + r.Replace(strings.ToLower(search)) + "%"
}

// Transactions returns matching rows, newest first.
func (s *ExportService) Transactions(ctx context.Context, filter TransactionFilter) ([]TransactionRow, error) {
	withPayments, withLedger, ledgerType := filter.sources()
	search := strings.TrimSpace(filter.Search)

	var payments []models.Payment
	if withPayments {
		q := s.db.WithContext(ctx).
			Preload("Order.TableSession.Table").
			Joins("JOIN orders ON orders.id = payments.order_id")
		if search != "" {
			like := likePattern(search)
			q = q.Where(`(LOWER(orders.customer_name) LIKE ? ESCAPE '!' OR LOWER(payments.method) LIKE ? ESCAPE '!' OR LOWER(COALESCE(payments.reference_id, '')) LIKE ? ESCAPE '!')`,
				like, like, like)
		}
		if err := q.Order("payments.paid_at desc").Find(&payments).Error; err != nil {
			return nil, err
		}
	}

	var entries []models.ArLedgerEntry
	if withLedger {
		q := s.db.WithContext(ctx).
			Preload("Customer").
			Joins("JOIN users ON users.id = ar_ledger_entries.customer_id")
		if ledgerType != "" {
			q = q.Where("ar_ledger_entries.type = ?", ledgerType)
		}
		if search != "" {
			like := likePattern(search)
			q = q.Where(`(LOWER(users.name) LIKE ? ESCAPE '!' OR LOWER(ar_ledger_entries.description) LIKE ? ESCAPE '!' OR LOWER(ar_ledger_entries.idempotency_key) LIKE ? ESCAPE '!')`,
				like, like, like)
		}
		if err := q.Order("ar_ledger_entries.created_at desc").Find(&entries).Error; err != nil {
			return nil, err
		}
	}

	rows := make([]TransactionRow, 0, len(payments)+len(entries))
	for _, p := range payments {
		row := TransactionRow{
			Date:        p.PaidAt,
			Type:        TransactionTypeSale,
			Customer:    p.Order.CustomerName,
			Description: "Order " + p.Order.Label(),
			Method:      p.Method,
			AmountCents: p.Amount,
		}
		if p.ReferenceID != nil {
			row.ReferenceID = *p.ReferenceID
		}
		rows = append(rows, row)
	}
	for _, e := range entries {
		rows = append(rows, TransactionRow{
			Date:        e.CreatedAt,
			Type:        e.Type,
			Customer:    e.Customer.Name,
			Description: e.Description,
			Method:      "AR",
			AmountCents: e.AmountCents,
			ReferenceID: e.IdempotencyKey,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.After(rows[j].Date)
	})
	return rows, nil
}

// WriteTransactionsCSV writes the header and rows. Every field is quoted and
// embedded quotes are doubled, so spreadsheet tools never re-type a value.
func WriteTransactionsCSV(w io.Writer, rows []TransactionRow) error {
	bw := bufio.NewWriter(w)
	if err := writeCSVRecord(bw, TransactionHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writeCSVRecord(bw, r.Fields()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeCSVRecord(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quoteCSV(f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

func quoteCSV(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
