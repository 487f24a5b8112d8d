package receipt

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const LedgerContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ledgerHeaders = []string{"Date", "Property", "Tenant", "Period", "Amount", "Payment method"}

var ledgerWidths = map[string]float64{"A": 12, "B": 25, "C": 20, "D": 18, "E": 15, "F": 20}

// ExportPayments builds the payments ledger of the caller's organization,
// restricted to a period year when year is non-zero.
func (s *Service) ExportPayments(ctx context.Context, year int) (Document, error) {
	payments, err := s.coordinator.ListPayments(ctx, domain.ListPaymentsRequest{Year: year})
	if err != nil {
		return Document{}, err
	}
	body, err := Ledger(payments, year)
	if err != nil {
		s.log.Error("failed to render payments ledger", zap.Int("year", year), zap.Error(err))
		return Document{}, fmt.Errorf("render ledger: %w", err)
	}
	return Document{Filename: LedgerFilename(year), Body: body}, nil
}

func LedgerFilename(year int) string {
	return "payments-" + ledgerScope(year) + ".xlsx"
}

func ledgerScope(year int) string {
	if year == 0 {
		return "all"
	}
	return strconv.Itoa(year)
}

// Ledger writes one row per payment followed by a bold total row. Amounts are
// written in major units.
func Ledger(payments []domain.PaymentView, year int) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Payments " + ledgerScope(year)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"064E3B"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	moneyFormat := "#,##0.00"
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFormat})
	if err != nil {
		return nil, err
	}
	total, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFormat})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &ledgerHeaders); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "F1", header); err != nil {
		return nil, err
	}

	var sum int64
	row := 2
	for _, p := range payments {
		period := time.Date(p.PeriodYear, time.Month(p.PeriodMonth), 1, 0, 0, 0, 0, time.UTC)
		values := []any{
			p.PaymentDate.Format(time.DateOnly),
			p.PropertyName,
			p.TenantName,
			period.Format("January 2006"),
			float64(p.Amount) / 100,
			methodLabel(p.Method),
		}
		if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
			return nil, err
		}
		sum += p.Amount
		row++
	}
	if row > 2 {
		if err := f.SetCellStyle(sheet, "E2", cell("E", row-1), money); err != nil {
			return nil, err
		}
	}

	totalRow := row + 1
	if err := f.SetCellValue(sheet, cell("D", totalRow), "TOTAL"); err != nil {
		return nil, err
	}
	if err := f.SetCellFloat(sheet, cell("E", totalRow), float64(sum)/100, 2, 64); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, cell("D", totalRow), cell("E", totalRow), total); err != nil {
		return nil, err
	}

	for col, width := range ledgerWidths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cell(col string, row int) string {
	return col + strconv.Itoa(row)
}
