package receipt

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func samplePayment() domain.PaymentView {
	return domain.PaymentView{
		Payment: domain.Payment{
			ID:          42,
			Amount:      85000,
			PaymentDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			PeriodMonth: 3,
			PeriodYear:  2024,
			Method:      domain.MethodBankTransfer,
		},
		PropertyID:      7,
		PropertyName:    "Rue Verte 12, Apt B",
		PropertyAddress: "12 rue Verte",
		PropertyCity:    "Lyon",
		TenantName:      "Ana Lima",
		LeaseRent:       80000,
		LeaseCharges:    5000,
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "quittance-rue-verte-12-apt-b-2024-03.pdf", Filename(samplePayment()))

	p := samplePayment()
	p.PropertyName = "   "
	assert.Equal(t, "quittance-7-2024-03.pdf", Filename(p))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "850.00", Money(85000))
	assert.Equal(t, "0.05", Money(5))
	assert.Equal(t, "-12.30", Money(-1230))
}

func TestGenerateProducesPDF(t *testing.T) {
	body, err := Generate(samplePayment())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestLedgerFilename(t *testing.T) {
	assert.Equal(t, "payments-2024.xlsx", LedgerFilename(2024))
	assert.Equal(t, "payments-all.xlsx", LedgerFilename(0))
}

func TestLedgerListsPaymentsWithTotal(t *testing.T) {
	second := samplePayment()
	second.ID = 43
	second.PeriodMonth = 4
	second.PaymentDate = time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC)
	second.Method = domain.MethodCash

	body, err := Ledger([]domain.PaymentView{samplePayment(), second}, 2024)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"Payments 2024"}, f.GetSheetList())
	rows, err := f.GetRows("Payments 2024", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Date", "Property", "Tenant", "Period", "Amount", "Payment method"}, rows[0])
	assert.Equal(t, []string{"2024-03-04", "Rue Verte 12, Apt B", "Ana Lima", "March 2024", "850", "bank transfer"}, rows[1])
	assert.Equal(t, "April 2024", rows[2][3])
	assert.Empty(t, rows[3])
	require.Len(t, rows[4], 5)
	assert.Equal(t, "TOTAL", rows[4][3])
	total, err := strconv.ParseFloat(rows[4][4], 64)
	require.NoError(t, err)
	assert.InDelta(t, 1700.0, total, 0.001)
}

func TestLedgerWithoutPayments(t *testing.T) {
	body, err := Ledger(nil, 0)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue("Payments all", "D3")
	require.NoError(t, err)
	assert.Equal(t, "TOTAL", value)
}
