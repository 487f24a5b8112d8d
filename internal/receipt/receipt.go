// Package receipt renders rent receipts for recorded payments.
package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	"github.com/smallbiznis/rentflow/pkg/datex"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const ContentType = "application/pdf"

type Document struct {
	Filename string
	Body     []byte
}

type Params struct {
	fx.In

	Log         *zap.Logger
	Coordinator domain.Coordinator
}

type Service struct {
	log         *zap.Logger
	coordinator domain.Coordinator
}

func NewService(p Params) *Service {
	return &Service{log: p.Log.Named("receipt.service"), coordinator: p.Coordinator}
}

// Render builds the receipt for a payment owned by the caller's organization.
func (s *Service) Render(ctx context.Context, paymentID string) (Document, error) {
	payment, err := s.coordinator.GetPayment(ctx, paymentID)
	if err != nil {
		return Document{}, err
	}
	body, err := Generate(payment)
	if err != nil {
		s.log.Error("failed to render receipt", zap.String("payment_id", paymentID), zap.Error(err))
		return Document{}, fmt.Errorf("render receipt: %w", err)
	}
	return Document{Filename: Filename(payment), Body: body}, nil
}

// Filename is quittance-<property-slug>-<yyyy>-<mm>.pdf.
func Filename(p domain.PaymentView) string {
	name := slug.Make(p.PropertyName)
	if name == "" {
		name = p.PropertyID.String()
	}
	return fmt.Sprintf("quittance-%s-%04d-%02d.pdf", name, p.PeriodYear, p.PeriodMonth)
}

func Generate(p domain.PaymentView) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)
	period := time.Date(p.PeriodYear, time.Month(p.PeriodMonth), 1, 0, 0, 0, 0, time.UTC)

	m.AddRow(20,
		text.NewCol(12, "Rent receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(12,
		text.NewCol(12, "Period: "+period.Format("January 2006"), props.Text{Size: 11}),
	)
	m.AddRow(30,
		col.New(6).Add(
			text.New("Property", props.Text{Style: fontstyle.Bold}),
			text.New(p.PropertyName, props.Text{Top: 5}),
			text.New(p.PropertyAddress, props.Text{Top: 10}),
			text.New(p.PropertyCity, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Tenant", props.Text{Style: fontstyle.Bold}),
			text.New(p.TenantName, props.Text{Top: 5}),
		),
	)
	m.AddRow(4, line.NewCol(12))

	m.AddRow(10,
		text.NewCol(8, "Rent", props.Text{Size: 10}),
		text.NewCol(4, Money(p.LeaseRent), props.Text{Size: 10, Align: align.Right}),
	)
	m.AddRow(10,
		text.NewCol(8, "Charges", props.Text{Size: 10}),
		text.NewCol(4, Money(p.LeaseCharges), props.Text{Size: 10, Align: align.Right}),
	)
	m.AddRow(12,
		text.NewCol(8, "Amount received", props.Text{Size: 11, Style: fontstyle.Bold}),
		text.NewCol(4, Money(p.Amount), props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(15,
		text.NewCol(12, fmt.Sprintf("Received on %s by %s.", datex.Format(p.PaymentDate), methodLabel(p.Method)), props.Text{
			Size: 9,
			Top:  5,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

// Money formats minor units with two decimals.
func Money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func methodLabel(m domain.PaymentMethod) string {
	switch m {
	case domain.MethodBankTransfer:
		return "bank transfer"
	case domain.MethodDirectDebit:
		return "direct debit"
	case "":
		return "unspecified method"
	}
	return string(m)
}
