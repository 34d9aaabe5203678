package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type InvoiceData struct {
	InvoiceNumber   string
	IssueDate       string
	Status          string
	ClientName      string
	ClientCompany   string
	WarrantyCompany string
	StatementType   string
	StatementNumber string

	Adjustments []AdjustmentLine

	StatementTotal     string
	AssignedPercentage string
	FinalTotal         string
	FreeText           string
}

type AdjustmentLine struct {
	Description string
	Type        string
	Amount      string
}

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(15,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
			text.New("Status: "+data.Status, props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Statement: "+data.StatementType+" "+data.StatementNumber, props.Text{Top: 0}),
			text.New("Warranty company: "+data.WarrantyCompany, props.Text{Top: 4}),
		),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(data.ClientName, props.Text{Top: 5}),
			text.New(data.ClientCompany, props.Text{Top: 9}),
		),
		col.New(6),
	)

	m.AddRow(15,
		text.NewCol(12, data.FinalTotal+" due", props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Type", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, adj := range data.Adjustments {
		m.AddRow(12,
			text.NewCol(8, adj.Description, props.Text{Size: 9}),
			text.NewCol(2, adj.Type, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, adj.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Statement total", props.Text{Size: 9}),
		text.NewCol(2, data.StatementTotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Percentage", props.Text{Size: 9}),
		text.NewCol(2, data.AssignedPercentage, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Final total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.FinalTotal, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if data.FreeText != "" {
		m.AddRow(20,
			text.NewCol(12, data.FreeText, props.Text{Size: 9, Top: 5}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
