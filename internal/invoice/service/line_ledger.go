package service

import (
	"github.com/shopspring/decimal"
	"github.com/smallhaul/tradeledger/internal/invoice/domain"
	saledomain "github.com/smallhaul/tradeledger/internal/sale/domain"
)

var hundred = decimal.NewFromInt(100)

// computeTotals derives the invoice money columns from its line items. It is a
// pure function of the lines and the tax rate, so recomputing after any line
// change always lands on the same figures.
//
// total = subtotal + tax, tax = subtotal * rate / 100, both rounded to cents.
func computeTotals(items []domain.LineItem, taxRate decimal.Decimal) domain.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	return domain.Totals{
		Subtotal:    subtotal,
		TaxAmount:   tax,
		NetTotal:    subtotal,
		TotalAmount: subtotal.Add(tax),
	}
}

// snapshotLine freezes a sale into a line item. The copy is deliberate: once
// on the invoice, the figures no longer follow the sale or the product.
func snapshotLine(sale *saledomain.Sale, invoice *domain.Invoice, sequence int) domain.LineItem {
	saleID := sale.ID
	return domain.LineItem{
		InvoiceID:      invoice.ID,
		SaleID:         &saleID,
		SequenceNumber: sequence,
		Quantity:       sale.Quantity,
		UnitPrice:      sale.UnitPrice,
		DiscountType:   sale.DiscountType,
		DiscountAmount: sale.DiscountAmount,
		LineTotal:      sale.TotalPrice,
	}
}
