package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nexustechhub/mdts/internal/domain"
	"github.com/nexustechhub/mdts/internal/email"
	"github.com/nexustechhub/mdts/internal/events"
	"github.com/nexustechhub/mdts/internal/tax"
	"github.com/nexustechhub/mdts/internal/telemetry"
)

// ReceiptStore persists issued receipts.
type ReceiptStore interface {
	Save(ctx context.Context, receipt tax.Receipt) error
	Get(ctx context.Context, receiptID string) (*tax.Receipt, error)
}

// ReceiptRenderer renders a receipt as a PDF document.
type ReceiptRenderer interface {
	Render(ctx context.Context, receipt tax.Receipt) ([]byte, error)
}

// ReceiptMailer delivers receipts to customers.
type ReceiptMailer interface {
	SendReceipt(ctx context.Context, data email.ReceiptEmail) error
}

// InvoiceService issues and retrieves VAT receipts.
type InvoiceService interface {
	// Issue calculates, validates, persists and distributes a receipt.
	// Event and email failures are logged, not returned.
	Issue(ctx context.Context, params IssueParams) (*tax.Receipt, error)

	// Get loads a previously issued receipt.
	Get(ctx context.Context, receiptID string) (*tax.Receipt, error)

	// PDF renders a previously issued receipt.
	PDF(ctx context.Context, receiptID string) ([]byte, error)
}

// IssueParams contains the paid order to issue a receipt for.
type IssueParams struct {
	Items        []tax.LineItem
	ShippingCost any
	Location     *tax.Location
	Order        tax.OrderDetails
}

type invoiceService struct {
	calc      *tax.Calculator
	store     ReceiptStore
	renderer  ReceiptRenderer
	mailer    ReceiptMailer
	publisher events.Publisher
	logger    *slog.Logger
}

// NewInvoiceService creates a new InvoiceService. renderer, mailer and
// publisher are optional.
func NewInvoiceService(
	calc *tax.Calculator,
	store ReceiptStore,
	renderer ReceiptRenderer,
	mailer ReceiptMailer,
	publisher events.Publisher,
	logger *slog.Logger,
) InvoiceService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceService{
		calc:      calc,
		store:     store,
		renderer:  renderer,
		mailer:    mailer,
		publisher: publisher,
		logger:    logger.With("service", "invoice"),
	}
}

func (s *invoiceService) Issue(ctx context.Context, params IssueParams) (*tax.Receipt, error) {
	const op = "receipt.issue"

	b := s.calc.Calculate(params.Items, params.ShippingCost, params.Location)
	if b.Failed() {
		recordReceipt("rejected")
		return nil, domain.WrapError(b.Err(), domain.EINVALID, op, b.Error)
	}

	if v := s.calc.Config().Validate(b); !v.IsValid {
		recordReceipt("rejected")
		s.logger.Error("refusing to issue receipt for invalid breakdown", "errors", v.Errors)
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidBreakdown, strings.Join(v.Errors, "; "))
	}

	receipt := s.calc.BuildReceipt(b, params.Order)

	if err := s.store.Save(ctx, receipt); err != nil {
		recordReceipt("failed")
		return nil, err
	}

	recordReceipt("issued")
	if telemetry.VAT != nil {
		vat, _ := b.VATAmount.Float64()
		telemetry.VAT.VATInvoiced.WithLabelValues(b.Currency).Add(vat)
	}

	s.logger.Info("receipt issued",
		"receipt_id", receipt.ReceiptID,
		"total", b.Total.String(),
		"vat", b.VATAmount.String(),
		"items", len(b.ItemBreakdown),
	)

	s.publishIssued(ctx, receipt)
	s.emailReceipt(ctx, receipt)

	return &receipt, nil
}

func (s *invoiceService) Get(ctx context.Context, receiptID string) (*tax.Receipt, error) {
	if receiptID == "" {
		return nil, domain.Invalid("receipt.get", "receipt ID is required")
	}
	return s.store.Get(ctx, receiptID)
}

func (s *invoiceService) PDF(ctx context.Context, receiptID string) ([]byte, error) {
	if s.renderer == nil {
		return nil, ErrPDFUnavailable
	}

	receipt, err := s.Get(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderer.Render(ctx, *receipt)
	if err != nil {
		return nil, domain.Internal(err, "receipt.pdf", "failed to render receipt")
	}
	return pdf, nil
}

func (s *invoiceService) publishIssued(ctx context.Context, receipt tax.Receipt) {
	t := receipt.TransactionDetails
	ev, err := events.NewEvent(events.SubjectReceiptIssued, t.Date, events.ReceiptIssued{
		ReceiptID:     receipt.ReceiptID,
		CustomerEmail: receipt.CustomerDetails.Email,
		Subtotal:      t.Subtotal,
		VATAmount:     t.VATAmount,
		Total:         t.Total,
		Currency:      t.Currency,
		ItemCount:     len(t.Items),
	})
	if err == nil {
		err = s.publisher.Publish(ctx, events.SubjectReceiptIssued, ev)
	}

	result := "ok"
	if err != nil {
		result = "failed"
		s.logger.Warn("failed to publish receipt event", "receipt_id", receipt.ReceiptID, "error", err)
	}
	if telemetry.VAT != nil {
		telemetry.VAT.EventsPublished.WithLabelValues(events.SubjectReceiptIssued, result).Inc()
	}
}

func (s *invoiceService) emailReceipt(ctx context.Context, receipt tax.Receipt) {
	if s.mailer == nil || receipt.CustomerDetails.Email == "" {
		return
	}

	var pdf []byte
	if s.renderer != nil {
		var err error
		pdf, err = s.renderer.Render(ctx, receipt)
		if err != nil {
			s.logger.Warn("failed to render receipt PDF, sending without attachment",
				"receipt_id", receipt.ReceiptID,
				"error", err,
			)
		}
	}

	if err := s.mailer.SendReceipt(ctx, receiptEmail(receipt, pdf)); err != nil {
		s.logger.Error("failed to email receipt",
			"receipt_id", receipt.ReceiptID,
			"error", err,
		)
		if telemetry.VAT != nil {
			telemetry.VAT.EmailFailed.WithLabelValues("receipt").Inc()
		}
		return
	}

	if telemetry.VAT != nil {
		telemetry.VAT.EmailSent.WithLabelValues("receipt").Inc()
	}
}

func receiptEmail(r tax.Receipt, pdf []byte) email.ReceiptEmail {
	t := r.TransactionDetails
	b := r.BusinessDetails

	lines := make([]email.ReceiptLine, 0, len(t.Items))
	for _, it := range t.Items {
		lines = append(lines, email.ReceiptLine{
			Name:     it.Name,
			Quantity: it.Quantity,
			TaxCode:  it.TaxCode,
			VAT:      tax.FormatCurrency(it.VATAmount),
			Total:    tax.FormatCurrency(it.Total),
		})
	}

	return email.ReceiptEmail{
		To:           r.CustomerDetails.Email,
		CustomerName: r.CustomerDetails.Name,
		ReceiptID:    r.ReceiptID,
		Date:         t.Date.Format("02 Jan 2006"),
		BusinessName: b.Name,
		BusinessInfo: fmt.Sprintf("%s | %s", b.Location, b.Phone),
		VATNumber:    r.Compliance.VATNumber,
		TaxAuthority: r.Compliance.TaxAuthority,
		Lines:        lines,
		Subtotal:     tax.FormatCurrency(t.Subtotal),
		Shipping:     tax.FormatCurrency(t.ShippingCost),
		VATRate:      t.VATRate,
		VAT:          tax.FormatCurrency(t.VATAmount),
		Total:        tax.FormatCurrency(t.Total),
		PDF:          pdf,
	}
}

func recordReceipt(result string) {
	if telemetry.VAT != nil {
		telemetry.VAT.ReceiptsIssued.WithLabelValues(result).Inc()
	}
}
