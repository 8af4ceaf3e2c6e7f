package wati

import (
	"context"
	"fmt"
	"strings"

	"invoice-messaging-backend/internal/services/money"
)

// SendInvoiceNotification tells a customer their invoice is ready. A
// configured template name selects template sending; otherwise a session
// text is sent.
func (c *Client) SendInvoiceNotification(ctx context.Context, destination string, data InvoiceData) SendResult {
	name := c.cfg.TemplateName
	if name == "" {
		return c.SendSessionMessage(ctx, destination, InvoiceText(data))
	}

	spec := c.templates.Lookup(name)
	msg := TemplateMessage{
		Destination:   destination,
		TemplateName:  name,
		BroadcastName: name,
		Parameters:    spec.Params(data),
	}
	if spec.AttachMedia && data.PDFURL != "" {
		msg.MediaURL = data.PDFURL
	}
	return c.SendTemplateMessage(ctx, msg)
}

// InvoiceText is the free-form session message for an invoice.
func InvoiceText(data InvoiceData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s!\n\n", data.CustomerName)
	b.WriteString("Your invoice has been generated:\n")
	fmt.Fprintf(&b, "Invoice Number: %s\n", data.InvoiceNumber)
	fmt.Fprintf(&b, "Total Amount: %s\n\n", money.Format(money.MessageSymbol, data.TotalAmount))
	if data.PDFURL != "" {
		fmt.Fprintf(&b, "Download invoice: %s\n\n", data.PDFURL)
	}
	b.WriteString("Thank you for your business!")
	return b.String()
}
