package wati

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"invoice-messaging-backend/internal/services/money"
)

// InvoiceData is what an invoice notification can mention.
type InvoiceData struct {
	CustomerName  string
	InvoiceNumber string
	TotalAmount   float64
	InvoiceURL    string
	PDFURL        string
}

// Parameter is one template substitution.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UnmarshalJSON also accepts a bare scalar, which fills both name and value.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type plain Parameter
		var v plain
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = Parameter(v)
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	*p = Parameter{Name: s, Value: s}
	return nil
}

// TemplateSpec shapes InvoiceData into the parameters one template expects.
type TemplateSpec struct {
	Params func(InvoiceData) []Parameter
	// AttachMedia sends the PDF URL as media_url when one is known.
	AttachMedia bool
}

// TemplateRegistry maps provider template names to their parameter layout.
type TemplateRegistry struct {
	specs    map[string]TemplateSpec
	fallback TemplateSpec
}

func NewTemplateRegistry(fallback TemplateSpec) *TemplateRegistry {
	return &TemplateRegistry{specs: make(map[string]TemplateSpec), fallback: fallback}
}

func (r *TemplateRegistry) Register(name string, spec TemplateSpec) {
	r.specs[name] = spec
}

// Lookup returns the spec for name, or the fallback for unknown names.
func (r *TemplateRegistry) Lookup(name string) TemplateSpec {
	if spec, ok := r.specs[name]; ok {
		return spec
	}
	return r.fallback
}

func (r *TemplateRegistry) Known(name string) bool {
	_, ok := r.specs[name]
	return ok
}

// DefaultTemplates knows the invoice templates approved on the account.
func DefaultTemplates() *TemplateRegistry {
	r := NewTemplateRegistry(TemplateSpec{Params: positionalParams})
	r.Register("invoice_ready", TemplateSpec{Params: positionalParams, AttachMedia: true})
	r.Register("invoice_notification", TemplateSpec{
		Params: func(d InvoiceData) []Parameter {
			return []Parameter{
				{Name: "url", Value: d.PDFURL},
				{Name: "name", Value: d.CustomerName},
				{Name: "invoice", Value: d.InvoiceNumber},
				{Name: "amount", Value: money.Fixed(d.TotalAmount)},
			}
		},
		AttachMedia: true,
	})
	r.Register("hv_payment_success_02", TemplateSpec{
		Params: func(d InvoiceData) []Parameter {
			return []Parameter{
				{Name: "name", Value: d.CustomerName},
				{Name: "installment", Value: d.InvoiceNumber},
				{Name: "plan_name", Value: "Invoice"},
				{Name: "amount", Value: money.Fixed(d.TotalAmount)},
			}
		},
	})
	return r
}

// positionalParams fills {{1}}..{{3}}, plus {{4}} when a PDF link exists.
func positionalParams(d InvoiceData) []Parameter {
	params := []Parameter{
		{Name: "1", Value: d.CustomerName},
		{Name: "2", Value: d.InvoiceNumber},
		{Name: "3", Value: money.Fixed(d.TotalAmount)},
	}
	if d.PDFURL != "" {
		params = append(params, Parameter{Name: "4", Value: d.PDFURL})
	}
	return params
}

// MessageTemplate is the subset of the provider's template record we read.
type MessageTemplate struct {
	ElementName  string `json:"elementName"`
	Category     string `json:"category"`
	Status       string `json:"status"`
	Body         string `json:"body"`
	BodyOriginal string `json:"bodyOriginal"`
}

type TemplateList struct {
	MessageTemplates []MessageTemplate `json:"messageTemplates"`
}

func (l *TemplateList) Find(name string) *MessageTemplate {
	for i := range l.MessageTemplates {
		if l.MessageTemplates[i].ElementName == name {
			return &l.MessageTemplates[i]
		}
	}
	return nil
}

func (l *TemplateList) Approved() []MessageTemplate {
	var out []MessageTemplate
	for _, t := range l.MessageTemplates {
		if strings.EqualFold(t.Status, "APPROVED") {
			out = append(out, t)
		}
	}
	return out
}

var placeholderRe = regexp.MustCompile(`\{\{(\d+|[^}]+)\}\}`)

// Placeholders lists the {{...}} variables of a template body in order.
func Placeholders(body string) []string {
	matches := placeholderRe.FindAllString(body, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}
