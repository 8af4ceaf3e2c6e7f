package wati

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = InvoiceData{
	CustomerName:  "Asha",
	InvoiceNumber: "INV-1-ABC",
	TotalAmount:   1250.5,
	PDFURL:        "https://api.example.com/api/invoices/1/pdf",
}

func TestTemplateRegistryLayouts(t *testing.T) {
	reg := DefaultTemplates()

	ready := reg.Lookup("invoice_ready")
	assert.True(t, ready.AttachMedia)
	assert.Equal(t, []Parameter{
		{Name: "1", Value: "Asha"},
		{Name: "2", Value: "INV-1-ABC"},
		{Name: "3", Value: "1250.50"},
		{Name: "4", Value: sample.PDFURL},
	}, ready.Params(sample))

	noLink := sample
	noLink.PDFURL = ""
	assert.Len(t, ready.Params(noLink), 3)

	hv := reg.Lookup("hv_payment_success_02")
	assert.False(t, hv.AttachMedia)
	assert.Contains(t, hv.Params(sample), Parameter{Name: "plan_name", Value: "Invoice"})

	unknown := reg.Lookup("something_else")
	assert.False(t, reg.Known("something_else"))
	assert.False(t, unknown.AttachMedia)
	assert.Len(t, unknown.Params(sample), 4)
}

func TestParameterAcceptsBareStrings(t *testing.T) {
	var params []Parameter
	require.NoError(t, json.Unmarshal([]byte(`["Asha", {"name":"2","value":"INV"}, 42]`), &params))

	assert.Equal(t, []Parameter{
		{Name: "Asha", Value: "Asha"},
		{Name: "2", Value: "INV"},
		{Name: "42", Value: "42"},
	}, params)
}

func TestTemplateListFind(t *testing.T) {
	list := TemplateList{MessageTemplates: []MessageTemplate{
		{ElementName: "invoice_ready", Status: "APPROVED", Body: "Hi {{1}}, invoice {{2}} for {{3}}"},
		{ElementName: "draft", Status: "PENDING", Body: "Hello {{name}}"},
	}}

	found := list.Find("invoice_ready")
	require.NotNil(t, found)
	assert.Equal(t, []string{"{{1}}", "{{2}}", "{{3}}"}, Placeholders(found.Body))
	assert.Nil(t, list.Find("missing"))
	assert.Len(t, list.Approved(), 1)
	assert.Equal(t, []string{"{{name}}"}, Placeholders("Hello {{name}}"))
	assert.Empty(t, Placeholders("plain"))
}
