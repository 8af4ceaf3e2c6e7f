package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoice-messaging-backend/internal/apperr"
	"invoice-messaging-backend/internal/models"
	"invoice-messaging-backend/internal/repository"
	"invoice-messaging-backend/internal/services/invoicing"
)

type InvoiceHandler struct {
	service *invoicing.InvoiceService
	log     *zap.Logger
}

func NewInvoiceHandler(s *invoicing.InvoiceService, zl *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{service: s, log: zl}
}

type invoiceItemRequest struct {
	Description string  `json:"description" binding:"required"`
	Quantity    int     `json:"quantity" binding:"required,gt=0"`
	Price       float64 `json:"price" binding:"required,gt=0"`
}

type createInvoiceRequest struct {
	CustomerID string               `json:"customerId" binding:"required,uuid"`
	Items      []invoiceItemRequest `json:"items" binding:"required,min=1,dive"`
}

type invoiceResponse struct {
	*models.Invoice
	invoicing.Links
	LatestDelivery *models.DeliveryMessage `json:"latestDelivery,omitempty"`
}

type createInvoiceResponse struct {
	invoiceResponse
	PDFError      string                   `json:"pdfError,omitempty"`
	MessageStatus *invoicing.MessageStatus `json:"messageStatus,omitempty"`
}

func (h *InvoiceHandler) present(inv *models.Invoice) invoiceResponse {
	return invoiceResponse{
		Invoice:        inv,
		Links:          h.service.URLs(inv),
		LatestDelivery: inv.LatestDelivery(),
	}
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	var req createInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	in := invoicing.CreateInput{
		CustomerID: uuid.MustParse(req.CustomerID),
		Items:      make([]invoicing.ItemInput, len(req.Items)),
	}
	for i, it := range req.Items {
		in.Items[i] = invoicing.ItemInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       it.Price,
		}
	}

	res, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		resource := "Invoice"
		if errors.Is(err, apperr.ErrNotFound) {
			resource = "Customer"
		}
		respondError(c, h.log, err, resource)
		return
	}

	c.JSON(http.StatusCreated, createInvoiceResponse{
		invoiceResponse: invoiceResponse{
			Invoice:        res.Invoice,
			Links:          res.Links,
			LatestDelivery: res.Invoice.LatestDelivery(),
		},
		PDFError:      res.PDFError,
		MessageStatus: res.MessageStatus,
	})
}

func (h *InvoiceHandler) List(c *gin.Context) {
	filter := repository.InvoiceFilter{Query: c.Query("q")}
	if raw := c.Query("customerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer ID"})
			return
		}
		filter.CustomerID = &id
	}

	invoices, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err, "Invoice")
		return
	}

	out := make([]invoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = h.present(&invoices[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "invoice")
	if !ok {
		return
	}

	inv, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, "Invoice")
		return
	}
	if inv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}
	c.JSON(http.StatusOK, h.present(inv))
}

// PDF streams the stored document inline.
func (h *InvoiceHandler) PDF(c *gin.Context) {
	id, ok := parseID(c, "id", "invoice")
	if !ok {
		return
	}

	file, err := h.service.OpenPDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, "PDF")
		return
	}
	defer file.File.Close()

	c.DataFromReader(http.StatusOK, file.Size, "application/pdf", file.File, map[string]string{
		"Content-Disposition": `inline; filename="` + file.Filename + `"`,
	})
}

// Public resolves a share token and redirects to the PDF.
func (h *InvoiceHandler) Public(c *gin.Context) {
	inv, err := h.service.GetByPublicToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.log, err, "Invoice")
		return
	}
	if inv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}
	c.Redirect(http.StatusFound, h.service.PDFURL(inv.ID))
}

func (h *InvoiceHandler) Dashboard(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Dashboard")
		return
	}
	c.JSON(http.StatusOK, d)
}
