package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoice-messaging-backend/internal/services/invoicing"
	"invoice-messaging-backend/internal/services/wati"
)

// WatiAPI is the slice of the provider client the operator endpoints use.
type WatiAPI interface {
	GetMessageTemplates(ctx context.Context, pageSize int) (*wati.TemplateList, error)
	GetMessageStatus(ctx context.Context, messageID string) (map[string]any, error)
	SendTemplateMessage(ctx context.Context, msg wati.TemplateMessage) wati.SendResult
	TemplateName() string
}

type WatiHandler struct {
	invoices *invoicing.InvoiceService
	client   WatiAPI
	log      *zap.Logger
}

// NewWatiHandler accepts a nil client when the integration is disabled;
// only the webhook keeps working then.
func NewWatiHandler(invoices *invoicing.InvoiceService, client WatiAPI, zl *zap.Logger) *WatiHandler {
	return &WatiHandler{invoices: invoices, client: client, log: zl}
}

type webhookRequest struct {
	MessageID string          `json:"messageId"`
	Status    string          `json:"status"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Webhook receives delivery receipts from the provider.
func (h *WatiHandler) Webhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.MessageID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageId is required"})
		return
	}

	updated, err := h.invoices.RecordDeliveryStatus(c.Request.Context(), invoicing.StatusUpdate{
		MessageID: req.MessageID,
		Status:    req.Status,
		Timestamp: parseTimestamp(req.Timestamp),
	})
	if err != nil {
		h.log.Error("webhook processing failed", zap.String("message_id", req.MessageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

// parseTimestamp accepts RFC 3339 strings or unix seconds/milliseconds.
// Anything else yields the zero time.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		raw = json.RawMessage(s)
	}

	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || n <= 0 || math.IsInf(n, 0) {
		return time.Time{}
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n))
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func (h *WatiHandler) enabled(c *gin.Context) bool {
	if h.client == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WATI integration is disabled"})
		return false
	}
	return true
}

type templateView struct {
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Category     string    `json:"category,omitempty"`
	Body         string    `json:"body"`
	BodyOriginal string    `json:"bodyOriginal,omitempty"`
	Variables    variables `json:"variables"`
}

type variables struct {
	Body         []string `json:"body"`
	BodyOriginal []string `json:"bodyOriginal"`
}

// Templates shows how a template is registered with the provider, or the
// approved alternatives when it is missing.
func (h *WatiHandler) Templates(c *gin.Context) {
	if !h.enabled(c) {
		return
	}

	name := c.Query("name")
	if name == "" {
		name = h.client.TemplateName()
	}

	list, err := h.client.GetMessageTemplates(c.Request.Context(), 0)
	if err != nil {
		h.providerError(c, "Failed to fetch templates", err)
		return
	}

	if t := list.Find(name); t != nil {
		c.JSON(http.StatusOK, gin.H{"found": true, "template": toView(*t)})
		return
	}

	approved := list.Approved()
	available := make([]templateView, 0, len(approved))
	for _, t := range approved {
		available = append(available, toView(t))
	}
	c.JSON(http.StatusOK, gin.H{"found": false, "name": name, "available": available})
}

func toView(t wati.MessageTemplate) templateView {
	return templateView{
		Name:         t.ElementName,
		Status:       t.Status,
		Category:     t.Category,
		Body:         t.Body,
		BodyOriginal: t.BodyOriginal,
		Variables: variables{
			Body:         wati.Placeholders(t.Body),
			BodyOriginal: wati.Placeholders(t.BodyOriginal),
		},
	}
}

type testTemplateRequest struct {
	PhoneNumber  string           `json:"phoneNumber" binding:"required"`
	TemplateName string           `json:"templateName"`
	Parameters   []wati.Parameter `json:"parameters"`
	MediaURL     string           `json:"mediaUrl" binding:"omitempty,url"`
}

// TestTemplate sends an arbitrary template so operators can check wiring.
func (h *WatiHandler) TestTemplate(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var req testTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.TemplateName == "" {
		req.TemplateName = h.client.TemplateName()
	}
	if req.TemplateName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "templateName is required"})
		return
	}

	result := h.client.SendTemplateMessage(c.Request.Context(), wati.TemplateMessage{
		Destination:   req.PhoneNumber,
		TemplateName:  req.TemplateName,
		BroadcastName: req.TemplateName,
		Parameters:    req.Parameters,
		MediaURL:      req.MediaURL,
	})

	switch r := result.(type) {
	case wati.Accepted:
		c.JSON(http.StatusOK, gin.H{"success": true, "messageId": r.MessageID})
	case wati.Rejected:
		c.JSON(http.StatusOK, gin.H{
			"success":    false,
			"error":      r.Message,
			"kind":       r.Kind,
			"statusCode": r.StatusCode,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// MessageStatus passes the provider's record for one message through.
func (h *WatiHandler) MessageStatus(c *gin.Context) {
	if !h.enabled(c) {
		return
	}

	status, err := h.client.GetMessageStatus(c.Request.Context(), c.Param("messageId"))
	if err != nil {
		h.providerError(c, "Failed to fetch message status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *WatiHandler) providerError(c *gin.Context, msg string, err error) {
	h.log.Warn(msg, zap.Error(err))

	var apiErr *wati.APIError
	if errors.As(err, &apiErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": msg, "details": apiErr.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": msg})
}
