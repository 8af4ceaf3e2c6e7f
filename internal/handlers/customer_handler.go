package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoice-messaging-backend/internal/apperr"
	"invoice-messaging-backend/internal/services/customers"
)

type CustomerHandler struct {
	service *customers.CustomerService
	log     *zap.Logger
}

func NewCustomerHandler(s *customers.CustomerService, zl *zap.Logger) *CustomerHandler {
	return &CustomerHandler{service: s, log: zl}
}

type createCustomerRequest struct {
	Name           string  `json:"name" binding:"required"`
	Email          *string `json:"email" binding:"omitempty,email"`
	Phone          *string `json:"phone"`
	WhatsappNumber string  `json:"whatsappNumber" binding:"required,min=10"`
}

type updateCustomerRequest struct {
	Name           *string `json:"name" binding:"omitempty,min=1"`
	Email          *string `json:"email" binding:"omitempty,email"`
	Phone          *string `json:"phone"`
	WhatsappNumber *string `json:"whatsappNumber" binding:"omitempty,min=10"`
}

func (h *CustomerHandler) Create(c *gin.Context) {
	var req createCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.service.Create(c.Request.Context(), customers.CreateInput{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		WhatsappNumber: req.WhatsappNumber,
	})
	if err != nil {
		respondError(c, h.log, err, "Customer")
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *CustomerHandler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Customer")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "customer")
	if !ok {
		return
	}

	customer, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, "Customer")
		return
	}
	if customer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "customer")
	if !ok {
		return
	}
	var req updateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.service.Update(c.Request.Context(), id, customers.UpdateInput{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		WhatsappNumber: req.WhatsappNumber,
	})
	if err != nil {
		respondError(c, h.log, err, "Customer")
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "customer")
	if !ok {
		return
	}

	err := h.service.Delete(c.Request.Context(), id)
	if errors.Is(err, apperr.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "Customer has invoices and cannot be deleted"})
		return
	}
	if err != nil {
		respondError(c, h.log, err, "Customer")
		return
	}
	c.Status(http.StatusNoContent)
}
