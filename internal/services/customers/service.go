package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoice-messaging-backend/internal/apperr"
	"invoice-messaging-backend/internal/models"
	"invoice-messaging-backend/internal/repository"
)

type CustomerService struct {
	repo *repository.CustomerRepository
	log  *zap.Logger
}

func NewCustomerService(repo *repository.CustomerRepository, zl *zap.Logger) *CustomerService {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &CustomerService{repo: repo, log: zl.Named("customers")}
}

type CreateInput struct {
	Name           string
	Email          *string
	Phone          *string
	WhatsappNumber string
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name           *string
	Email          *string
	Phone          *string
	WhatsappNumber *string
}

func (s *CustomerService) Create(ctx context.Context, in CreateInput) (*models.Customer, error) {
	now := time.Now()
	customer := &models.Customer{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(in.Name),
		Email:          blankToNil(in.Email),
		Phone:          blankToNil(in.Phone),
		WhatsappNumber: strings.TrimSpace(in.WhatsappNumber),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if customer.Name == "" {
		return nil, apperr.Invalid("name", "required", "name is required")
	}
	if customer.WhatsappNumber == "" {
		return nil, apperr.Invalid("whatsappNumber", "required", "whatsappNumber is required")
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.log.Info("customer created", zap.String("customer_id", customer.ID.String()))
	return customer, nil
}

// Get returns nil when the customer does not exist.
func (s *CustomerService) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *CustomerService) List(ctx context.Context) ([]models.Customer, error) {
	return s.repo.List(ctx)
}

func (s *CustomerService) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Customer, error) {
	changes := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "required", "name must not be empty")
		}
		changes["name"] = name
	}
	if in.WhatsappNumber != nil {
		number := strings.TrimSpace(*in.WhatsappNumber)
		if number == "" {
			return nil, apperr.Invalid("whatsappNumber", "required", "whatsappNumber must not be empty")
		}
		changes["whatsapp_number"] = number
	}
	if in.Email != nil {
		changes["email"] = blankToNil(in.Email)
	}
	if in.Phone != nil {
		changes["phone"] = blankToNil(in.Phone)
	}

	if len(changes) > 0 {
		changes["updated_at"] = time.Now()
		if err := s.repo.Update(ctx, id, changes); err != nil {
			return nil, fmt.Errorf("update customer %s: %w", id, err)
		}
	}

	customer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("customer %s: %w", id, apperr.ErrNotFound)
	}
	return customer, nil
}

// Delete refuses to remove a customer that still has invoices.
func (s *CustomerService) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.CountInvoices(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("customer %s has %d invoices: %w", id, n, apperr.ErrConflict)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete customer %s: %w", id, err)
	}
	s.log.Info("customer deleted", zap.String("customer_id", id.String()))
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
