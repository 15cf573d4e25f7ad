package service

import (
	"context"
	"strings"

	"food-delivery/internal/apperr"
	"food-delivery/internal/models"
	"food-delivery/internal/store"
	"food-delivery/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerService registers and looks up customers
type CustomerService struct {
	store  DataStore
	logger *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(store DataStore) *CustomerService {
	return &CustomerService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// RegisterCustomer creates a customer with an empty order history
func (s *CustomerService) RegisterCustomer(ctx context.Context, name, email, address string) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.RegisterCustomer")
	defer span.End()

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, apperr.InvalidArgument("customer name is required")
	}
	if !validEmail(email) {
		return nil, apperr.InvalidArgument("invalid email %q", email)
	}

	var customer *models.Customer
	err := s.store.Update(ctx, func(state *store.State) error {
		emails := make([]string, 0, len(state.Customers))
		for _, c := range state.Customers {
			emails = append(emails, c.Email)
		}
		if emailTaken(email, emails) {
			return apperr.AlreadyExists("customer with email %s already exists", email)
		}

		customer = &models.Customer{
			UserID:       uuid.New().String(),
			Name:         name,
			Email:        email,
			Role:         models.RoleCustomer,
			Address:      strings.TrimSpace(address),
			OrderHistory: []string{},
		}
		state.Customers[customer.UserID] = customer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Customer registered", zap.String("customer_id", customer.UserID))
	return customer, nil
}

// GetCustomer returns a customer by id
func (s *CustomerService) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.GetCustomer")
	defer span.End()

	var customer *models.Customer
	err := s.store.View(ctx, func(state *store.State) error {
		c, ok := state.Customers[customerID]
		if !ok {
			return apperr.NotFound("customer %s not found", customerID)
		}
		customer = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}
