package customer

import (
	"context"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/core/types"
	"produceledger/internal/domain"
)

// Service provides business logic for the Customer catalog.
type Service struct {
	*domain.CatalogService[*Customer]
	dues DueSource
}

func NewService(repo Repository) *Service {
	return &Service{CatalogService: domain.NewCatalogService[*Customer](repo, nil, "customer")}
}

// SetDueSource wires the sales ledger used for credit evaluation.
// Set once at startup, before serving requests.
func (s *Service) SetDueSource(dues DueSource) {
	s.dues = dues
}

// Credit returns the customer's total due and credit status.
func (s *Service) Credit(ctx context.Context, customerID id.ID) (*Credit, error) {
	c, err := s.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if s.dues == nil {
		return nil, apperror.NewInternal(nil).WithDetail("missing", "due_source")
	}
	due, err := s.dues.CustomerDue(ctx, customerID)
	if err != nil {
		return nil, err
	}
	due = types.Round2(due)

	status, over := EvaluateCredit(c.CreditLimit, due)
	return &Credit{
		CustomerID:        c.ID,
		CreditLimit:       c.CreditLimit,
		TotalDue:          due,
		Status:            status,
		IsOverCreditLimit: over,
	}, nil
}
