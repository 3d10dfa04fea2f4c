package repositories

import (
	"context"

	"momoinvoice/internal/models"

	"github.com/google/uuid"
)

type PaymentMethodRepository interface {
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.PaymentMethod, error)
}

type paymentMethodRepo struct {
	db Pool
}

func NewPaymentMethodRepo(db Pool) PaymentMethodRepository {
	return &paymentMethodRepo{db: db}
}

func (r *paymentMethodRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.PaymentMethod, error) {
	method := &models.PaymentMethod{}
	query := `
		SELECT id, business_id, label, provider, account_name, account_number, instructions, is_default
		FROM payment_methods
		WHERE business_id = $1 AND id = $2
	`
	err := conn(ctx, r.db).QueryRow(ctx, query, businessID, id).Scan(
		&method.ID, &method.BusinessID, &method.Label, &method.Provider,
		&method.AccountName, &method.AccountNumber, &method.Instructions, &method.IsDefault,
	)
	if err != nil {
		return nil, err
	}
	return method, nil
}
