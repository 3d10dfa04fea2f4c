package repositories

import (
	"context"

	"momoinvoice/internal/models"

	"github.com/google/uuid"
)

type BusinessRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
}

type businessRepo struct {
	db Pool
}

func NewBusinessRepo(db Pool) BusinessRepository {
	return &businessRepo{db: db}
}

func (r *businessRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	business := &models.Business{}
	query := `
		SELECT id, owner_id, name, slug, email, phone, whatsapp_number,
			paystack_subaccount_code, paystack_split_code, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&business.ID, &business.OwnerID, &business.Name, &business.Slug, &business.Email,
		&business.Phone, &business.WhatsappNumber, &business.PaystackSubaccountCode,
		&business.PaystackSplitCode, &business.CreatedAt, &business.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return business, nil
}
