package repositories

import (
	"context"

	"momoinvoice/internal/models"

	"github.com/google/uuid"
)

type ClientRepository interface {
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Client, error)
}

type clientRepo struct {
	db Pool
}

func NewClientRepo(db Pool) ClientRepository {
	return &clientRepo{db: db}
}

func (r *clientRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Client, error) {
	client := &models.Client{}
	query := `
		SELECT id, business_id, full_name, email, phone, whatsapp_number, created_at
		FROM clients
		WHERE business_id = $1 AND id = $2
	`
	err := conn(ctx, r.db).QueryRow(ctx, query, businessID, id).Scan(
		&client.ID, &client.BusinessID, &client.FullName, &client.Email,
		&client.Phone, &client.WhatsappNumber, &client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}
