package guest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/models"
)

const purchasesPath = "/guest-course-purchases"

type PurchaseService struct {
	client *api.Client
	retry  RetryConfig
}

func NewPurchaseService(client *api.Client, retry RetryConfig) *PurchaseService {
	return &PurchaseService{client: client, retry: retry}
}

// Create is never retried: a lost response could mean a record exists.
func (s *PurchaseService) Create(ctx context.Context, req models.CreatePurchaseRequest, key string) (*models.CreatePurchaseResponse, error) {
	var out models.CreatePurchaseResponse
	err := s.client.Post(ctx, purchasesPath, req, &out, "Failed to create course purchase", api.WithIdempotencyKey(key))
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	return &out, nil
}

func (s *PurchaseService) Get(ctx context.Context, id string) (*models.GuestCoursePurchase, error) {
	var out models.GuestCoursePurchase
	if err := s.client.Get(ctx, purchasesPath+"/"+url.PathEscape(id), &out, "Failed to fetch course purchase"); err != nil {
		return nil, fmt.Errorf("get purchase %s: %w", id, err)
	}
	return &out, nil
}

func (s *PurchaseService) UpdatePayment(ctx context.Context, id string, upd models.PaymentStatusUpdate, key string) (*models.GuestCoursePurchase, error) {
	var out models.GuestCoursePurchase
	path := purchasesPath + "/" + url.PathEscape(id) + "/payment"
	err := retryUpdate(ctx, s.retry, "purchase payment", func() error {
		return s.client.Put(ctx, path, upd, &out, "Failed to update payment status", api.WithIdempotencyKey(key))
	})
	if err != nil {
		return nil, fmt.Errorf("update purchase %s payment: %w", id, err)
	}
	return &out, nil
}

// GetByAccessCode looks a purchase up by the code mailed to the customer.
func (s *PurchaseService) GetByAccessCode(ctx context.Context, code string) (*models.GuestCoursePurchase, error) {
	var out models.GuestCoursePurchase
	if err := s.client.Get(ctx, purchasesPath+"/access/"+url.PathEscape(code), &out, "Failed to verify course access"); err != nil {
		return nil, fmt.Errorf("verify access code: %w", err)
	}
	return &out, nil
}
