package repository

import (
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/internal/model"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) WithTx(tx *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: tx}
}

func (r *PurchaseRepository) Create(p *model.GenerationPurchase) error {
	return r.db.Create(p).Error
}

func (r *PurchaseRepository) ExistsByPaymentID(paymentID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.GenerationPurchase{}).Where("stripe_payment_id = ?", paymentID).Count(&count).Error
	return count > 0, err
}

func (r *PurchaseRepository) ListByUserID(userID int64) ([]*model.GenerationPurchase, error) {
	var purchases []*model.GenerationPurchase
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&purchases).Error
	return purchases, err
}
