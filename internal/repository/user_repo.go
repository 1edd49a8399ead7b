package repository

import (
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail looks the user up inside one tenant instance.
func (r *UserRepository) GetByEmail(tenantID int64, email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("tenant_id = ? AND email = ?", tenantID, email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// IncrementUsed consumes one generation only while the user is under the
// total limit. It reports false when nothing was left.
func (r *UserRepository) IncrementUsed(id int64) (bool, error) {
	result := r.db.Model(&model.User{}).
		Where("id = ? AND generations_used < generations_limit + bonus_generations", id).
		Update("generations_used", gorm.Expr("generations_used + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DecrementUsed gives one generation back without going below zero.
func (r *UserRepository) DecrementUsed(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ? AND generations_used > 0", id).
		Update("generations_used", gorm.Expr("generations_used - 1")).Error
}

func (r *UserRepository) AddBonus(id int64, generations int) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("bonus_generations", gorm.Expr("bonus_generations + ?", generations)).Error
}

// ResetAllMonthly burns purchased generations spent beyond the tier allowance
// and zeroes usage. Columns are assigned in key order, so bonus is computed
// from the old usage on MySQL too.
func (r *UserRepository) ResetAllMonthly() (int64, error) {
	result := r.db.Model(&model.User{}).Where("generations_used > 0").Updates(map[string]interface{}{
		"bonus_generations": gorm.Expr(
			"CASE WHEN generations_used <= generations_limit THEN bonus_generations " +
				"WHEN bonus_generations - (generations_used - generations_limit) > 0 " +
				"THEN bonus_generations - (generations_used - generations_limit) ELSE 0 END"),
		"generations_used": 0,
	})
	return result.RowsAffected, result.Error
}

// CountResettable reports how many users a monthly reset would touch.
func (r *UserRepository) CountResettable() (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("generations_used > 0").Count(&count).Error
	return count, err
}
