package repository

import (
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/internal/model"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(tenant *model.Tenant) error {
	return r.db.Create(tenant).Error
}

func (r *TenantRepository) GetByID(id int64) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.Where("id = ?", id).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *TenantRepository) GetByDomain(domain string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.Where("domain = ?", domain).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *TenantRepository) GetBySubdomain(sub string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.Where("subdomain = ?", sub).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *TenantRepository) List() ([]*model.Tenant, error) {
	var tenants []*model.Tenant
	err := r.db.Order("id ASC").Find(&tenants).Error
	return tenants, err
}

func (r *TenantRepository) Update(tenant *model.Tenant) error {
	return r.db.Save(tenant).Error
}

func (r *TenantRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Tenant{}).Where("id = ?", id).Updates(fields).Error
}

func (r *TenantRepository) Delete(id int64) error {
	return r.db.Delete(&model.Tenant{}, id).Error
}

// ExistsByDomainOrSubdomain checks uniqueness, ignoring excludeID.
func (r *TenantRepository) ExistsByDomainOrSubdomain(domain, sub string, excludeID int64) (bool, error) {
	var count int64
	query := r.db.Model(&model.Tenant{}).Where("id <> ?", excludeID)
	switch {
	case domain != "" && sub != "":
		query = query.Where("domain = ? OR subdomain = ?", domain, sub)
	case domain != "":
		query = query.Where("domain = ?", domain)
	case sub != "":
		query = query.Where("subdomain = ?", sub)
	default:
		return false, nil
	}
	err := query.Count(&count).Error
	return count > 0, err
}
