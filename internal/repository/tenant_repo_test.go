package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xauti/content_go_server/internal/testutil"
)

func TestTenantRepository_Lookup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTenantRepository(db)
	tenant := testutil.TestTenant(t, db, testutil.WithSubdomain("acme"), testutil.WithDomain("content.acme.com"))

	found, err := repo.GetBySubdomain("acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, found.ID)

	found, err = repo.GetByDomain("content.acme.com")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, found.ID)

	_, err = repo.GetBySubdomain("nobody")
	assert.Error(t, err)
}

func TestTenantRepository_ExistsByDomainOrSubdomain(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTenantRepository(db)
	tenant := testutil.TestTenant(t, db, testutil.WithSubdomain("acme"))

	exists, err := repo.ExistsByDomainOrSubdomain("", "acme", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByDomainOrSubdomain("", "acme", tenant.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByDomainOrSubdomain("", "", 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTenantRepository_InactiveIsStored(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTenantRepository(db)
	tenant := testutil.TestTenant(t, db, testutil.WithInactive())

	found, err := repo.GetByID(tenant.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)

	require.NoError(t, repo.Delete(tenant.ID))
	_, err = repo.GetByID(tenant.ID)
	assert.Error(t, err)
}
