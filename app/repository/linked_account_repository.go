package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lifeweave/lifeweave/app/models"
)

// linkedAccountRepository implements the LinkedAccountRepository interface
type linkedAccountRepository struct {
	db *gorm.DB
}

// NewLinkedAccountRepository creates a new linked account repository instance
func NewLinkedAccountRepository(db *gorm.DB) LinkedAccountRepository {
	return &linkedAccountRepository{db: db}
}

// Upsert creates the credential record or replaces the token columns of the
// existing (user, provider) row. The existing row's ID is written back into
// the passed account.
func (r *linkedAccountRepository) Upsert(account *models.LinkedAccount) error {
	var existing models.LinkedAccount
	err := r.db.Where("user_id = ? AND provider = ?", account.UserID, account.Provider).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(account).Error
	}
	if err != nil {
		return err
	}

	existing.ProviderUserID = account.ProviderUserID
	existing.AccessToken = account.AccessToken
	existing.RefreshToken = account.RefreshToken
	existing.ExpiresAt = account.ExpiresAt
	if err := r.db.Save(&existing).Error; err != nil {
		return err
	}
	account.ID = existing.ID
	account.CreatedAt = existing.CreatedAt
	return nil
}

// GetByID retrieves a linked account by its ID
func (r *linkedAccountRepository) GetByID(id uint) (*models.LinkedAccount, error) {
	var account models.LinkedAccount
	err := r.db.First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByUserAndProvider retrieves the single account for a (user, provider) pair
func (r *linkedAccountRepository) GetByUserAndProvider(userID uint, provider string) (*models.LinkedAccount, error) {
	var account models.LinkedAccount
	err := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListByUserID retrieves all linked accounts of one user
func (r *linkedAccountRepository) ListByUserID(userID uint) ([]models.LinkedAccount, error) {
	var accounts []models.LinkedAccount
	err := r.db.Where("user_id = ?", userID).Order("provider ASC").Find(&accounts).Error
	return accounts, err
}

// ListExpiring returns refreshable accounts whose credential expires inside the window
func (r *linkedAccountRepository) ListExpiring(window time.Duration) ([]models.LinkedAccount, error) {
	var accounts []models.LinkedAccount
	deadline := time.Now().Add(window)
	err := r.db.Where("expires_at IS NOT NULL AND expires_at < ? AND refresh_token <> ''", deadline).
		Find(&accounts).Error
	return accounts, err
}

// UpdateTokens rotates the credential columns of one account
func (r *linkedAccountRepository) UpdateTokens(id uint, accessToken, refreshToken string, expiresAt *time.Time) error {
	return r.db.Model(&models.LinkedAccount{}).Where("id = ?", id).Updates(map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_at":    expiresAt,
	}).Error
}

// Delete removes a linked account (explicit user action only)
func (r *linkedAccountRepository) Delete(id uint) error {
	return r.db.Delete(&models.LinkedAccount{}, id).Error
}
