package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"realnext/models"
)

// Store is the GORM-backed implementation of every lookup interface.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) FindByUserAndClient(ctx context.Context, userID, clientID uint) (*models.ClientUser, error) {
	var membership models.ClientUser
	err := s.db.WithContext(ctx).
		Preload("CustomRole").
		Where("user_id = ? AND client_id = ?", userID, clientID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (s *Store) FindClientByID(ctx context.Context, id uint) (*models.Client, error) {
	var client models.Client
	err := s.db.WithContext(ctx).First(&client, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// FindCurrent returns the newest trial or active subscription for the client,
// with the plan feature chain preloaded for entitlement resolution.
func (s *Store) FindCurrent(ctx context.Context, clientID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Preload("Plan.PlanFeatures").
		Preload("Plan.PlanFeatures.Feature").
		Where("client_id = ? AND status IN ?", clientID,
			[]string{models.SubscriptionStatusTrial, models.SubscriptionStatusActive}).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) FindRoleByID(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *Store) FindSystemRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).
		Where("client_id IS NULL AND name = ?", name).
		First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}
