package repository

import (
	"errors"

	"farmlink/internal/domain"
	"farmlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository is the user directory the referral ledger consults for
// identity and role.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) With(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return r.db.Create(u).Error
}

// FindUser returns the user or domain.ErrUserNotFound.
func (r *UserRepository) FindUser(id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.db.First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}
