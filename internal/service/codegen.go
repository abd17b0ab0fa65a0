package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"farmlink/internal/database"
	"farmlink/internal/domain"
	"farmlink/internal/metrics"
	"farmlink/internal/models"
	"farmlink/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// codeRandomBytes gives 8 hex characters, so codes are prefix + 8 = 10 chars.
const codeRandomBytes = 4

// GenerateCode returns prefix followed by random uppercase hex, e.g. "FF3A9C01B2".
func GenerateCode(prefix string) (string, error) {
	b := make([]byte, codeRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + strings.ToUpper(hex.EncodeToString(b)), nil
}

// CodeGenerator writes collision-free referral codes. The existence probe is
// advisory; the unique indexes are the real check, so each candidate is
// written inside a savepoint and a duplicate key simply triggers the next
// candidate, up to maxAttempts.
type CodeGenerator struct {
	maxAttempts int
	newCode     func(prefix string) (string, error)
}

func NewCodeGenerator(maxAttempts int) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &CodeGenerator{maxAttempts: maxAttempts, newCode: GenerateCode}
}

// candidate draws codes until the probe finds a free one or attempts run out.
func (g *CodeGenerator) candidate(repo *repository.ReferralRepository, prefix string, attempt *int) (string, error) {
	for *attempt < g.maxAttempts {
		*attempt++
		code, err := g.newCode(prefix)
		if err != nil {
			return "", err
		}
		taken, err := repo.CodeExists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		metrics.CodeCollisions.Inc()
	}
	return "", fmt.Errorf("%w after %d attempts (prefix %s)", domain.ErrExhaustedRetries, g.maxAttempts, prefix)
}

// EnsureCodes fills whichever of the profile's two codes is missing. tx must be
// the transaction holding the profile row lock. The profile is updated in place.
func (g *CodeGenerator) EnsureCodes(tx *gorm.DB, p *models.ReferralProfile) error {
	repo := repository.NewReferralRepository(tx)
	for _, kind := range []domain.CodeKind{domain.CodeKindFarmer, domain.CodeKindCustomer} {
		current := p.FarmerReferralCode
		if kind == domain.CodeKindCustomer {
			current = p.CustomerReferralCode
		}
		if current != nil {
			continue
		}
		code, err := g.assign(tx, repo, p.ID, kind)
		if err != nil {
			return err
		}
		if kind == domain.CodeKindFarmer {
			p.FarmerReferralCode = &code
		} else {
			p.CustomerReferralCode = &code
		}
	}
	return nil
}

func (g *CodeGenerator) assign(tx *gorm.DB, repo *repository.ReferralRepository, profileID uuid.UUID, kind domain.CodeKind) (string, error) {
	attempt := 0
	for {
		code, err := g.candidate(repo, kind.Prefix(), &attempt)
		if err != nil {
			return "", err
		}
		err = tx.Transaction(func(sp *gorm.DB) error {
			return repo.With(sp).AssignCode(profileID, kind, code)
		})
		if err == nil {
			return code, nil
		}
		if !database.IsDuplicateKey(err) {
			return "", err
		}
		metrics.CodeCollisions.Inc()
	}
}

// CreateProfile inserts a new profile for userID with both codes set. A
// duplicate key on a code retries with fresh codes. A duplicate key on
// user_id (a concurrent creator won) is reported as errProfileExists so the
// caller can re-read the row under lock.
func (g *CodeGenerator) CreateProfile(tx *gorm.DB, userID uuid.UUID) (*models.ReferralProfile, error) {
	repo := repository.NewReferralRepository(tx)
	attempt := 0
	for {
		farmerCode, err := g.candidate(repo, domain.FarmerCodePrefix, &attempt)
		if err != nil {
			return nil, err
		}
		customerCode, err := g.candidate(repo, domain.CustomerCodePrefix, &attempt)
		if err != nil {
			return nil, err
		}
		p := &models.ReferralProfile{
			UserID:               userID,
			FarmerReferralCode:   &farmerCode,
			CustomerReferralCode: &customerCode,
			ReferralStatus:       domain.ProfilePending,
		}
		err = tx.Transaction(func(sp *gorm.DB) error {
			return repo.With(sp).CreateProfile(p)
		})
		if err == nil {
			return p, nil
		}
		if !database.IsDuplicateKey(err) {
			return nil, err
		}
		if _, lookupErr := repo.GetProfileByUserID(userID); lookupErr == nil {
			return nil, errProfileExists
		}
		metrics.CodeCollisions.Inc()
	}
}

// errProfileExists is internal: the profile appeared between the locked read
// and the insert.
var errProfileExists = fmt.Errorf("referral profile already exists: %w", database.ErrConflict)
