package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContentInput struct {
	OwnerID  uuid.UUID
	Kind     string
	Body     string
	MediaURL string
}

// ContentService registers content for moderation. Text is pre-screened with
// the keyword filter before it is stored.
type ContentService struct {
	db     *gorm.DB
	filter *KeywordClassifier
}

func NewContentService(db *gorm.DB, filter *KeywordClassifier) *ContentService {
	return &ContentService{db: db, filter: filter}
}

func (s *ContentService) Register(ctx context.Context, appID string, in ContentInput) (*models.Content, error) {
	db := s.db.WithContext(ctx)

	var owner models.Account
	if err := db.Where("app_id = ? AND id = ?", appID, in.OwnerID).First(&owner).Error; err != nil {
		return nil, notFoundAs(err, ErrInvalidTarget)
	}
	if owner.Status != models.StatusActive {
		return nil, ErrAccountInactive
	}

	if s.filter != nil {
		if ok, reason := s.filter.Filter(in.Body); !ok {
			return nil, fmt.Errorf("%w: %s", ErrContentRejected, RejectionMessage(reason))
		}
	}

	kind := strings.TrimSpace(in.Kind)
	if kind == "" {
		kind = "post"
	}
	content := &models.Content{
		AppID:    appID,
		OwnerID:  in.OwnerID,
		Kind:     kind,
		Body:     in.Body,
		MediaURL: in.MediaURL,
	}
	if err := db.Create(content).Error; err != nil {
		return nil, fmt.Errorf("failed to create content: %w", err)
	}
	return content, nil
}
