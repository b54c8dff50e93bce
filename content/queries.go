package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/vigia-social/vigia/models"
)

type CreateQueryRequest struct {
	Kind     models.QueryKind
	Content  string
	Response string
}

// CreateQuery records a user question and its answer in the user's history.
func (s *Store) CreateQuery(ctx context.Context, author models.Uid, req CreateQueryRequest) (*models.Query, error) {
	if req.Kind != models.QueryText && req.Kind != models.QueryVoice {
		return nil, fmt.Errorf("%w: unknown query kind %q", ErrValidation, req.Kind)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: query content is required", ErrValidation)
	}
	response := strings.TrimSpace(req.Response)
	if response == "" {
		return nil, fmt.Errorf("%w: query response is required", ErrValidation)
	}

	q := models.Query{
		Author:   author,
		Kind:     req.Kind,
		Content:  content,
		Response: response,
	}
	if err := s.db.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQueriesByAuthor returns the user's query history, newest first.
func (s *Store) ListQueriesByAuthor(ctx context.Context, author models.Uid) ([]models.Query, error) {
	var queries []models.Query
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Find(&queries, "author = ?", author).Error
	if err != nil {
		return nil, err
	}
	return queries, nil
}

// GetQuery returns one history entry. A query belonging to another user looks
// the same as one that does not exist.
func (s *Store) GetQuery(ctx context.Context, id uint, requester models.Uid) (*models.Query, error) {
	var q models.Query
	err := s.db.WithContext(ctx).
		First(&q, "id = ? AND author = ?", id, requester).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("query %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &q, nil
}
