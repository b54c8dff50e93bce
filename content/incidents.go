package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/vigia-social/vigia/models"
)

type CreateIncidentRequest struct {
	Title       string
	Description string
	Category    string
	Latitude    float64
	Longitude   float64
}

// Incidents are not moderated; they are created directly by authenticated
// users and exist so posts have a map location to attach to.
func (s *Store) CreateIncident(ctx context.Context, reporter models.Uid, req CreateIncidentRequest) (*models.Incident, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: incident title is required", ErrValidation)
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}

	inc := models.Incident{
		Reporter:    reporter,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if err := s.db.WithContext(ctx).Create(&inc).Error; err != nil {
		return nil, err
	}
	return &inc, nil
}

func (s *Store) GetIncident(ctx context.Context, id uint) (*models.Incident, error) {
	var inc models.Incident
	if err := s.db.WithContext(ctx).First(&inc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("incident %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &inc, nil
}

func (s *Store) ListIncidents(ctx context.Context, page, limit int) ([]models.Incident, int64, error) {
	page, limit = clampPage(page, limit)

	q := s.db.WithContext(ctx).Model(&models.Incident{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var incidents []models.Incident
	err := q.Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&incidents).Error
	if err != nil {
		return nil, 0, err
	}
	return incidents, total, nil
}

// ListIncidentsByReporter returns all incidents a user reported, newest
// first.
func (s *Store) ListIncidentsByReporter(ctx context.Context, reporter models.Uid) ([]models.Incident, error) {
	var incidents []models.Incident
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Find(&incidents, "reporter = ?", reporter).Error
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

// ListIncidentsByCategory returns incidents of one category, newest first.
func (s *Store) ListIncidentsByCategory(ctx context.Context, category string) ([]models.Incident, error) {
	var incidents []models.Incident
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Find(&incidents, "category = ?", category).Error
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

// SearchIncidents matches a term against title, description, and category.
func (s *Store) SearchIncidents(ctx context.Context, term string) ([]models.Incident, error) {
	like := "%" + strings.TrimSpace(term) + "%"
	var incidents []models.Incident
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Find(&incidents, "title LIKE ? OR description LIKE ? OR category LIKE ?", like, like, like).Error
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

// IncidentsInArea returns incidents inside a coordinate bounding box, newest
// first.
func (s *Store) IncidentsInArea(ctx context.Context, latMin, latMax, lngMin, lngMax float64) ([]models.Incident, error) {
	if latMin > latMax || lngMin > lngMax {
		return nil, fmt.Errorf("%w: empty bounding box", ErrValidation)
	}

	var incidents []models.Incident
	err := s.db.WithContext(ctx).
		Where("latitude BETWEEN ? AND ?", latMin, latMax).
		Where("longitude BETWEEN ? AND ?", lngMin, lngMax).
		Order("created_at desc").
		Find(&incidents).Error
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

type UpdateIncidentRequest struct {
	Title       *string
	Description *string
	Category    *string
	Latitude    *float64
	Longitude   *float64
}

// UpdateIncident applies a partial update. Only the reporter may edit their
// incident.
func (s *Store) UpdateIncident(ctx context.Context, id uint, requester models.Uid, req UpdateIncidentRequest) (*models.Incident, error) {
	inc, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Reporter != requester {
		return nil, ErrForbidden
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: incident title is required", ErrValidation)
		}
		inc.Title = title
	}
	if req.Description != nil {
		inc.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		inc.Category = strings.TrimSpace(*req.Category)
	}
	if req.Latitude != nil {
		if *req.Latitude < -90 || *req.Latitude > 90 {
			return nil, fmt.Errorf("%w: coordinates out of range", ErrValidation)
		}
		inc.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		if *req.Longitude < -180 || *req.Longitude > 180 {
			return nil, fmt.Errorf("%w: coordinates out of range", ErrValidation)
		}
		inc.Longitude = *req.Longitude
	}

	if err := s.db.WithContext(ctx).Save(inc).Error; err != nil {
		return nil, err
	}
	return inc, nil
}

// DeleteIncident removes an incident. Only the reporter may delete it, and
// only while no posts reference it.
func (s *Store) DeleteIncident(ctx context.Context, id uint, requester models.Uid) error {
	inc, err := s.GetIncident(ctx, id)
	if err != nil {
		return err
	}
	if inc.Reporter != requester {
		return ErrForbidden
	}

	var attached int64
	err = s.db.WithContext(ctx).Model(&models.Post{}).
		Where("incident = ?", id).
		Count(&attached).Error
	if err != nil {
		return err
	}
	if attached > 0 {
		return fmt.Errorf("incident has posts attached: %w", ErrForbidden)
	}

	return s.db.WithContext(ctx).Delete(&models.Incident{}, id).Error
}

// ListPostsForIncident returns the approved posts attached to an incident,
// newest first.
func (s *Store) ListPostsForIncident(ctx context.Context, incidentID uint) ([]models.Post, error) {
	if _, err := s.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}

	var posts []models.Post
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Find(&posts, "incident = ? AND state = ?", incidentID, models.StateApproved).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}
