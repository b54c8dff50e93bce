package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"

	"github.com/vigia-social/vigia/models"
)

const maxPageSize = 50

// Store is the repository for posts, comments, and incidents. All domain
// validation that depends on stored state (parent approved, not self-target)
// lives here; input shape validation stays at the API boundary.
type Store struct {
	db *gorm.DB

	// author display names, keyed by uid. names change rarely and are only
	// used for notification payloads, so a small cache is enough.
	names *lru.TwoQueueCache[models.Uid, string]

	log *slog.Logger
}

func NewStore(db *gorm.DB) (*Store, error) {
	for _, m := range []any{&models.User{}, &models.Incident{}, &models.Post{}, &models.Comment{}, &models.Query{}} {
		if err := db.AutoMigrate(m); err != nil {
			return nil, fmt.Errorf("migrating schema: %w", err)
		}
	}

	names, err := lru.New2Q[models.Uid, string](1024)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:    db,
		names: names,
		log:   slog.Default().With("system", "content"),
	}, nil
}

type CreatePostRequest struct {
	Body       *string
	MediaURL   *string
	IncidentID *uint
}

// CreatePost persists a new pending post. The caller must already have
// authenticated the author; media must already be uploaded.
func (s *Store) CreatePost(ctx context.Context, author models.Uid, req CreatePostRequest) (*models.Post, error) {
	body := req.Body
	if body != nil {
		trimmed := strings.TrimSpace(*body)
		if trimmed == "" {
			body = nil
		} else {
			body = &trimmed
		}
	}
	if body == nil && req.MediaURL == nil {
		return nil, fmt.Errorf("%w: must provide body text or media", ErrValidation)
	}

	if req.IncidentID != nil {
		var inc models.Incident
		if err := s.db.WithContext(ctx).First(&inc, *req.IncidentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("incident %d: %w", *req.IncidentID, ErrNotFound)
			}
			return nil, err
		}
	}

	post := models.Post{
		Author:   author,
		Incident: req.IncidentID,
		Body:     body,
		MediaURL: req.MediaURL,
		State:    models.StatePending,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, err
	}

	return &post, nil
}

type CreateCommentRequest struct {
	PostID   *uint
	ParentID *uint
	Body     string
}

// CreateComment persists a new pending comment, either directly on a post or
// as a reply to a top-level comment. The parent content must be approved, and
// users cannot target their own content. Reply depth is capped at one level.
func (s *Store) CreateComment(ctx context.Context, author models.Uid, req CreateCommentRequest) (*models.Comment, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: comment body is required", ErrValidation)
	}

	comment := models.Comment{
		Author: author,
		Body:   body,
		State:  models.StatePending,
	}

	switch {
	case req.ParentID != nil:
		var parent models.Comment
		err := s.db.WithContext(ctx).
			First(&parent, "id = ? AND state = ?", *req.ParentID, models.StateApproved).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("parent comment %d: %w", *req.ParentID, ErrNotFound)
			}
			return nil, err
		}
		if parent.Parent != nil {
			return nil, fmt.Errorf("%w: replies to replies are not supported", ErrValidation)
		}
		if parent.Author == author {
			return nil, fmt.Errorf("replying to your own comment: %w", ErrOwnContent)
		}
		comment.Post = parent.Post
		comment.Parent = &parent.ID

	case req.PostID != nil:
		post, err := s.approvedPost(ctx, *req.PostID)
		if err != nil {
			return nil, err
		}
		if post.Author == author {
			return nil, fmt.Errorf("commenting on your own post: %w", ErrOwnContent)
		}
		comment.Post = post.ID

	default:
		return nil, fmt.Errorf("%w: must reference a post or a parent comment", ErrValidation)
	}

	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, err
	}

	return &comment, nil
}

func (s *Store) approvedPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		First(&post, "id = ? AND state = ?", id, models.StateApproved).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &post, nil
}

// GetPost returns a post in any moderation state. Visibility rules are the
// caller's concern.
func (s *Store) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &post, nil
}

func (s *Store) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &comment, nil
}

// ListPosts returns approved posts, newest first.
func (s *Store) ListPosts(ctx context.Context, page, limit int) ([]models.Post, int64, error) {
	page, limit = clampPage(page, limit)

	q := s.db.WithContext(ctx).Model(&models.Post{}).Where("state = ?", models.StateApproved)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	err := q.Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListPostsByAuthor returns all of a user's own posts regardless of state.
func (s *Store) ListPostsByAuthor(ctx context.Context, author models.Uid) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Find(&posts, "author = ?", author).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// CommentThread is a top-level comment together with its approved replies.
type CommentThread struct {
	models.Comment
	Replies []models.Comment `json:"replies"`
}

// ListCommentsForPost returns approved top-level comments on an approved
// post, oldest first, each with its approved replies.
func (s *Store) ListCommentsForPost(ctx context.Context, postID uint, page, limit int) ([]CommentThread, int64, error) {
	if _, err := s.approvedPost(ctx, postID); err != nil {
		return nil, 0, err
	}

	page, limit = clampPage(page, limit)

	q := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post = ? AND state = ? AND parent IS NULL", postID, models.StateApproved)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tops []models.Comment
	err := q.Order("created_at asc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&tops).Error
	if err != nil {
		return nil, 0, err
	}

	threads := make([]CommentThread, 0, len(tops))
	for _, c := range tops {
		var replies []models.Comment
		err := s.db.WithContext(ctx).
			Order("created_at asc").
			Find(&replies, "parent = ? AND state = ?", c.ID, models.StateApproved).Error
		if err != nil {
			return nil, 0, err
		}
		threads = append(threads, CommentThread{Comment: c, Replies: replies})
	}

	return threads, total, nil
}

// DeleteComment removes a comment. Only the author may delete it.
func (s *Store) DeleteComment(ctx context.Context, id uint, requester models.Uid) error {
	comment, err := s.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if comment.Author != requester {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}

// SetModerationState moves a pending item to a terminal state. The transition
// is a single conditional write: it succeeds at most once per item, so
// concurrent or repeated resolution attempts are idempotent. Returns whether
// a transition actually happened.
func (s *Store) SetModerationState(ctx context.Context, kind models.ContentKind, id uint, state models.ModerationState) (bool, error) {
	if !state.Terminal() {
		return false, fmt.Errorf("cannot transition %s %d to non-terminal state %q", kind, id, state)
	}

	var target any
	switch kind {
	case models.KindPost:
		target = &models.Post{}
	case models.KindComment:
		target = &models.Comment{}
	default:
		return false, fmt.Errorf("unknown content kind %q", kind)
	}

	res := s.db.WithContext(ctx).Model(target).
		Where("id = ? AND state = ?", id, models.StatePending).
		Update("state", state)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AuthorName resolves a user's display name through the cache.
func (s *Store) AuthorName(ctx context.Context, uid models.Uid) (string, error) {
	if name, ok := s.names.Get(uid); ok {
		return name, nil
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, uint(uid)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("user %d: %w", uid, ErrNotFound)
		}
		return "", err
	}

	s.names.Add(uid, user.Name)
	return user.Name, nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
