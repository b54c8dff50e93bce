package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/vigia-social/vigia/content"
	"github.com/vigia-social/vigia/models"
)

// httpError translates content-layer errors into API responses. Anything
// unrecognized bubbles up as a 500.
func httpError(err error) error {
	switch {
	case errors.Is(err, content.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, content.ErrValidation), errors.Is(err, content.ErrOwnContent):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, content.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return err
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}

	var existing models.User
	err := s.db.First(&existing, "email = ?", req.Email).Error
	switch {
	case err == nil:
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	hash, err := encodePassword(req.Password)
	if err != nil {
		return err
	}

	user := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hash,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	var user models.User
	if err := s.db.First(&user, "email = ?", req.Email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidEmailOrPassword.Error())
		}
		return err
	}

	if err := verifyPassword(user.Password, req.Password); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidEmailOrPassword.Error())
	}

	token, err := s.createAuthToken(user.Uid())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleMe(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

type createPostRequest struct {
	Body       *string `json:"body"`
	MediaURL   *string `json:"mediaUrl"`
	IncidentID *uint   `json:"incidentId"`
}

// handleCreatePost accepts either JSON (body/mediaUrl/incidentId) or a
// multipart form with an uploaded `media` file. The post is persisted pending
// and acknowledged immediately; moderation runs out of band.
func (s *Server) handleCreatePost(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}

	var req createPostRequest
	uploaded := false
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
		if body := strings.TrimSpace(c.FormValue("body")); body != "" {
			req.Body = &body
		}
		if idStr := c.FormValue("incident_id"); idStr != "" {
			id64, err := strconv.ParseUint(idStr, 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "malformed incident_id")
			}
			id := uint(id64)
			req.IncidentID = &id
		}

		if fh, err := c.FormFile("media"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return err
			}
			defer f.Close()

			url, err := s.blobs.Upload(c.Request().Context(), fh.Filename, f)
			if err != nil {
				return err
			}
			req.MediaURL = &url
			uploaded = true
		} else if !errors.Is(err, http.ErrMissingFile) {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed upload")
		}
	} else {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
		}
	}

	post, err := s.store.CreatePost(c.Request().Context(), user.Uid(), content.CreatePostRequest{
		Body:       req.Body,
		MediaURL:   req.MediaURL,
		IncidentID: req.IncidentID,
	})
	if err != nil {
		// uploaded media must not outlive a failed creation
		if uploaded && req.MediaURL != nil {
			if derr := s.blobs.Delete(c.Request().Context(), *req.MediaURL); derr != nil {
				s.log.Warn("cleaning up media after failed post creation", "url", *req.MediaURL, "err", derr)
			}
		}
		return httpError(err)
	}

	if err := s.moderator.ProcessNewPost(c.Request().Context(), post); err != nil {
		s.log.Warn("failed to enqueue post for moderation", "post", post.ID, "err", err)
	}

	return c.JSON(http.StatusCreated, post)
}

func (s *Server) handleListPosts(c echo.Context) error {
	page, limit := pageParams(c)
	posts, total, err := s.store.ListPosts(c.Request().Context(), page, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"posts": posts,
		"total": total,
		"page":  page,
	})
}

// handleGetPost shows approved posts to everyone, and pending/rejected posts
// only to their author.
func (s *Server) handleGetPost(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	post, err := s.store.GetPost(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if post.State != models.StateApproved && post.Author != user.Uid() {
		return echo.NewHTTPError(http.StatusNotFound, content.ErrNotFound.Error())
	}

	return c.JSON(http.StatusOK, post)
}

func (s *Server) handleMyPosts(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}
	posts, err := s.store.ListPostsByAuthor(c.Request().Context(), user.Uid())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, posts)
}

func (s *Server) handleListComments(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	page, limit := pageParams(c)

	threads, total, err := s.store.ListCommentsForPost(c.Request().Context(), id, page, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"comments": threads,
		"total":    total,
		"page":     page,
	})
}

type createCommentRequest struct {
	PostID   *uint  `json:"postId"`
	ParentID *uint  `json:"parentId"`
	Body     string `json:"body"`
}

func (s *Server) handleCreateComment(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}

	var req createCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	comment, err := s.store.CreateComment(c.Request().Context(), user.Uid(), content.CreateCommentRequest{
		PostID:   req.PostID,
		ParentID: req.ParentID,
		Body:     req.Body,
	})
	if err != nil {
		return httpError(err)
	}

	if err := s.moderator.ProcessNewComment(c.Request().Context(), comment); err != nil {
		s.log.Warn("failed to enqueue comment for moderation", "comment", comment.ID, "err", err)
	}

	return c.JSON(http.StatusCreated, comment)
}

func (s *Server) handleDeleteComment(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := s.store.DeleteComment(c.Request().Context(), id, user.Uid()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type createIncidentRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

func (s *Server) handleCreateIncident(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}

	var req createIncidentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	inc, err := s.store.CreateIncident(c.Request().Context(), user.Uid(), content.CreateIncidentRequest{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inc)
}

func (s *Server) handleListIncidents(c echo.Context) error {
	page, limit := pageParams(c)
	incidents, total, err := s.store.ListIncidents(c.Request().Context(), page, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"incidents": incidents,
		"total":     total,
		"page":      page,
	})
}

func (s *Server) handleGetIncident(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	inc, err := s.store.GetIncident(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inc)
}

func (s *Server) handleMyIncidents(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}
	incidents, err := s.store.ListIncidentsByReporter(c.Request().Context(), user.Uid())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, incidents)
}

func (s *Server) handleIncidentsByCategory(c echo.Context) error {
	incidents, err := s.store.ListIncidentsByCategory(c.Request().Context(), c.Param("category"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, incidents)
}

// handleSearchIncidents matches ?q= against incident text. Terms shorter than
// three characters return an empty list instead of scanning the whole table.
func (s *Server) handleSearchIncidents(c echo.Context) error {
	term := strings.TrimSpace(c.QueryParam("q"))
	if len(term) < 3 {
		return c.JSON(http.StatusOK, []models.Incident{})
	}
	incidents, err := s.store.SearchIncidents(c.Request().Context(), term)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, incidents)
}

func (s *Server) handleIncidentsInArea(c echo.Context) error {
	parse := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(c.QueryParam(name), 64)
		if err != nil {
			return 0, echo.NewHTTPError(http.StatusBadRequest, "malformed "+name)
		}
		return v, nil
	}

	latMin, err := parse("latMin")
	if err != nil {
		return err
	}
	latMax, err := parse("latMax")
	if err != nil {
		return err
	}
	lngMin, err := parse("lngMin")
	if err != nil {
		return err
	}
	lngMax, err := parse("lngMax")
	if err != nil {
		return err
	}

	incidents, err := s.store.IncidentsInArea(c.Request().Context(), latMin, latMax, lngMin, lngMax)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, incidents)
}

type updateIncidentRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (s *Server) handleUpdateIncident(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	var req updateIncidentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	inc, err := s.store.UpdateIncident(c.Request().Context(), id, user.Uid(), content.UpdateIncidentRequest{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inc)
}

func (s *Server) handleDeleteIncident(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := s.store.DeleteIncident(c.Request().Context(), id, user.Uid()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleIncidentPosts(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	posts, err := s.store.ListPostsForIncident(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, posts)
}

type createQueryRequest struct {
	Kind     string `json:"kind"`
	Content  string `json:"content"`
	Response string `json:"response"`
}

func (s *Server) handleCreateQuery(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}

	var req createQueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	q, err := s.store.CreateQuery(c.Request().Context(), user.Uid(), content.CreateQueryRequest{
		Kind:     models.QueryKind(req.Kind),
		Content:  req.Content,
		Response: req.Response,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, q)
}

func (s *Server) handleQueryHistory(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}
	queries, err := s.store.ListQueriesByAuthor(c.Request().Context(), user.Uid())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, queries)
}

func (s *Server) handleGetQuery(c echo.Context) error {
	user, err := s.getUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	q, err := s.store.GetQuery(c.Request().Context(), id, user.Uid())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func idParam(c echo.Context) (uint, error) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "malformed id")
	}
	return uint(id64), nil
}

func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return page, limit
}
