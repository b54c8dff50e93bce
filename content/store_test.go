package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vigia-social/vigia/models"
	"github.com/vigia-social/vigia/util/cliutil"
)

func testStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	require.NoError(t, err)
	s, err := NewStore(db)
	require.NoError(t, err)
	return s, db
}

func strptr(s string) *string { return &s }

// mkApprovedPost creates a post and pushes it straight through moderation.
func mkApprovedPost(t *testing.T, s *Store, author models.Uid, body string) *models.Post {
	t.Helper()
	ctx := context.Background()
	post, err := s.CreatePost(ctx, author, CreatePostRequest{Body: strptr(body)})
	require.NoError(t, err)
	changed, err := s.SetModerationState(ctx, models.KindPost, post.ID, models.StateApproved)
	require.NoError(t, err)
	require.True(t, changed)
	post.State = models.StateApproved
	return post
}

func TestCreatePostValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	_, err := s.CreatePost(ctx, 1, CreatePostRequest{})
	assert.ErrorIs(err, ErrValidation)

	_, err = s.CreatePost(ctx, 1, CreatePostRequest{Body: strptr("   ")})
	assert.ErrorIs(err, ErrValidation)

	// media alone is enough
	post, err := s.CreatePost(ctx, 1, CreatePostRequest{MediaURL: strptr("/media/x.jpg")})
	assert.NoError(err)
	assert.Equal(models.StatePending, post.State)
	assert.Nil(post.Body)

	// unknown incident reference
	missing := uint(999)
	_, err = s.CreatePost(ctx, 1, CreatePostRequest{Body: strptr("hi"), IncidentID: &missing})
	assert.ErrorIs(err, ErrNotFound)
}

func TestCreatePostWithIncident(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	inc, err := s.CreateIncident(ctx, 1, CreateIncidentRequest{
		Title:     "streetlight out",
		Category:  "infrastructure",
		Latitude:  4.6,
		Longitude: -74.08,
	})
	require.NoError(err)

	post, err := s.CreatePost(ctx, 2, CreatePostRequest{Body: strptr("still dark here"), IncidentID: &inc.ID})
	assert.NoError(err)
	require.NotNil(post.Incident)
	assert.Equal(inc.ID, *post.Incident)
}

func TestCreateIncidentValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	_, err := s.CreateIncident(ctx, 1, CreateIncidentRequest{Title: "  "})
	assert.ErrorIs(err, ErrValidation)

	_, err = s.CreateIncident(ctx, 1, CreateIncidentRequest{Title: "bad coords", Latitude: 91})
	assert.ErrorIs(err, ErrValidation)
}

func TestCreateCommentRules(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	pending, err := s.CreatePost(ctx, 1, CreatePostRequest{Body: strptr("awaiting review")})
	require.NoError(err)

	// pending posts are invisible to commenters
	_, err = s.CreateComment(ctx, 2, CreateCommentRequest{PostID: &pending.ID, Body: "too early"})
	assert.ErrorIs(err, ErrNotFound)

	approved := mkApprovedPost(t, s, 1, "visible now")

	// authors cannot comment on their own posts
	_, err = s.CreateComment(ctx, 1, CreateCommentRequest{PostID: &approved.ID, Body: "self reply"})
	assert.ErrorIs(err, ErrOwnContent)

	_, err = s.CreateComment(ctx, 2, CreateCommentRequest{PostID: &approved.ID, Body: "  "})
	assert.ErrorIs(err, ErrValidation)

	_, err = s.CreateComment(ctx, 2, CreateCommentRequest{Body: "no target"})
	assert.ErrorIs(err, ErrValidation)

	comment, err := s.CreateComment(ctx, 2, CreateCommentRequest{PostID: &approved.ID, Body: "  saw it too  "})
	require.NoError(err)
	assert.Equal(models.StatePending, comment.State)
	assert.Equal("saw it too", comment.Body)
	assert.Equal(approved.ID, comment.Post)
	assert.Nil(comment.Parent)
}

func TestCreateReplyRules(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	post := mkApprovedPost(t, s, 1, "original report")

	top, err := s.CreateComment(ctx, 2, CreateCommentRequest{PostID: &post.ID, Body: "a comment"})
	require.NoError(err)

	// parent still pending
	_, err = s.CreateComment(ctx, 3, CreateCommentRequest{ParentID: &top.ID, Body: "too early"})
	assert.ErrorIs(err, ErrNotFound)

	changed, err := s.SetModerationState(ctx, models.KindComment, top.ID, models.StateApproved)
	require.NoError(err)
	require.True(changed)

	// replying to yourself
	_, err = s.CreateComment(ctx, 2, CreateCommentRequest{ParentID: &top.ID, Body: "me again"})
	assert.ErrorIs(err, ErrOwnContent)

	reply, err := s.CreateComment(ctx, 3, CreateCommentRequest{ParentID: &top.ID, Body: "same here"})
	require.NoError(err)
	require.NotNil(reply.Parent)
	assert.Equal(top.ID, *reply.Parent)
	assert.Equal(post.ID, reply.Post)

	changed, err = s.SetModerationState(ctx, models.KindComment, reply.ID, models.StateApproved)
	require.NoError(err)
	require.True(changed)

	// one level of nesting only
	_, err = s.CreateComment(ctx, 4, CreateCommentRequest{ParentID: &reply.ID, Body: "reply to reply"})
	assert.ErrorIs(err, ErrValidation)
}

func TestSetModerationStateOnce(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	post, err := s.CreatePost(ctx, 1, CreatePostRequest{Body: strptr("hello")})
	require.NoError(err)

	// only terminal states are valid targets
	_, err = s.SetModerationState(ctx, models.KindPost, post.ID, models.StatePending)
	assert.Error(err)

	changed, err := s.SetModerationState(ctx, models.KindPost, post.ID, models.StateApproved)
	assert.NoError(err)
	assert.True(changed)

	// second resolution is a no-op, even with a different verdict
	changed, err = s.SetModerationState(ctx, models.KindPost, post.ID, models.StateRejected)
	assert.NoError(err)
	assert.False(changed)

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(err)
	assert.Equal(models.StateApproved, got.State)

	// unknown item resolves nothing
	changed, err = s.SetModerationState(ctx, models.KindPost, 9999, models.StateApproved)
	assert.NoError(err)
	assert.False(changed)
}

func TestListPostsApprovedOnly(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	mkApprovedPost(t, s, 1, "first")
	mkApprovedPost(t, s, 2, "second")
	_, err := s.CreatePost(ctx, 3, CreatePostRequest{Body: strptr("still pending")})
	require.NoError(err)

	rejected, err := s.CreatePost(ctx, 3, CreatePostRequest{Body: strptr("nope")})
	require.NoError(err)
	_, err = s.SetModerationState(ctx, models.KindPost, rejected.ID, models.StateRejected)
	require.NoError(err)

	posts, total, err := s.ListPosts(ctx, 1, 20)
	require.NoError(err)
	assert.EqualValues(2, total)
	assert.Len(posts, 2)
	for _, p := range posts {
		assert.Equal(models.StateApproved, p.State)
	}

	mine, err := s.ListPostsByAuthor(ctx, 3)
	require.NoError(err)
	assert.Len(mine, 2)
}

func TestListCommentsForPost(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	post := mkApprovedPost(t, s, 1, "report")

	top, err := s.CreateComment(ctx, 2, CreateCommentRequest{PostID: &post.ID, Body: "top"})
	require.NoError(err)
	_, err = s.SetModerationState(ctx, models.KindComment, top.ID, models.StateApproved)
	require.NoError(err)

	// a pending comment stays out of the listing
	_, err = s.CreateComment(ctx, 3, CreateCommentRequest{PostID: &post.ID, Body: "unreviewed"})
	require.NoError(err)

	reply, err := s.CreateComment(ctx, 3, CreateCommentRequest{ParentID: &top.ID, Body: "reply"})
	require.NoError(err)
	_, err = s.SetModerationState(ctx, models.KindComment, reply.ID, models.StateApproved)
	require.NoError(err)

	threads, total, err := s.ListCommentsForPost(ctx, post.ID, 1, 20)
	require.NoError(err)
	assert.EqualValues(1, total)
	require.Len(threads, 1)
	assert.Equal(top.ID, threads[0].ID)
	require.Len(threads[0].Replies, 1)
	assert.Equal(reply.ID, threads[0].Replies[0].ID)
}

func TestDeleteCommentOwnership(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)

	post := mkApprovedPost(t, s, 1, "report")
	comment, err := s.CreateComment(ctx, 2, CreateCommentRequest{PostID: &post.ID, Body: "mine"})
	require.NoError(err)

	assert.ErrorIs(s.DeleteComment(ctx, comment.ID, 3), ErrForbidden)
	assert.NoError(s.DeleteComment(ctx, comment.ID, 2))

	_, err = s.GetComment(ctx, comment.ID)
	assert.ErrorIs(err, ErrNotFound)

	assert.ErrorIs(s.DeleteComment(ctx, 9999, 2), ErrNotFound)
}

func TestAuthorName(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	s, db := testStore(t)

	user := models.User{Name: "ana", Email: "ana@example.com"}
	require.NoError(db.Create(&user).Error)

	name, err := s.AuthorName(ctx, models.Uid(user.ID))
	assert.NoError(err)
	assert.Equal("ana", name)

	// second lookup is served from the cache even if the row changes
	require.NoError(db.Model(&models.User{}).Where("id = ?", user.ID).Update("name", "anita").Error)
	name, err = s.AuthorName(ctx, models.Uid(user.ID))
	assert.NoError(err)
	assert.Equal("ana", name)

	_, err = s.AuthorName(ctx, 9999)
	assert.ErrorIs(err, ErrNotFound)
}
