package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorahrib/internal/database"
	"gorahrib/internal/models"
	"gorahrib/internal/notifications"
	"gorahrib/internal/repository"
	"gorahrib/internal/storage"

	"gorm.io/gorm"
)

const (
	maxPostContentLen = 10000
	defaultFeedLimit  = 10
	maxFeedLimit      = 50
)

// PostService manages forum posts and likes.
type PostService struct {
	uow       *database.UnitOfWork
	postRepo  repository.PostRepository
	comments  repository.CommentRepository
	likes     repository.LikeRepository
	friends   repository.FriendRepository
	peaks     repository.PeakRepository
	checklist repository.ChecklistRepository
	store     storage.ObjectStore
	images    *ImageProcessor
	publisher EventPublisher
}

type CreatePostInput struct {
	UserID  uint
	Title   string
	Content string
	PeakID  *uint
	// Pictures are new uploads.
	Pictures []UploadFile
	// SharedPictures reuse pictures of the author's visited PeakID.
	SharedPictures []string
}

type UpdatePostInput struct {
	UserID  uint
	PostID  uint
	Title   string
	Content string
}

// FeedPage is one page of the friends feed.
type FeedPage struct {
	Posts       []models.ForumPost `json:"posts"`
	CurrentPage int                `json:"currentPage"`
	Limit       int                `json:"limit"`
	TotalPages  int                `json:"totalPages"`
	TotalPosts  int64              `json:"totalPosts"`
	HasMore     bool               `json:"hasMore"`
}

func NewPostService(
	uow *database.UnitOfWork,
	postRepo repository.PostRepository,
	comments repository.CommentRepository,
	likes repository.LikeRepository,
	friends repository.FriendRepository,
	peaks repository.PeakRepository,
	checklist repository.ChecklistRepository,
	store storage.ObjectStore,
	images *ImageProcessor,
	publisher EventPublisher,
) *PostService {
	return &PostService{
		uow:       uow,
		postRepo:  postRepo,
		comments:  comments,
		likes:     likes,
		friends:   friends,
		peaks:     peaks,
		checklist: checklist,
		store:     store,
		images:    images,
		publisher: publisher,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.ForumPost, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" {
		return nil, models.NewValidationError("Post title is required")
	}
	if utf8.RuneCountInString(title) > models.MaxPostTitleLength {
		return nil, models.NewValidationError("Title too long (max 150 characters)")
	}
	if content == "" {
		return nil, models.NewValidationError("Post content is required")
	}
	if utf8.RuneCountInString(content) > maxPostContentLen {
		return nil, models.NewValidationError("Content too long (max 10000 characters)")
	}
	if len(in.Pictures)+len(in.SharedPictures) > models.MaxPostPictures {
		return nil, models.NewValidationError("You can attach at most 5 pictures")
	}

	if in.PeakID != nil {
		if _, err := s.peaks.GetByID(ctx, *in.PeakID); err != nil {
			return nil, err
		}
	}
	shared, err := s.sharedPictures(ctx, in)
	if err != nil {
		return nil, err
	}

	uploaded, err := uploadImages(ctx, s.store, s.images, in.Pictures, storage.FolderForumPictures)
	if err != nil {
		return nil, err
	}

	post := &models.ForumPost{
		UserID:   in.UserID,
		PeakID:   in.PeakID,
		Title:    title,
		Content:  content,
		Category: models.CategoryHike,
		Pictures: append(uploaded, shared...),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		discardFiles(ctx, s.store, uploaded)
		return nil, err
	}

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// sharedPictures keeps only pictures the author attached to the visited peak
// the post is about.
func (s *PostService) sharedPictures(ctx context.Context, in CreatePostInput) ([]string, error) {
	if len(in.SharedPictures) == 0 {
		return nil, nil
	}
	if in.PeakID == nil {
		return nil, models.NewValidationError("Shared pictures require a peak")
	}
	item, err := s.checklist.Get(ctx, in.UserID, *in.PeakID)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.IsVisited() {
		return nil, models.NewValidationError("Shared pictures must come from a visited peak")
	}
	owned := make(map[string]bool, len(item.Pictures))
	for _, p := range item.Pictures {
		owned[p] = true
	}
	for _, p := range in.SharedPictures {
		if !owned[p] {
			return nil, models.NewValidationError("Shared pictures must come from a visited peak")
		}
	}
	return in.SharedPictures, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.ForumPost, error) {
	return s.postRepo.GetByID(ctx, id, currentUserID)
}

func (s *PostService) GetUserPosts(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]models.ForumPost, error) {
	return s.postRepo.ListByUser(ctx, userID, limit, offset, currentUserID)
}

// GetFeed returns posts by the user and their accepted friends, newest first.
// page is 1-based.
func (s *PostService) GetFeed(ctx context.Context, userID uint, page, limit int) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	authors, err := s.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	authors = append(authors, userID)

	posts, total, err := s.postRepo.Feed(ctx, authors, limit, (page-1)*limit, userID)
	if err != nil {
		return nil, err
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &FeedPage{
		Posts:       posts,
		CurrentPage: page,
		Limit:       limit,
		TotalPages:  totalPages,
		TotalPosts:  total,
		HasMore:     int64(page*limit) < total,
	}, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.ForumPost, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}

	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}
	if post.IsAnnouncement() {
		return nil, models.NewValidationError("Achievement posts cannot be edited")
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		if utf8.RuneCountInString(title) > models.MaxPostTitleLength {
			return nil, models.NewValidationError("Title too long (max 150 characters)")
		}
		post.Title = title
	}
	if content := strings.TrimSpace(in.Content); content != "" {
		if utf8.RuneCountInString(content) > maxPostContentLen {
			return nil, models.NewValidationError("Content too long (max 10000 characters)")
		}
		post.Content = content
	}

	if err := s.postRepo.UpdateContent(ctx, post.ID, post.Title, post.Content); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post with its comments and likes. Announcement posts
// belong to their achievement and cannot be deleted here.
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	var owned []string
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		post, err := s.postRepo.WithTx(tx).GetByID(ctx, postID, 0)
		if err != nil {
			return err
		}
		if post.IsAnnouncement() {
			return models.NewValidationError("Achievement posts cannot be manually deleted")
		}
		if post.UserID != userID {
			return models.NewForbiddenError("You can only delete your own posts")
		}

		owned = ownedPictures(ctx, s.checklist.WithTx(tx), post)
		ids := []uint{post.ID}
		if err := s.comments.WithTx(tx).DeleteByPosts(ctx, ids); err != nil {
			return err
		}
		if err := s.likes.WithTx(tx).DeleteByPosts(ctx, ids); err != nil {
			return err
		}
		return s.postRepo.WithTx(tx).Delete(ctx, post.ID)
	})
	if err != nil {
		return err
	}

	database.AfterCommit(ctx, func() { discardFiles(ctx, s.store, owned) })
	return nil
}

// ownedPictures drops pictures shared from the author's checklist, which
// stay attached to the checklist item.
func ownedPictures(ctx context.Context, checklist repository.ChecklistRepository, post *models.ForumPost) []string {
	if len(post.Pictures) == 0 || post.PeakID == nil {
		return post.Pictures
	}
	item, err := checklist.Get(ctx, post.UserID, *post.PeakID)
	if err != nil || item == nil {
		return post.Pictures
	}
	keep := make(map[string]bool, len(item.Pictures))
	for _, p := range item.Pictures {
		keep[p] = true
	}
	out := make([]string, 0, len(post.Pictures))
	for _, p := range post.Pictures {
		if !keep[p] {
			out = append(out, p)
		}
	}
	return out
}

// ToggleLike likes the post, or removes the like when one exists. The like
// row and the post's likes counter change in one transaction.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (bool, error) {
	var (
		liked bool
		post  *models.ForumPost
	)
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		post, err = s.postRepo.WithTx(tx).GetByID(ctx, postID, 0)
		if err != nil {
			return err
		}
		removed, err := s.likes.WithTx(tx).Delete(ctx, postID, userID)
		if err != nil {
			return err
		}
		if removed {
			return s.postRepo.WithTx(tx).AdjustLikes(ctx, postID, -1)
		}
		if err := s.likes.WithTx(tx).Create(ctx, postID, userID); err != nil {
			return err
		}
		liked = true
		return s.postRepo.WithTx(tx).AdjustLikes(ctx, postID, 1)
	})
	err = settle(ctx, "post_like", err, func() {
		if liked && post.UserID != userID {
			publish(ctx, s.publisher, post.UserID, notifications.EventPostLiked, map[string]interface{}{
				"post_id": postID,
				"user_id": userID,
			})
		}
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}
