package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
)

// Catalog listing defaults.
const (
	DefaultBrowseLimit = 12
	MaxTags            = 10
	MaxTagLength       = 30
)

// ItemInput carries the attributes a user supplies when listing or editing
// an item.
type ItemInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Type        string   `json:"type"`
	Size        string   `json:"size"`
	Condition   string   `json:"condition"`
	PointValue  int64    `json:"pointValue"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
	Brand       string   `json:"brand"`
	Color       string   `json:"color"`
	Material    string   `json:"material"`
	Season      string   `json:"season"`
}

// normalize trims every field and drops empty tags.
func (in *ItemInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.Size = strings.TrimSpace(in.Size)
	in.Condition = strings.ToLower(strings.TrimSpace(in.Condition))
	in.Brand = strings.TrimSpace(in.Brand)
	in.Color = strings.TrimSpace(in.Color)
	in.Material = strings.TrimSpace(in.Material)
	in.Season = strings.ToLower(strings.TrimSpace(in.Season))
	tags := in.Tags[:0:0]
	for _, t := range in.Tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	in.Tags = tags
	images := in.Images[:0:0]
	for _, u := range in.Images {
		if u = strings.TrimSpace(u); u != "" {
			images = append(images, u)
		}
	}
	in.Images = images
}

// Validate reports the first invalid attribute.
func (in *ItemInput) Validate() error {
	in.normalize()
	if n := utf8.RuneCountInString(in.Title); n < 3 || n > 100 {
		return apperr.Validationf("title must be between 3 and 100 characters")
	}
	if n := utf8.RuneCountInString(in.Description); n < 10 || n > 1000 {
		return apperr.Validationf("description must be between 10 and 1000 characters")
	}
	if !model.OneOf(in.Category, model.Categories) {
		return apperr.Validationf("invalid category")
	}
	if !model.OneOf(in.Type, model.ItemTypes) {
		return apperr.Validationf("invalid type")
	}
	if !model.OneOf(in.Size, model.Sizes) {
		return apperr.Validationf("invalid size")
	}
	if !model.OneOf(in.Condition, model.Conditions) {
		return apperr.Validationf("invalid condition")
	}
	if in.Season != "" && !model.OneOf(in.Season, model.Seasons) {
		return apperr.Validationf("invalid season")
	}
	if in.PointValue < 1 {
		return apperr.Validationf("point value must be at least 1")
	}
	if len(in.Images) == 0 {
		return apperr.Validationf("at least one image is required")
	}
	for _, raw := range in.Images {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperr.Validationf("image must be an http(s) url")
		}
	}
	if len(in.Tags) > MaxTags {
		return apperr.Validationf("at most 10 tags are allowed")
	}
	for _, t := range in.Tags {
		if utf8.RuneCountInString(t) > MaxTagLength {
			return apperr.Validationf("tags cannot exceed 30 characters")
		}
	}
	return nil
}

func (in ItemInput) apply(it *model.Item) {
	it.Title, it.Description = in.Title, in.Description
	it.Category, it.Type, it.Size, it.Condition = in.Category, in.Type, in.Size, in.Condition
	it.PointValue = in.PointValue
	it.Tags, it.Images = in.Tags, in.Images
	it.Brand, it.Color, it.Material, it.Season = in.Brand, in.Color, in.Material, in.Season
}

// CatalogService manages listed items.
type CatalogService struct {
	store repository.Store
	log   *zap.Logger
}

func NewCatalogService(store repository.Store, log *zap.Logger) *CatalogService {
	return &CatalogService{store: store, log: log}
}

// Create lists a new item. It starts pending and unapproved.
func (s *CatalogService) Create(ctx context.Context, caller uint64, in ItemInput) (model.Item, error) {
	if err := in.Validate(); err != nil {
		return model.Item{}, err
	}
	it := model.Item{UploaderID: caller, Status: model.ItemPending}
	in.apply(&it)
	if err := s.store.Items().Create(ctx, &it); err != nil {
		return model.Item{}, err
	}
	s.log.Info("item listed", zap.Uint64("item_id", it.ID), zap.Uint64("uploader_id", caller))
	return it, nil
}

// BrowseQuery holds the public catalog filters.
type BrowseQuery struct {
	Category  string
	Type      string
	Size      string
	Condition string
	Search    string
	MinPoints int64
	MaxPoints int64
	Sort      string
	Order     string
	Page      repository.Page
}

// ItemPage is one page of items.
type ItemPage struct {
	Items      []model.Item `json:"items"`
	Pagination Pagination   `json:"pagination"`
}

// Browse lists approved, available items.
func (s *CatalogService) Browse(ctx context.Context, q BrowseQuery) (ItemPage, error) {
	if q.MinPoints > 0 && q.MaxPoints > 0 && q.MinPoints > q.MaxPoints {
		return ItemPage{}, apperr.Validationf("minPoints cannot exceed maxPoints")
	}
	f := repository.ItemFilter{
		Statuses:     []model.ItemStatus{model.ItemAvailable},
		ApprovedOnly: true,
		Category:     strings.ToLower(q.Category),
		Type:         strings.ToLower(q.Type),
		Size:         q.Size,
		Condition:    strings.ToLower(q.Condition),
		Search:       strings.TrimSpace(q.Search),
		MinPoints:    q.MinPoints,
		MaxPoints:    q.MaxPoints,
		Sort:         repository.SortColumn(q.Sort),
		Asc:          strings.EqualFold(q.Order, "asc"),
		Page:         q.Page,
	}
	return s.list(ctx, f)
}

func (s *CatalogService) list(ctx context.Context, f repository.ItemFilter) (ItemPage, error) {
	items, total, err := s.store.Items().List(ctx, f)
	if err != nil {
		return ItemPage{}, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return ItemPage{Items: items, Pagination: newPagination(f.Page, total)}, nil
}

// Get returns an item and counts the view. Items awaiting moderation are
// visible only to their uploader and to admins.
func (s *CatalogService) Get(ctx context.Context, viewer uint64, isAdmin bool, id uint64) (model.Item, error) {
	it, err := s.store.Items().GetByID(ctx, id)
	if err != nil {
		return model.Item{}, notFound(err, "item")
	}
	if !it.IsApproved && !isAdmin && !it.IsOwnedBy(viewer) {
		return model.Item{}, apperr.NotFoundf("item not found")
	}
	if err := s.store.Items().IncrementViews(ctx, id); err != nil {
		s.log.Warn("increment views failed", zap.Uint64("item_id", id), zap.Error(err))
	} else {
		it.Views++
	}
	return it, nil
}

// Update edits an item's attributes. Only the uploader may edit, and only
// while the item is still pending or available. Status is not changed.
func (s *CatalogService) Update(ctx context.Context, caller, id uint64, in ItemInput) (model.Item, error) {
	if err := in.Validate(); err != nil {
		return model.Item{}, err
	}
	var updated model.Item
	err := s.store.InTx(ctx, func(tx repository.Repos) error {
		it, err := tx.Items().GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "item")
		}
		if !it.IsOwnedBy(caller) {
			return apperr.Forbiddenf("not authorized to update this item")
		}
		if !it.Status.Deletable() {
			return apperr.InvalidStatef("cannot update an item that has been " + string(it.Status))
		}
		in.apply(&it)
		if err := tx.Items().Update(ctx, &it); err != nil {
			return notFound(err, "item")
		}
		updated = it
		return nil
	})
	return updated, err
}

// Delete removes an item for its uploader or an admin. Pending requests
// that target the item are left in place and reported in the log.
func (s *CatalogService) Delete(ctx context.Context, caller uint64, isAdmin bool, id uint64) error {
	var pending int
	err := s.store.InTx(ctx, func(tx repository.Repos) error {
		it, err := tx.Items().GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "item")
		}
		if !isAdmin && !it.IsOwnedBy(caller) {
			return apperr.Forbiddenf("not authorized to delete this item")
		}
		if !it.Status.Deletable() {
			return apperr.InvalidStatef("cannot delete an item that has been " + string(it.Status))
		}
		pending, err = tx.Swaps().Count(ctx, repository.SwapFilter{
			ItemID:   id,
			Statuses: []model.SwapStatus{model.SwapPending},
		})
		if err != nil {
			return err
		}
		return itemStateErr(tx.Items().Delete(ctx, id), "item")
	})
	if err != nil {
		return err
	}
	if pending > 0 {
		s.log.Warn("item deleted with pending swap requests",
			zap.Uint64("item_id", id), zap.Int("pending_requests", pending))
	}
	s.log.Info("item deleted", zap.Uint64("item_id", id), zap.Uint64("by", caller), zap.Bool("admin", isAdmin))
	return nil
}

// LikeResult is the outcome of ToggleLike.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

// ToggleLike adds or removes the caller's like on an item.
func (s *CatalogService) ToggleLike(ctx context.Context, caller, id uint64) (LikeResult, error) {
	if _, err := s.store.Items().GetByID(ctx, id); err != nil {
		return LikeResult{}, notFound(err, "item")
	}
	liked, n, err := s.store.Items().ToggleLike(ctx, id, caller)
	if err != nil {
		return LikeResult{}, notFound(err, "item")
	}
	return LikeResult{Liked: liked, LikeCount: n}, nil
}

// ListByUploader lists every item a user uploaded, in any status.
func (s *CatalogService) ListByUploader(ctx context.Context, uploader uint64, p repository.Page) (ItemPage, error) {
	return s.list(ctx, repository.ItemFilter{UploaderID: uploader, Sort: "created_at", Page: p})
}

// ItemAvailable reports whether an item can currently be requested.
func (s *CatalogService) ItemAvailable(ctx context.Context, id uint64) (bool, error) {
	it, err := s.store.Items().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return it.Status == model.ItemAvailable, nil
}

// SetStatus applies one catalog edge. Other edges fail with InvalidState.
func (s *CatalogService) SetStatus(ctx context.Context, id uint64, from, to model.ItemStatus) error {
	return itemStateErr(s.store.Items().SetStatus(ctx, id, from, to), "item")
}

// IsOwnedBy reports whether userID uploaded the item.
func (s *CatalogService) IsOwnedBy(ctx context.Context, id, userID uint64) (bool, error) {
	it, err := s.store.Items().GetByID(ctx, id)
	if err != nil {
		return false, notFound(err, "item")
	}
	return it.IsOwnedBy(userID), nil
}
