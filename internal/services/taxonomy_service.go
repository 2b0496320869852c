package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"conti/internal/core"
	"conti/internal/ports"
)

// CategoryInput is a category as submitted by a user.
type CategoryInput struct {
	OwnerID string
	GroupID string
	Name    string
	Type    core.CategoryType
	Icon    string
	Color   string
}

// TagInput is a tag as submitted by a user.
type TagInput struct {
	OwnerID string
	GroupID string
	Name    string
	Color   string
}

// CategoryUpdate and TagUpdate change a record. Nil fields are left as they are.
type (
	CategoryUpdate struct {
		Name  *string
		Type  *core.CategoryType
		Icon  *string
		Color *string
	}

	TagUpdate struct {
		Name  *string
		Color *string
	}
)

// TaxonomyService manages a user's categories and tags.
type TaxonomyService struct {
	store ports.TaxonomyStore
}

func NewTaxonomyService(store ports.TaxonomyStore) *TaxonomyService {
	return &TaxonomyService{store: store}
}

// CreateCategory stores a category. The type defaults to expense.
func (s *TaxonomyService) CreateCategory(ctx context.Context, in CategoryInput) (core.Category, error) {
	if in.Type == "" {
		in.Type = core.CategoryExpense
	}
	cat := core.Category{
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		Icon:      in.Icon,
		Color:     in.Color,
		CreatedBy: in.OwnerID,
		GroupID:   in.GroupID,
	}
	if err := cat.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	saved, err := s.store.CreateCategories(ctx, []core.Category{cat})
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	slog.InfoContext(ctx, "Category created",
		"id", saved[0].ID,
		"owner", in.OwnerID,
		"type", saved[0].Type)
	return saved[0], nil
}

func (s *TaxonomyService) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	return s.store.ListCategories(ctx, ownerID)
}

// UpdateCategory applies upd to the owner's category and returns the result.
func (s *TaxonomyService) UpdateCategory(ctx context.Context, ownerID, id string, upd CategoryUpdate) (core.Category, error) {
	cats, err := s.ListCategories(ctx, ownerID)
	if err != nil {
		return core.Category{}, err
	}
	idx := slices.IndexFunc(cats, func(c core.Category) bool { return c.ID == id })
	if idx < 0 {
		return core.Category{}, fmt.Errorf("category %s: %w", id, ports.ErrNotFound)
	}
	cat := cats[idx]
	if upd.Name != nil {
		cat.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Type != nil {
		cat.Type = *upd.Type
	}
	if upd.Icon != nil {
		cat.Icon = *upd.Icon
	}
	if upd.Color != nil {
		cat.Color = *upd.Color
	}
	if err := cat.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.UpdateCategory(ctx, cat); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	slog.InfoContext(ctx, "Category updated", "id", id, "owner", ownerID)
	return cat, nil
}

// DeleteCategory removes the owner's category. Expenses filed under it are
// left untouched.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	if err := s.store.DeleteCategory(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Category deleted", "id", id, "owner", ownerID)
	return nil
}

func (s *TaxonomyService) CreateTag(ctx context.Context, in TagInput) (core.Tag, error) {
	tag := core.Tag{
		Name:      strings.TrimSpace(in.Name),
		Color:     in.Color,
		CreatedBy: in.OwnerID,
		GroupID:   in.GroupID,
	}
	if err := tag.Validate(); err != nil {
		return core.Tag{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	saved, err := s.store.CreateTags(ctx, []core.Tag{tag})
	if err != nil {
		return core.Tag{}, fmt.Errorf("save tag: %w", err)
	}
	slog.InfoContext(ctx, "Tag created", "id", saved[0].ID, "owner", in.OwnerID)
	return saved[0], nil
}

func (s *TaxonomyService) ListTags(ctx context.Context, ownerID string) ([]core.Tag, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	return s.store.ListTags(ctx, ownerID)
}

func (s *TaxonomyService) UpdateTag(ctx context.Context, ownerID, id string, upd TagUpdate) (core.Tag, error) {
	tags, err := s.ListTags(ctx, ownerID)
	if err != nil {
		return core.Tag{}, err
	}
	idx := slices.IndexFunc(tags, func(t core.Tag) bool { return t.ID == id })
	if idx < 0 {
		return core.Tag{}, fmt.Errorf("tag %s: %w", id, ports.ErrNotFound)
	}
	tag := tags[idx]
	if upd.Name != nil {
		tag.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Color != nil {
		tag.Color = *upd.Color
	}
	if err := tag.Validate(); err != nil {
		return core.Tag{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.UpdateTag(ctx, tag); err != nil {
		return core.Tag{}, fmt.Errorf("save tag: %w", err)
	}
	slog.InfoContext(ctx, "Tag updated", "id", id, "owner", ownerID)
	return tag, nil
}

// DeleteTag removes the owner's tag and unlinks it from every expense.
func (s *TaxonomyService) DeleteTag(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}
	if err := s.store.DeleteTag(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete tag %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Tag deleted", "id", id, "owner", ownerID)
	return nil
}
