package services

import (
	"context"
	"fmt"
	"log/slog"

	"conti/internal/core"
	"conti/internal/ports"
)

type categoryDefault struct {
	name, icon, color string
}

var defaultExpenseCategories = []categoryDefault{
	{"Food", "🍔", "#F59E0B"},
	{"Shopping", "🛒", "#3B82F6"},
	{"Housing", "🏠", "#6B7280"},
	{"Transportation", "🚌", "#FCD34D"},
	{"Vehicle", "🚗", "#EF4444"},
	{"Entertainment", "🎬", "#8B5CF6"},
	{"Laptop/PC", "💻", "#4B5563"},
	{"Investments", "📈", "#10B981"},
	{"Bills", "🧾", "#EF4444"},
	{"Subscriptions", "🔄", "#6366F1"},
	{"Gaming", "🎮", "#8B5CF6"},
	{"Medical", "💊", "#EF4444"},
	{"Gifts", "🎁", "#EC4899"},
	{"Accomodations", "🏨", "#3B82F6"},
	{"Travel", "✈️", "#0EA5E9"},
	{"Cinema", "🍿", "#F59E0B"},
	{"Pets", "🐾", "#78350F"},
	{"Loans", "💸", "#EF4444"},
	{"Beauty", "💄", "#EC4899"},
	{"Electronics", "🔌", "#6B7280"},
	{"Others", "📦", "#9CA3AF"},
}

var defaultIncomeCategories = []categoryDefault{
	{"Investments", "📈", "#10B981"},
	{"Housing/Rental", "🏠", "#3B82F6"},
	{"Salary/Wages", "💰", "#10B981"},
	{"Bonus", "💎", "#3B82F6"},
	{"Gifts", "🎁", "#EC4899"},
	{"Deposits", "🏦", "#10B981"},
	{"Other", "📦", "#9CA3AF"},
}

var defaultTags = []struct{ name, color string }{
	{"Vegetables", "#10B981"},
	{"Fruits", "#F59E0B"},
	{"Groceries", "#3B82F6"},
	{"Other", "#9CA3AF"},
	{"One Time", "#8B5CF6"},
}

// DefaultsResult reports what EnsureDefaults inserted.
type DefaultsResult struct {
	CategoriesCreated int `json:"categories_created"`
	TagsCreated       int `json:"tags_created"`
}

// DefaultsService seeds a new owner's categories and tags.
type DefaultsService struct {
	store ports.TaxonomyStore
}

func NewDefaultsService(store ports.TaxonomyStore) *DefaultsService {
	return &DefaultsService{store: store}
}

// EnsureDefaults inserts the default categories when the owner has none and
// the default tags when the owner has none. Calling it again is a no-op.
func (s *DefaultsService) EnsureDefaults(ctx context.Context, ownerID string) (DefaultsResult, error) {
	var res DefaultsResult
	if ownerID == "" {
		return res, fmt.Errorf("%w: %w", ErrInvalidInput, core.ErrMissingOwner)
	}

	cats, err := s.store.ListCategories(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("list categories: %w", err)
	}
	if len(cats) == 0 {
		seed := make([]core.Category, 0, len(defaultExpenseCategories)+len(defaultIncomeCategories))
		for _, d := range defaultExpenseCategories {
			seed = append(seed, core.Category{Name: d.name, Type: core.CategoryExpense, Icon: d.icon, Color: d.color, CreatedBy: ownerID})
		}
		for _, d := range defaultIncomeCategories {
			seed = append(seed, core.Category{Name: d.name, Type: core.CategoryIncome, Icon: d.icon, Color: d.color, CreatedBy: ownerID})
		}
		created, err := s.store.CreateCategories(ctx, seed)
		if err != nil {
			return res, fmt.Errorf("create default categories: %w", err)
		}
		res.CategoriesCreated = len(created)
	}

	tags, err := s.store.ListTags(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("list tags: %w", err)
	}
	if len(tags) == 0 {
		seed := make([]core.Tag, len(defaultTags))
		for i, d := range defaultTags {
			seed[i] = core.Tag{Name: d.name, Color: d.color, CreatedBy: ownerID}
		}
		created, err := s.store.CreateTags(ctx, seed)
		if err != nil {
			return res, fmt.Errorf("create default tags: %w", err)
		}
		res.TagsCreated = len(created)
	}

	if res.CategoriesCreated > 0 || res.TagsCreated > 0 {
		slog.InfoContext(ctx, "Seeded default categories and tags",
			"owner", ownerID,
			"categories", res.CategoriesCreated,
			"tags", res.TagsCreated)
	}
	return res, nil
}
