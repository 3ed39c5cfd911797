// Package store holds the inventory: the ordered category and item collections,
// the rules between them, and their persistence to a key-value backend.
//
// Every mutation is written to the backend before it becomes visible. If the
// write fails the Store keeps its previous state and returns ErrPersistence, so
// memory and backend never diverge.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/popis/internal/backend"
	"github.com/erazemk/popis/internal/model"
)

// Backend keys of the two collections.
const (
	CategoriesKey = "inventory_categories"
	ItemsKey      = "inventory_items"
)

// Store is the inventory of a single user. It is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	backend    backend.Backend
	categories []model.Category
	items      []model.Item

	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs sets the id generator. Generated ids must be unique.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithLogger sets the logger used for load and write diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// Open loads both collections from b. A missing key or a value that cannot be
// decoded loads as an empty collection; an error reading b fails Open.
func Open(ctx context.Context, b backend.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: b,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.categories, err = load[model.Category](ctx, s, CategoriesKey); err != nil {
		return nil, err
	}
	if s.items, err = load[model.Item](ctx, s, ItemsKey); err != nil {
		return nil, err
	}

	s.checkLoaded()

	s.log.Debug("inventory loaded", "categories", len(s.categories), "items", len(s.items))
	return s, nil
}

// checkLoaded normalizes loaded quantities and reports items whose category
// is missing. Such items are kept so a later save does not drop them.
func (s *Store) checkLoaded() {
	for i := range s.items {
		item := &s.items[i]
		item.Quantity = model.NormalizeQuantity(item.Quantity)

		if s.categoryIndex(item.CategoryID) < 0 {
			s.log.Warn("item references missing category",
				"item", item.Name, "id", item.ID, "category", item.CategoryID)
		}
	}
}

func load[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	if !ok {
		return []T{}, nil
	}

	var records []T
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.log.Warn("discarding unreadable collection", "key", key, "error", err)
		return []T{}, nil
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

func save[T any](ctx context.Context, s *Store, key string, records []T) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrPersistence, key, err)
	}
	if err := s.backend.Set(ctx, key, string(data)); err != nil {
		s.log.Error("failed to persist collection", "key", key, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// AddCategory creates a category and appends it to the collection.
// Empty color and icon are replaced by the defaults.
func (s *Store) AddCategory(ctx context.Context, name, color, icon string) (*model.Category, error) {
	f, err := newCategoryFields(name, color, icon)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := model.Category{
		ID:        s.newID(),
		Name:      f.Name,
		Color:     orDefault(f.Color, model.DefaultCategoryColor),
		Icon:      orDefault(f.Icon, model.DefaultCategoryIcon),
		CreatedAt: s.now(),
	}

	next := append(slices.Clone(s.categories), c)
	if err := save(ctx, s, CategoriesKey, next); err != nil {
		return nil, err
	}
	s.categories = next
	return &c, nil
}

// EditCategory replaces a category's name, color and icon in place.
func (s *Store) EditCategory(ctx context.Context, id, name, color, icon string) (*model.Category, error) {
	f, err := newCategoryFields(name, color, icon)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.categoryIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("category %q: %w", id, ErrNotFound)
	}

	next := slices.Clone(s.categories)
	next[i].Name = f.Name
	next[i].Color = orDefault(f.Color, model.DefaultCategoryColor)
	next[i].Icon = orDefault(f.Icon, model.DefaultCategoryIcon)

	if err := save(ctx, s, CategoriesKey, next); err != nil {
		return nil, err
	}
	s.categories = next

	c := next[i]
	return &c, nil
}

// DeleteCategory removes a category. It fails with *CategoryInUseError while
// any item still references the category.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.categoryIndex(id)
	if i < 0 {
		return fmt.Errorf("category %q: %w", id, ErrNotFound)
	}

	if n := s.countItems(id); n > 0 {
		return &CategoryInUseError{ID: id, Name: s.categories[i].Name, Count: n}
	}

	next := slices.Delete(slices.Clone(s.categories), i, i+1)
	if err := save(ctx, s, CategoriesKey, next); err != nil {
		return err
	}
	s.categories = next
	return nil
}

// AddItem creates an item in an existing category and appends it to the
// collection. A quantity below one is stored as model.DefaultQuantity.
func (s *Store) AddItem(ctx context.Context, name, description, categoryID, location string, quantity int) (*model.Item, error) {
	f, err := newItemFields(name, description, categoryID, location, quantity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categoryIndex(f.CategoryID) < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, f.CategoryID)
	}

	item := model.Item{
		ID:          s.newID(),
		Name:        f.Name,
		Description: f.Description,
		CategoryID:  f.CategoryID,
		Location:    f.Location,
		Quantity:    f.Quantity,
		CreatedAt:   s.now(),
	}

	next := append(slices.Clone(s.items), item)
	if err := save(ctx, s, ItemsKey, next); err != nil {
		return nil, err
	}
	s.items = next
	return &item, nil
}

// EditItem replaces every mutable field of an item in place.
func (s *Store) EditItem(ctx context.Context, id, name, description, categoryID, location string, quantity int) (*model.Item, error) {
	f, err := newItemFields(name, description, categoryID, location, quantity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.itemIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("item %q: %w", id, ErrNotFound)
	}
	if s.categoryIndex(f.CategoryID) < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, f.CategoryID)
	}

	next := slices.Clone(s.items)
	next[i].Name = f.Name
	next[i].Description = f.Description
	next[i].CategoryID = f.CategoryID
	next[i].Location = f.Location
	next[i].Quantity = f.Quantity

	if err := save(ctx, s, ItemsKey, next); err != nil {
		return nil, err
	}
	s.items = next

	item := next[i]
	return &item, nil
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.itemIndex(id)
	if i < 0 {
		return fmt.Errorf("item %q: %w", id, ErrNotFound)
	}

	next := slices.Delete(slices.Clone(s.items), i, i+1)
	if err := save(ctx, s, ItemsKey, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// Categories returns all categories in insertion order.
func (s *Store) Categories() []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories)
}

// Items returns all items in insertion order.
func (s *Store) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Category returns the category with the given id.
func (s *Store) Category(id string) (model.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.categoryIndex(id); i >= 0 {
		return s.categories[i], true
	}
	return model.Category{}, false
}

// Item returns the item with the given id.
func (s *Store) Item(id string) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.itemIndex(id); i >= 0 {
		return s.items[i], true
	}
	return model.Item{}, false
}

// ListItems returns the items passing filter, in insertion order.
func (s *Store) ListItems(filter model.ItemFilter) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []model.Item{}
	for _, item := range s.items {
		if filter.Match(item) {
			items = append(items, item)
		}
	}
	return items
}

// ItemCount returns how many items reference the category.
func (s *Store) ItemCount(categoryID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countItems(categoryID)
}

func (s *Store) categoryIndex(id string) int {
	return slices.IndexFunc(s.categories, func(c model.Category) bool { return c.ID == id })
}

func (s *Store) itemIndex(id string) int {
	return slices.IndexFunc(s.items, func(item model.Item) bool { return item.ID == id })
}

func (s *Store) countItems(categoryID string) int {
	n := 0
	for _, item := range s.items {
		if item.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
