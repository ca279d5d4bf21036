package backends

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/shopstream/pkg/timestamp"
)

// Item is one catalog entry. CreatedAt and UpdatedAt are Unix milliseconds.
type Item struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	CreatedAt int64   `json:"created_at,omitempty"`
	UpdatedAt int64   `json:"updated_at,omitempty"`
}

// ItemStore implements the item backend commands over an in-memory map.
// update_item and delete_item converge under redelivery; create_item does
// not and can mint a duplicate item if its first reply was lost.
type ItemStore struct {
	mu    sync.Mutex
	items map[string]Item
}

// NewItemStore creates an empty item backend.
func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[string]Item)}
}

// CreateItem stores a new item under a fresh id and returns it.
func (s *ItemStore) CreateItem(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p struct {
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity int     `json:"quantity"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.New("invalid item payload")
	}
	if p.Name == "" {
		return nil, errors.New("item name is required")
	}
	if p.Price < 0 {
		return nil, errors.New("item price cannot be negative")
	}
	if p.Quantity < 0 {
		return nil, errors.New("item quantity cannot be negative")
	}

	now := timestamp.Now()
	item := Item{
		ID:        uuid.NewString(),
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  p.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()

	return json.Marshal(item)
}

// GetItem returns one item by id.
func (s *ItemStore) GetItem(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	id, err := decodeID(payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	item, ok := s.items[id]
	s.mu.Unlock()

	if !ok {
		return nil, ErrItemNotFound
	}
	return json.Marshal(item)
}

// ListItems returns every item, ordered by name then id so listings are
// stable across calls.
func (s *ItemStore) ListItems(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	items := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})

	return json.Marshal(map[string][]Item{"items": items})
}

// UpdateItem applies the fields present in the payload to an existing item.
// Absent fields keep their current values.
func (s *ItemStore) UpdateItem(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p struct {
		ID       string   `json:"id"`
		Name     *string  `json:"name"`
		Price    *float64 `json:"price"`
		Quantity *int     `json:"quantity"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
		return nil, errors.New("item id is required")
	}
	if p.Price != nil && *p.Price < 0 {
		return nil, errors.New("item price cannot be negative")
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return nil, errors.New("item quantity cannot be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[p.ID]
	if !ok {
		return nil, ErrItemNotFound
	}
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	item.UpdatedAt = timestamp.Now()
	s.items[p.ID] = item

	return json.Marshal(item)
}

// DeleteItem removes one item by id.
func (s *ItemStore) DeleteItem(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	id, err := decodeID(payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return nil, ErrItemNotFound
	}
	delete(s.items, id)

	return json.Marshal(map[string]string{"id": id})
}

func decodeID(payload json.RawMessage) (string, error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
		return "", errors.New("item id is required")
	}
	return p.ID, nil
}
