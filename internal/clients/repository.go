package clients

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for client record storage.
// Update is optimistic: implementations must reject a record whose Version
// does not match the stored one with ErrVersionConflict.
type Repository interface {
	Create(ctx context.Context, req *CreateClientRequest) (*Client, error)
	GetByID(ctx context.Context, id string) (*Client, error)
	Update(ctx context.Context, c *Client) (*Client, error)
	ListLive(ctx context.Context, now time.Time) ([]*Client, error)
}

// InMemoryRepository is a Repository backed by a keyed map, used for tests
// and single-node development without Postgres.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Client
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Client),
	}
}

// Create creates a new client record in memory
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateClientRequest) (*Client, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &Client{
		ID:             uuid.New().String(),
		OwnerID:        req.OwnerID,
		Name:           req.Name,
		Phone:          req.Phone,
		AmountPaise:    req.AmountPaise,
		WindowStart:    req.WindowStart,
		WindowEnd:      req.WindowEnd,
		Status:         StatusPending,
		PaymentOptions: append([]PaymentOption(nil), req.PaymentOptions...),
		UPIID:          req.UPIID,
		QRCodeURL:      req.QRCodeURL,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.mu.Lock()
	r.records[c.ID] = c
	r.mu.Unlock()

	return cloneClient(c), nil
}

// GetByID retrieves a client record by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.records[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return cloneClient(c), nil
}

// Update replaces a client record if the submitted version is current.
func (r *InMemoryRepository) Update(ctx context.Context, c *Client) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[c.ID]
	if !ok {
		return nil, ErrClientNotFound
	}
	if stored.Version != c.Version {
		return nil, ErrVersionConflict
	}

	next := cloneClient(c)
	next.Version = stored.Version + 1
	next.UpdatedAt = time.Now().UTC()
	r.records[c.ID] = next

	return cloneClient(next), nil
}

// ListLive returns clients that still participate in reminder scheduling,
// ordered by window end.
func (r *InMemoryRepository) ListLive(ctx context.Context, now time.Time) ([]*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Client
	for _, c := range r.records {
		if c.Live(now) {
			out = append(out, cloneClient(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowEnd.Before(out[j].WindowEnd) })
	return out, nil
}

func cloneClient(c *Client) *Client {
	cp := *c
	cp.PaymentOptions = append([]PaymentOption(nil), c.PaymentOptions...)
	if c.LastReminderAt != nil {
		t := *c.LastReminderAt
		cp.LastReminderAt = &t
	}
	return &cp
}
