package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"food-delivery/internal/apperr"
	"food-delivery/internal/models"
	"food-delivery/internal/util"

	"go.uber.org/zap"
)

const (
	usersFile       = "users.json"
	restaurantsFile = "restaurants.json"
	ordersFile      = "orders.json"
	lockFile        = "datastore.lock"
)

// State is the full content of the data files.
type State struct {
	Customers   map[string]*models.Customer
	Agents      map[string]*models.DeliveryAgent
	Restaurants map[string]*models.Restaurant
	Orders      map[string]*models.Order
}

// NewState returns an empty state
func NewState() *State {
	return &State{
		Customers:   make(map[string]*models.Customer),
		Agents:      make(map[string]*models.DeliveryAgent),
		Restaurants: make(map[string]*models.Restaurant),
		Orders:      make(map[string]*models.Order),
	}
}

// Store persists State as JSON documents in a directory.
//
// Every Update runs lock, reload, mutate, save, unlock as one unit so that
// several processes sharing the directory never overwrite each other.
type Store struct {
	dir    string
	locker Locker
	logger *zap.Logger
}

// NewStore creates the data directory if needed. A nil locker selects a
// FileLocker on <dir>/datastore.lock.
func NewStore(dir string, locker Locker) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if locker == nil {
		locker = NewFileLocker(filepath.Join(dir, lockFile))
	}

	return &Store{
		dir:    dir,
		locker: locker,
		logger: util.GetLogger(),
	}, nil
}

// Close releases the locker
func (s *Store) Close() error {
	return s.locker.Close()
}

// Dir returns the data directory
func (s *Store) Dir() string {
	return s.dir
}

// Update applies fn to freshly loaded state under the exclusive lock and
// saves the result. Nothing is written when fn returns an error.
func (s *Store) Update(ctx context.Context, fn func(*State) error) error {
	ctx, span := util.StartSpan(ctx, "Store.Update")
	defer span.End()

	unlock, err := s.acquire(ctx, "write", s.locker.Lock)
	if err != nil {
		return err
	}
	defer unlock()

	state, err := s.load()
	if err != nil {
		return err
	}

	if err := fn(state); err != nil {
		return err
	}

	return s.save(state)
}

// View applies fn to freshly loaded state under the shared lock.
func (s *Store) View(ctx context.Context, fn func(*State) error) error {
	ctx, span := util.StartSpan(ctx, "Store.View")
	defer span.End()

	unlock, err := s.acquire(ctx, "read", s.locker.RLock)
	if err != nil {
		return err
	}
	defer unlock()

	state, err := s.load()
	if err != nil {
		return err
	}

	return fn(state)
}

func (s *Store) acquire(ctx context.Context, mode string, lock func(context.Context) (func(), error)) (func(), error) {
	start := time.Now()
	unlock, err := lock(ctx)
	util.StoreLockWait.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		util.StoreErrorsTotal.WithLabelValues("lock").Inc()
		return nil, apperr.Storage("lock", err)
	}
	return unlock, nil
}

func (s *Store) load() (*State, error) {
	state := NewState()

	if err := s.readUsers(state); err != nil {
		return nil, err
	}
	if err := s.readDocument(restaurantsFile, &state.Restaurants); err != nil {
		return nil, err
	}
	if err := s.readDocument(ordersFile, &state.Orders); err != nil {
		return nil, err
	}

	s.normalize(state)
	return state, nil
}

func (s *Store) save(state *State) error {
	docs := []struct {
		name string
		v    interface{}
	}{
		{usersFile, encodeUsers(state)},
		{restaurantsFile, state.Restaurants},
		{ordersFile, state.Orders},
	}

	staged := make([]stagedFile, 0, len(docs))
	defer func() {
		for _, f := range staged {
			_ = os.Remove(f.tmp)
		}
	}()

	for _, doc := range docs {
		f, err := s.stage(doc.name, doc.v)
		if err != nil {
			util.StoreErrorsTotal.WithLabelValues("write").Inc()
			return apperr.Storage("write "+doc.name, err)
		}
		staged = append(staged, f)
	}

	// Each rename is atomic on its own but the three are not one unit;
	// orders.json goes last so a failure never leaves orders pointing at
	// users or restaurants that were not written.
	for len(staged) > 0 {
		f := staged[0]
		if err := os.Rename(f.tmp, f.dst); err != nil {
			util.StoreErrorsTotal.WithLabelValues("write").Inc()
			return apperr.Storage("rename "+filepath.Base(f.dst), err)
		}
		staged = staged[1:]
	}

	s.logger.Debug("Data saved",
		zap.String("dir", s.dir),
		zap.Int("orders", len(state.Orders)))
	return nil
}

// normalize fills nil collections and drops null entries so callers never
// deal with missing fields.
func (s *Store) normalize(state *State) {
	for id, r := range state.Restaurants {
		if r == nil {
			s.logger.Warn("Dropping null restaurant", zap.String("restaurant_id", id))
			delete(state.Restaurants, id)
			continue
		}
		if r.MenuItems == nil {
			r.MenuItems = make(map[string]*models.MenuItem)
		}
		for itemID, item := range r.MenuItems {
			if item == nil {
				s.logger.Warn("Dropping null menu item",
					zap.String("restaurant_id", id),
					zap.String("item_id", itemID))
				delete(r.MenuItems, itemID)
			}
		}
		if r.Orders == nil {
			r.Orders = []string{}
		}
	}
	for id, o := range state.Orders {
		if o == nil {
			s.logger.Warn("Dropping null order", zap.String("order_id", id))
			delete(state.Orders, id)
			continue
		}
		if o.Items == nil {
			o.Items = []models.OrderItem{}
		}
	}
	for _, c := range state.Customers {
		if c.OrderHistory == nil {
			c.OrderHistory = []string{}
		}
	}
	for _, a := range state.Agents {
		if a.CompletedDeliveries == nil {
			a.CompletedDeliveries = []string{}
		}
		if a.IsBusy() {
			a.Available = false
		}
	}
}
