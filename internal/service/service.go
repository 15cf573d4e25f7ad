package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"food-delivery/internal/models"
	"food-delivery/internal/store"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
)

var validate = validator.New()

// DataStore is the persistence gateway the services run on
type DataStore interface {
	Update(ctx context.Context, fn func(*store.State) error) error
	View(ctx context.Context, fn func(*store.State) error) error
}

// EventPublisher receives lifecycle events after a successful save
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishDeliveryTimeUpdated(ctx context.Context, event *models.DeliveryTimeUpdatedEvent) error
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error {
	return nil
}

func (NoopPublisher) PublishOrderStatusChanged(context.Context, *models.OrderStatusChangedEvent) error {
	return nil
}

func (NoopPublisher) PublishDeliveryTimeUpdated(context.Context, *models.DeliveryTimeUpdatedEvent) error {
	return nil
}

// Outcome reports an expected refusal of a state change. Applied is false
// with a Reason and Code when the change was refused; nothing is saved then.
type Outcome struct {
	Applied bool       `json:"applied"`
	Reason  string     `json:"reason,omitempty"`
	Code    codes.Code `json:"-"`
}

func applied(format string, args ...interface{}) Outcome {
	return Outcome{Applied: true, Reason: fmt.Sprintf(format, args...), Code: codes.OK}
}

func refused(code codes.Code, format string, args ...interface{}) Outcome {
	return Outcome{Applied: false, Reason: fmt.Sprintf(format, args...), Code: code}
}

// errRefused aborts a store update without turning the refusal into an error.
var errRefused = errors.New("change refused")

// updateOutcome runs fn inside a store update and saves only when fn applied.
func updateOutcome(ctx context.Context, ds DataStore, fn func(*store.State) (Outcome, error)) (Outcome, error) {
	var out Outcome
	err := ds.Update(ctx, func(state *store.State) error {
		var err error
		out, err = fn(state)
		if err != nil {
			return err
		}
		if !out.Applied {
			return errRefused
		}
		return nil
	})
	if errors.Is(err, errRefused) {
		return out, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// firstAvailableAgent picks the free agent that joined earliest, ties broken
// by the lowest user id.
func firstAvailableAgent(state *store.State) *models.DeliveryAgent {
	var best *models.DeliveryAgent
	for _, a := range state.Agents {
		if !a.Available || a.IsBusy() {
			continue
		}
		if best == nil ||
			a.JoinedAt.Before(best.JoinedAt) ||
			(a.JoinedAt.Equal(best.JoinedAt) && a.UserID < best.UserID) {
			best = a
		}
	}
	return best
}

func countAvailable(state *store.State) int {
	n := 0
	for _, a := range state.Agents {
		if a.Available && !a.IsBusy() {
			n++
		}
	}
	return n
}

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

func emailTaken(email string, owners []string) bool {
	for _, e := range owners {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

func sortedOrders(orders []*models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].PlacedTime.Equal(orders[j].PlacedTime) {
			return orders[i].OrderID < orders[j].OrderID
		}
		return orders[i].PlacedTime.Before(orders[j].PlacedTime)
	})
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
