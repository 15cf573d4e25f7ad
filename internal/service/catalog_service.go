package service

import (
	"context"
	"sort"
	"strings"

	"food-delivery/internal/apperr"
	"food-delivery/internal/models"
	"food-delivery/internal/store"
	"food-delivery/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// CatalogService manages restaurants and their menus
type CatalogService struct {
	store  DataStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store DataStore) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// NewMenuItem is the input of AddItem
type NewMenuItem struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	PrepTime    int             `json:"prep_time"`
}

// RestaurantOverview summarizes the orders of a restaurant
type RestaurantOverview struct {
	RestaurantID   string `json:"restaurant_id"`
	Name           string `json:"name"`
	MenuItems      int    `json:"menu_items"`
	TotalOrders    int    `json:"total_orders"`
	ActiveOrders   int    `json:"active_orders"`
	DeliveryOrders int    `json:"delivery_orders"`
	TakeawayOrders int    `json:"takeaway_orders"`
}

// AddRestaurant creates an empty restaurant
func (s *CatalogService) AddRestaurant(ctx context.Context, name, address string) (*models.Restaurant, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddRestaurant")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidArgument("restaurant name is required")
	}

	restaurant := &models.Restaurant{
		RestaurantID: uuid.New().String(),
		Name:         name,
		Address:      strings.TrimSpace(address),
		MenuItems:    make(map[string]*models.MenuItem),
		Orders:       []string{},
	}
	err := s.store.Update(ctx, func(state *store.State) error {
		state.Restaurants[restaurant.RestaurantID] = restaurant
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Restaurant added", zap.String("restaurant_id", restaurant.RestaurantID), zap.String("name", name))
	return restaurant, nil
}

// ListRestaurants returns every restaurant sorted by name
func (s *CatalogService) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListRestaurants")
	defer span.End()

	var restaurants []*models.Restaurant
	err := s.store.View(ctx, func(state *store.State) error {
		restaurants = make([]*models.Restaurant, 0, len(state.Restaurants))
		for _, r := range state.Restaurants {
			restaurants = append(restaurants, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(restaurants, func(i, j int) bool {
		if restaurants[i].Name == restaurants[j].Name {
			return restaurants[i].RestaurantID < restaurants[j].RestaurantID
		}
		return restaurants[i].Name < restaurants[j].Name
	})
	return restaurants, nil
}

// GetMenu returns the menu of a restaurant sorted by item name
func (s *CatalogService) GetMenu(ctx context.Context, restaurantID string) ([]*models.MenuItem, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetMenu")
	defer span.End()

	var menu []*models.MenuItem
	err := s.store.View(ctx, func(state *store.State) error {
		restaurant, ok := state.Restaurants[restaurantID]
		if !ok {
			return apperr.NotFound("restaurant %s not found", restaurantID)
		}
		menu = make([]*models.MenuItem, 0, len(restaurant.MenuItems))
		for _, item := range restaurant.MenuItems {
			menu = append(menu, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(menu, func(i, j int) bool {
		if menu[i].Name == menu[j].Name {
			return menu[i].ItemID < menu[j].ItemID
		}
		return menu[i].Name < menu[j].Name
	})
	return menu, nil
}

// AddItem adds a menu item. Items with the same name are allowed.
func (s *CatalogService) AddItem(ctx context.Context, restaurantID string, req NewMenuItem) (*models.MenuItem, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddItem")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.InvalidArgument("item name is required")
	}
	if req.Price.IsNegative() {
		return nil, apperr.InvalidArgument("price cannot be negative")
	}
	if req.PrepTime < 0 {
		return nil, apperr.InvalidArgument("prep time cannot be negative")
	}

	item := &models.MenuItem{
		ItemID:      uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		PrepTime:    req.PrepTime,
	}
	err := s.store.Update(ctx, func(state *store.State) error {
		restaurant, ok := state.Restaurants[restaurantID]
		if !ok {
			return apperr.NotFound("restaurant %s not found", restaurantID)
		}
		restaurant.MenuItems[item.ItemID] = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Menu item added",
		zap.String("restaurant_id", restaurantID),
		zap.String("item_id", item.ItemID),
		zap.String("price", item.Price.StringFixed(2)))
	return item, nil
}

// RemoveItem deletes a menu item. Placed orders keep their snapshot.
func (s *CatalogService) RemoveItem(ctx context.Context, restaurantID, itemID string) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.RemoveItem")
	defer span.End()

	return updateOutcome(ctx, s.store, func(state *store.State) (Outcome, error) {
		restaurant, ok := state.Restaurants[restaurantID]
		if !ok {
			return refused(codes.NotFound, "restaurant %s not found", restaurantID), nil
		}
		if _, ok := restaurant.MenuItems[itemID]; !ok {
			return refused(codes.NotFound, "item %s not found", itemID), nil
		}
		delete(restaurant.MenuItems, itemID)
		return applied("item %s removed", itemID), nil
	})
}

// UpdateItemPrice changes the catalog price for future orders only
func (s *CatalogService) UpdateItemPrice(ctx context.Context, restaurantID, itemID string, price decimal.Decimal) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateItemPrice")
	defer span.End()

	if price.IsNegative() {
		return Outcome{}, apperr.InvalidArgument("price cannot be negative")
	}

	return updateOutcome(ctx, s.store, func(state *store.State) (Outcome, error) {
		restaurant, ok := state.Restaurants[restaurantID]
		if !ok {
			return refused(codes.NotFound, "restaurant %s not found", restaurantID), nil
		}
		item, ok := restaurant.MenuItems[itemID]
		if !ok {
			return refused(codes.NotFound, "item %s not found", itemID), nil
		}
		item.Price = price
		return applied("price of %s set to %s", item.Name, price.StringFixed(2)), nil
	})
}

// GetRestaurantOverview counts the orders placed at a restaurant
func (s *CatalogService) GetRestaurantOverview(ctx context.Context, restaurantID string) (*RestaurantOverview, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetRestaurantOverview")
	defer span.End()

	var overview RestaurantOverview
	err := s.store.View(ctx, func(state *store.State) error {
		restaurant, ok := state.Restaurants[restaurantID]
		if !ok {
			return apperr.NotFound("restaurant %s not found", restaurantID)
		}

		overview = RestaurantOverview{
			RestaurantID: restaurant.RestaurantID,
			Name:         restaurant.Name,
			MenuItems:    len(restaurant.MenuItems),
		}
		for _, id := range restaurant.Orders {
			order, ok := state.Orders[id]
			if !ok {
				continue
			}
			overview.TotalOrders++
			if !order.Status.IsTerminal() {
				overview.ActiveOrders++
			}
			switch order.OrderType {
			case models.OrderTypeDelivery:
				overview.DeliveryOrders++
			case models.OrderTypeTakeaway:
				overview.TakeawayOrders++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &overview, nil
}
