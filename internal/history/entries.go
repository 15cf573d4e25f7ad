package history

import "food-delivery/internal/models"

// FromOrderPlaced maps a placement to its first history entry
func FromOrderPlaced(e *models.OrderPlacedEvent) *models.StatusHistoryEntry {
	return &models.StatusHistoryEntry{
		EventID:   e.EventID,
		OrderID:   e.OrderID,
		ToStatus:  string(models.StatusPlaced),
		ChangedBy: e.CustomerID,
		ChangedAt: e.Timestamp,
	}
}

// FromStatusChanged maps a transition to a history entry
func FromStatusChanged(e *models.OrderStatusChangedEvent) *models.StatusHistoryEntry {
	return &models.StatusHistoryEntry{
		EventID:    e.EventID,
		OrderID:    e.OrderID,
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		ChangedBy:  e.ChangedBy,
		ChangedAt:  e.Timestamp,
	}
}
