package services

import (
	"context"

	"realestate-scraper/models"
	"realestate-scraper/utils"
)

// Notifier receives the listings that are new in a run. Formatting and
// delivery belong to the implementation.
type Notifier interface {
	Notify(ctx context.Context, listings []map[string]any) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, listings []map[string]any) error

func (f NotifierFunc) Notify(ctx context.Context, listings []map[string]any) error {
	return f(ctx, listings)
}

// LogNotifier only logs what it would send.
type LogNotifier struct {
	logger *utils.Logger
}

func NewLogNotifier(logger *utils.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, listings []map[string]any) error {
	for _, l := range listings {
		n.logger.Info("[notify] New listing: %v | %v | %v", l["title"], l["location"], l["url"])
	}
	return nil
}

// listingMaps flattens persisted listings for the notification boundary.
func listingMaps(listings []*models.PersistedListing) []map[string]any {
	out := make([]map[string]any, len(listings))
	for i, l := range listings {
		out[i] = l.AsMap()
	}
	return out
}
