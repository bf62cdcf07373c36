package adapters

import (
	"context"

	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/pkg/places"
)

// Location resolves the business to a place record.
type Location struct {
	client places.Client
}

// NewLocation creates the location-data adapter.
func NewLocation(client places.Client) *Location {
	return &Location{client: client}
}

func (a *Location) Pass() model.PassID { return model.PassLocationData }

func (a *Location) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	place, err := a.client.FindBusiness(ctx,
		stringInput(inputs, model.KeyBusinessName),
		stringInput(inputs, model.KeyLocation),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		model.KeyPlaceID:           place.ID,
		model.KeyFormattedAddress:  place.FormattedAddress,
		model.KeyRegion:            place.Region(),
		model.KeyHasGoogleBusiness: place.Listed(),
	}, nil
}
