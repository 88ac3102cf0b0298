package provisioning

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/imamik/vcdflow/internal/config"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request describes a machine to launch. It is not modified by Launch.
type Request struct {
	// TemplateID identifies the template to instantiate.
	TemplateID string `json:"templateId" validate:"required"`
	// Name is the display name; it is normalized before use.
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`

	// ShapeID selects a shape from the catalog. When empty, CPU and MemoryMB
	// must be set.
	ShapeID  string `json:"shapeId,omitempty"`
	CPU      int    `json:"cpu,omitempty" validate:"gte=0"`
	MemoryMB int    `json:"memoryMb,omitempty" validate:"gte=0"`

	// NetworkID is optional; the first available network is used without it.
	NetworkID string `json:"networkId,omitempty"`
	// LocationID is optional and passed to the control plane as is.
	LocationID string `json:"locationId,omitempty"`
}

// shape validates the request and resolves its compute shape.
func (r Request) shape(catalog config.ShapeCatalog) (config.Shape, error) {
	if err := validate.Struct(r); err != nil {
		return config.Shape{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.ShapeID != "" {
		s, ok := catalog.Lookup(r.ShapeID)
		if !ok {
			return config.Shape{}, fmt.Errorf("%w: unknown shape %q", ErrInvalidRequest, r.ShapeID)
		}
		return s, nil
	}
	if r.CPU == 0 || r.MemoryMB == 0 {
		return config.Shape{}, fmt.Errorf("%w: either a shape or cpu and memory are required", ErrInvalidRequest)
	}
	return config.Shape{ID: config.ShapeID(r.MemoryMB, r.CPU), CPU: r.CPU, MemoryMB: r.MemoryMB}, nil
}
