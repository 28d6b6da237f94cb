package booking

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// COMPUTING RESOURCES
// =============================================================================

type CreateResourceInput struct {
	Model        string
	Serial       string
	Manufacturer string
	Type         ResourceType
}

// UpdateResourceInput is a partial update; nil fields are left alone.
type UpdateResourceInput struct {
	Model        *string
	Serial       *string
	Manufacturer *string
	Type         *ResourceType
}

func (s *Service) CreateResource(ctx context.Context, in CreateResourceInput) (res ComputingResource, err error) {
	logger := s.opLogger(ctx, "CreateResource")
	defer func() { logResult(ctx, logger, err, "resource created", "resource_id", res.ID) }()

	if in.Type == "" {
		in.Type = ResourceGPU
	}
	now := s.Now()
	res = ComputingResource{
		ID:           ResourceID(s.newID()),
		Model:        strings.TrimSpace(in.Model),
		Serial:       strings.TrimSpace(in.Serial),
		Manufacturer: strings.TrimSpace(in.Manufacturer),
		Type:         in.Type,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.store.CreateResource(ctx, res); err != nil {
		return ComputingResource{}, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

func (s *Service) GetResource(ctx context.Context, id ResourceID) (*ComputingResource, error) {
	res, err := s.store.GetResource(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load resource: %w", err)
	}
	if res == nil {
		return nil, ErrResourceNotFound
	}
	return res, nil
}

func (s *Service) ListResources(ctx context.Context) ([]ComputingResource, error) {
	list, err := s.store.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return list, nil
}

// UpdateResource changes a resource that no active calendar references.
func (s *Service) UpdateResource(ctx context.Context, id ResourceID, in UpdateResourceInput) (res ComputingResource, err error) {
	logger := s.opLogger(ctx, "UpdateResource", "resource_id", id)
	defer func() { logResult(ctx, logger, err, "resource updated") }()

	err = s.store.WithTx(ctx, func(tx Store) error {
		current, err := s.unboundResource(ctx, tx, id)
		if err != nil {
			return err
		}
		res = *current
		if in.Model != nil {
			res.Model = strings.TrimSpace(*in.Model)
		}
		if in.Serial != nil {
			res.Serial = strings.TrimSpace(*in.Serial)
		}
		if in.Manufacturer != nil {
			res.Manufacturer = strings.TrimSpace(*in.Manufacturer)
		}
		if in.Type != nil {
			res.Type = *in.Type
		}
		res.UpdatedAt = s.Now()
		if err := tx.UpdateResource(ctx, res); err != nil {
			return fmt.Errorf("update resource: %w", err)
		}
		return nil
	})
	if err != nil {
		return ComputingResource{}, err
	}
	return res, nil
}

// DeleteResource soft-deletes a resource that no active calendar references.
func (s *Service) DeleteResource(ctx context.Context, id ResourceID) (err error) {
	logger := s.opLogger(ctx, "DeleteResource", "resource_id", id)
	defer func() { logResult(ctx, logger, err, "resource deleted") }()

	return s.store.WithTx(ctx, func(tx Store) error {
		if _, err := s.unboundResource(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.DeleteResource(ctx, id, s.Now()); err != nil {
			return fmt.Errorf("delete resource: %w", err)
		}
		return nil
	})
}

// unboundResource loads id and fails when a non-archived calendar uses it.
func (s *Service) unboundResource(ctx context.Context, tx Store, id ResourceID) (*ComputingResource, error) {
	res, err := tx.GetResource(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load resource: %w", err)
	}
	if res == nil {
		return nil, ErrResourceNotFound
	}
	bound, err := tx.FindCalendars(ctx, CalendarFilter{ResourceID: &id})
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}
	if len(bound) > 0 {
		return nil, newError(KindResourceInUse, "computing resource %s is bound to calendar %q", id, bound[0].Name)
	}
	return res, nil
}
