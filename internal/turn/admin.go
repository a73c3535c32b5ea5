package turn

import (
	"context"

	"go.uber.org/zap"

	"Chronicle/internal/game/entity"
	"Chronicle/modules/kit/errx"
)

// Administrative edits go through the same serialized store as turns, so
// they land strictly before or after any turn's commit. On a host they are
// followed by a full-sync.

func (c *Coordinator) SetFlag(ctx context.Context, key string, value any) error {
	if key == "" {
		return errx.ErrBadRequest.WithData("reason", "empty_flag_key")
	}
	return c.edit(ctx, "admin.set_flag", func(b *entity.Bundle) error {
		if b.State.WorldFlags == nil {
			b.State.WorldFlags = make(map[string]any)
		}
		b.State.WorldFlags[key] = value
		return nil
	}, zap.String("key", key))
}

func (c *Coordinator) DeleteFlag(ctx context.Context, key string) error {
	return c.edit(ctx, "admin.delete_flag", func(b *entity.Bundle) error {
		delete(b.State.WorldFlags, key)
		return nil
	}, zap.String("key", key))
}

// DeleteEntity removes the NPC, faction, location, quest, party effect or
// combatant carrying id. Players are never removed this way.
func (c *Coordinator) DeleteEntity(ctx context.Context, id string) error {
	if id == "" {
		return errx.ErrBadRequest.WithData("reason", "empty_entity_id")
	}
	return c.edit(ctx, "admin.delete_entity", func(b *entity.Bundle) error {
		r, err := c.reducer.Reduce(b.State, entity.Patch{RemovedIDs: []string{id}}, nil, false)
		if err != nil {
			return err
		}
		b.State = r.State
		return nil
	}, zap.String("entity_id", id))
}

func (c *Coordinator) edit(ctx context.Context, action string, fn func(b *entity.Bundle) error, fields ...zap.Field) error {
	if err := c.store.Commit(ctx, fn); err != nil {
		return err
	}
	c.log.WithContext(ctx).Info(action, fields...)
	if c.cfg.Role == RoleHost {
		c.broadcast(ctx)
	}
	return nil
}
