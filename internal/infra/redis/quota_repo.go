package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/repository"
)

var _ repository.QuotaStateRepository = (*QuotaStateRepo)(nil)

// QuotaStateRepo keeps per-profile quota counters in Redis. Counters
// survive restarts but carry no TTL: window rollover happens in the
// use case when the state is loaded.
type QuotaStateRepo struct {
	client RedisClient
}

func NewQuotaStateRepo(client RedisClient) repository.QuotaStateRepository {
	return &QuotaStateRepo{client: client}
}

func (r *QuotaStateRepo) stateKey(profileID string) string {
	return fmt.Sprintf("quota_state:%s", profileID)
}

func (r *QuotaStateRepo) Get(ctx context.Context, profileID string) (*model.QuotaState, error) {
	data, err := r.client.Get(ctx, r.stateKey(profileID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var state model.QuotaState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("%w: quota state for %s: %v", domain.ErrCorruptState, profileID, err)
	}
	return &state, nil
}

func (r *QuotaStateRepo) Save(ctx context.Context, profileID string, state *model.QuotaState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.stateKey(profileID), data, 0)
}

func (r *QuotaStateRepo) Delete(ctx context.Context, profileID string) error {
	return r.client.Del(ctx, r.stateKey(profileID))
}
