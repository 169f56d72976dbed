package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// JoinRequestModel handles database operations for join requests.
type JoinRequestModel struct {
	db     *bun.DB
	policy dbretry.Policy
	logger *zap.Logger
}

// NewJoinRequest creates a JoinRequestModel with database access.
func NewJoinRequest(db *bun.DB, policy dbretry.Policy, logger *zap.Logger) *JoinRequestModel {
	return &JoinRequestModel{
		db:     db,
		policy: policy,
		logger: logger.Named("db_join_request"),
	}
}

// LatestForRequesterWithTx retrieves the newest request of a member. Returns nil when there is none.
func (r *JoinRequestModel) LatestForRequesterWithTx(
	ctx context.Context, tx bun.IDB, guildID, requesterID snowflake.ID,
) (*types.JoinRequest, error) {
	request := new(types.JoinRequest)

	err := forUpdate(tx.NewSelect().Model(request).
		Where("guild_id = ?", guildID).
		Where("requester_id = ?", requesterID).
		Order("submitted_at DESC", "id DESC").
		Limit(1)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get latest request: %w (guildID=%d, requesterID=%d)",
			err, guildID, requesterID)
	}

	return request, nil
}

// CreateWithTx inserts a request and fills in its ID.
func (r *JoinRequestModel) CreateWithTx(ctx context.Context, tx bun.IDB, request *types.JoinRequest) error {
	if _, err := tx.NewInsert().Model(request).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to create request: %w (guildID=%d, requesterID=%d)",
			err, request.GuildID, request.RequesterID)
	}

	return nil
}

// GetForUpdateWithTx retrieves and locks a request of a guild. Returns nil when it does not exist.
func (r *JoinRequestModel) GetForUpdateWithTx(
	ctx context.Context, tx bun.IDB, guildID snowflake.ID, requestID int64,
) (*types.JoinRequest, error) {
	request := new(types.JoinRequest)

	err := forUpdate(tx.NewSelect().Model(request).
		Where("id = ?", requestID).
		Where("guild_id = ?", guildID)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get request: %w (guildID=%d, requestID=%d)", err, guildID, requestID)
	}

	return request, nil
}

// UpdateDecisionWithTx writes the decision fields of a request.
func (r *JoinRequestModel) UpdateDecisionWithTx(ctx context.Context, tx bun.IDB, request *types.JoinRequest) error {
	_, err := tx.NewUpdate().Model(request).
		Column("status", "reason", "decided_at", "decided_by").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update request: %w (requestID=%d)", err, request.ID)
	}

	return nil
}

// Get retrieves a request of a guild. Returns nil when it does not exist.
func (r *JoinRequestModel) Get(ctx context.Context, guildID snowflake.ID, requestID int64) (*types.JoinRequest, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) (*types.JoinRequest, error) {
		request := new(types.JoinRequest)

		err := r.db.NewSelect().Model(request).
			Where("id = ?", requestID).
			Where("guild_id = ?", guildID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to get request: %w (guildID=%d, requestID=%d)", err, guildID, requestID)
		}

		return request, nil
	})
}

// ListPending retrieves the pending requests of a guild, newest first.
func (r *JoinRequestModel) ListPending(ctx context.Context, guildID snowflake.ID) ([]*types.JoinRequest, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.JoinRequest, error) {
		var requests []*types.JoinRequest

		err := r.db.NewSelect().Model(&requests).
			Where("guild_id = ?", guildID).
			Where("status = ?", enum.JoinRequestStatusPending).
			Order("submitted_at DESC", "id DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending requests: %w (guildID=%d)", err, guildID)
		}

		return requests, nil
	})
}

// ListByRequester retrieves every request of a member, newest first.
func (r *JoinRequestModel) ListByRequester(
	ctx context.Context, guildID, requesterID snowflake.ID,
) ([]*types.JoinRequest, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.JoinRequest, error) {
		var requests []*types.JoinRequest

		err := r.db.NewSelect().Model(&requests).
			Where("guild_id = ?", guildID).
			Where("requester_id = ?", requesterID).
			Order("submitted_at DESC", "id DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list requests: %w (guildID=%d, requesterID=%d)",
				err, guildID, requesterID)
		}

		return requests, nil
	})
}

// DeleteByGuildWithTx removes every request of a guild.
func (r *JoinRequestModel) DeleteByGuildWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID) error {
	_, err := tx.NewDelete().Model((*types.JoinRequest)(nil)).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete guild requests: %w (guildID=%d)", err, guildID)
	}

	return nil
}
