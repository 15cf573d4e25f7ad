package service

import (
	"context"
	"testing"
	"time"

	"food-delivery/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestAddAgent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	agent, err := env.agents.AddAgent(ctx, "Mike Smith", "mike@delivery.com")
	require.NoError(t, err)
	assert.True(t, agent.Available)
	assert.NotNil(t, agent.DutySince)
	assert.Empty(t, agent.CompletedDeliveries)

	_, err = env.agents.AddAgent(ctx, "Mike Again", "MIKE@delivery.com")
	assert.Equal(t, codes.AlreadyExists, apperr.Code(err))

	_, err = env.agents.AddAgent(ctx, "No At", "mike.delivery.com")
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))

	_, err = env.agents.AddAgent(ctx, "  ", "blank@delivery.com")
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))

	assert.Len(t, env.state(t).Agents, 1)
}

func TestRemoveAgent(t *testing.T) {
	env := newTestEnv(t)
	f := env.seed(t)
	ctx := context.Background()

	busy := env.addAgent(t, "Mike Smith", "mike@delivery.com")
	idle := env.addAgent(t, "Sarah Johnson", "sarah@delivery.com")
	env.place(t, f, "Home Delivery", OrderItemRequest{ItemID: f.pizza.ItemID, Quantity: 1})

	out, err := env.agents.RemoveAgent(ctx, busy.UserID)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, codes.FailedPrecondition, out.Code)
	assert.Contains(t, env.state(t).Agents, busy.UserID)

	out, err = env.agents.RemoveAgent(ctx, idle.UserID)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.NotContains(t, env.state(t).Agents, idle.UserID)

	out, err = env.agents.RemoveAgent(ctx, idle.UserID)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, codes.NotFound, out.Code)
}

func TestToggleDutyAccumulatesHours(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	agent := env.addAgent(t, "Mike Smith", "mike@delivery.com")
	env.clock.Advance(2*time.Hour - time.Second)

	out, err := env.agents.ToggleDuty(ctx, agent.UserID)
	require.NoError(t, err)
	require.True(t, out.Applied)

	profile, err := env.agents.GetAgentProfile(ctx, agent.UserID)
	require.NoError(t, err)
	assert.False(t, profile.Available)
	assert.False(t, profile.OnDuty)
	assert.InDelta(t, 2.0, profile.TotalDutyHours, 0.001)

	env.clock.Advance(5 * time.Hour)
	out, err = env.agents.ToggleDuty(ctx, agent.UserID)
	require.NoError(t, err)
	require.True(t, out.Applied)

	env.clock.Advance(30 * time.Minute)
	profile, err = env.agents.GetAgentProfile(ctx, agent.UserID)
	require.NoError(t, err)
	assert.True(t, profile.Available)
	assert.True(t, profile.OnDuty)
	assert.InDelta(t, 2.5, profile.TotalDutyHours, 0.001)

	out, err = env.agents.ToggleDuty(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, codes.NotFound, out.Code)
}

func TestAgentProfilesAndHistory(t *testing.T) {
	env := newTestEnv(t)
	f := env.seed(t)
	ctx := context.Background()

	first := env.addAgent(t, "Mike Smith", "mike@delivery.com")
	second := env.addAgent(t, "Sarah Johnson", "sarah@delivery.com")

	order := env.place(t, f, "Home Delivery", OrderItemRequest{ItemID: f.pizza.ItemID, Quantity: 1})

	profiles, err := env.agents.ListAgentProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, first.UserID, profiles[0].UserID)
	assert.Equal(t, order.OrderID, profiles[0].CurrentOrder)
	assert.False(t, profiles[0].Available)
	assert.Equal(t, second.UserID, profiles[1].UserID)
	assert.Empty(t, profiles[1].CurrentOrder)

	advanceToDelivered(t, env, order.OrderID, first.UserID)

	profile, err := env.agents.GetAgentProfile(ctx, first.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.CompletedDeliveries)
	assert.True(t, profile.Available)

	_, err = env.agents.GetAgentProfile(ctx, "missing")
	assert.Equal(t, codes.NotFound, apperr.Code(err))

	_, err = env.agents.GetDeliveryHistory(ctx, "missing")
	assert.Equal(t, codes.NotFound, apperr.Code(err))
}
