package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"food-delivery/internal/apperr"
	"food-delivery/internal/models"
	"food-delivery/internal/store"
	"food-delivery/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// AgentService manages the delivery agent pool
type AgentService struct {
	store  DataStore
	logger *zap.Logger
	now    func() time.Time
}

// NewAgentService creates a new agent service
func NewAgentService(store DataStore) *AgentService {
	return &AgentService{
		store:  store,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// AgentProfile is the read projection of a delivery agent
type AgentProfile struct {
	UserID              string    `json:"user_id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Available           bool      `json:"available"`
	OnDuty              bool      `json:"on_duty"`
	CurrentOrder        string    `json:"current_order,omitempty"`
	CompletedDeliveries int       `json:"completed_deliveries"`
	TotalDutyHours      float64   `json:"total_duty_hours"`
	JoinedAt            time.Time `json:"joined_at"`
}

// AddAgent registers a new agent, available and on duty
func (s *AgentService) AddAgent(ctx context.Context, name, email string) (*models.DeliveryAgent, error) {
	ctx, span := util.StartSpan(ctx, "AgentService.AddAgent")
	defer span.End()

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, apperr.InvalidArgument("agent name is required")
	}
	if !validEmail(email) {
		return nil, apperr.InvalidArgument("invalid email %q", email)
	}

	var (
		agent     *models.DeliveryAgent
		available int
	)
	err := s.store.Update(ctx, func(state *store.State) error {
		emails := make([]string, 0, len(state.Agents))
		for _, a := range state.Agents {
			emails = append(emails, a.Email)
		}
		if emailTaken(email, emails) {
			return apperr.AlreadyExists("agent with email %s already exists", email)
		}

		now := s.now()
		agent = &models.DeliveryAgent{
			UserID:              uuid.New().String(),
			Name:                name,
			Email:               email,
			Role:                models.RoleDeliveryAgent,
			Available:           true,
			CompletedDeliveries: []string{},
			JoinedAt:            now,
			DutySince:           ptrTime(now),
		}
		state.Agents[agent.UserID] = agent
		available = countAvailable(state)
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.AgentsAvailable.Set(float64(available))
	s.logger.Info("Delivery agent added", zap.String("agent_id", agent.UserID), zap.String("email", email))
	return agent, nil
}

// RemoveAgent deletes an agent that is not handling an order
func (s *AgentService) RemoveAgent(ctx context.Context, agentID string) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "AgentService.RemoveAgent")
	defer span.End()

	var available int
	out, err := updateOutcome(ctx, s.store, func(state *store.State) (Outcome, error) {
		agent, ok := state.Agents[agentID]
		if !ok {
			return refused(codes.NotFound, "agent %s not found", agentID), nil
		}
		if agent.IsBusy() {
			return refused(codes.FailedPrecondition, "agent %s is handling order %s", agentID, *agent.CurrentOrder), nil
		}

		delete(state.Agents, agentID)
		available = countAvailable(state)
		return applied("agent %s removed", agentID), nil
	})
	if err != nil || !out.Applied {
		return out, err
	}

	util.AgentsAvailable.Set(float64(available))
	s.logger.Info("Delivery agent removed", zap.String("agent_id", agentID))
	return out, nil
}

// ToggleDuty flips an idle agent between on and off duty. Going off duty
// adds the finished shift to TotalDutyHours.
func (s *AgentService) ToggleDuty(ctx context.Context, agentID string) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "AgentService.ToggleDuty")
	defer span.End()

	var available int
	out, err := updateOutcome(ctx, s.store, func(state *store.State) (Outcome, error) {
		agent, ok := state.Agents[agentID]
		if !ok {
			return refused(codes.NotFound, "agent %s not found", agentID), nil
		}
		if agent.IsBusy() {
			return refused(codes.FailedPrecondition,
				"agent %s cannot go off duty while handling order %s", agentID, *agent.CurrentOrder), nil
		}

		now := s.now()
		defer func() { available = countAvailable(state) }()

		if agent.Available {
			if agent.DutySince != nil {
				agent.TotalDutyHours += now.Sub(*agent.DutySince).Hours()
			}
			agent.Available = false
			agent.DutySince = nil
			return applied("agent %s is now off duty", agentID), nil
		}

		agent.Available = true
		agent.DutySince = ptrTime(now)
		return applied("agent %s is now on duty", agentID), nil
	})
	if err != nil || !out.Applied {
		return out, err
	}

	util.AgentsAvailable.Set(float64(available))
	s.logger.Info("Agent duty toggled", zap.String("agent_id", agentID), zap.String("result", out.Reason))
	return out, nil
}

// GetAgentProfile returns the profile of one agent
func (s *AgentService) GetAgentProfile(ctx context.Context, agentID string) (*AgentProfile, error) {
	ctx, span := util.StartSpan(ctx, "AgentService.GetAgentProfile")
	defer span.End()

	var profile AgentProfile
	err := s.store.View(ctx, func(state *store.State) error {
		agent, ok := state.Agents[agentID]
		if !ok {
			return apperr.NotFound("agent %s not found", agentID)
		}
		profile = s.profile(agent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListAgentProfiles returns every agent, by join time
func (s *AgentService) ListAgentProfiles(ctx context.Context) ([]AgentProfile, error) {
	ctx, span := util.StartSpan(ctx, "AgentService.ListAgentProfiles")
	defer span.End()

	var profiles []AgentProfile
	err := s.store.View(ctx, func(state *store.State) error {
		profiles = make([]AgentProfile, 0, len(state.Agents))
		for _, agent := range state.Agents {
			profiles = append(profiles, s.profile(agent))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].JoinedAt.Equal(profiles[j].JoinedAt) {
			return profiles[i].UserID < profiles[j].UserID
		}
		return profiles[i].JoinedAt.Before(profiles[j].JoinedAt)
	})
	return profiles, nil
}

// GetDeliveryHistory returns the ids of orders the agent completed
func (s *AgentService) GetDeliveryHistory(ctx context.Context, agentID string) ([]string, error) {
	ctx, span := util.StartSpan(ctx, "AgentService.GetDeliveryHistory")
	defer span.End()

	var history []string
	err := s.store.View(ctx, func(state *store.State) error {
		agent, ok := state.Agents[agentID]
		if !ok {
			return apperr.NotFound("agent %s not found", agentID)
		}
		history = append([]string{}, agent.CompletedDeliveries...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (s *AgentService) profile(agent *models.DeliveryAgent) AgentProfile {
	hours := agent.TotalDutyHours
	if agent.DutySince != nil {
		hours += s.now().Sub(*agent.DutySince).Hours()
	}

	p := AgentProfile{
		UserID:              agent.UserID,
		Name:                agent.Name,
		Email:               agent.Email,
		Available:           agent.Available,
		OnDuty:              agent.DutySince != nil,
		CompletedDeliveries: len(agent.CompletedDeliveries),
		TotalDutyHours:      hours,
		JoinedAt:            agent.JoinedAt,
	}
	if agent.IsBusy() {
		p.CurrentOrder = *agent.CurrentOrder
	}
	return p
}
