package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/internal/auth"
	"voicedesk/internal/phone"
	"voicedesk/internal/rbac"
	"voicedesk/pkg/logger"
)

// Repository persists profiles, plan subscriptions and the
// assistant / phone-number mappings used to resolve inbound calls.
type Repository interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
	ProfileByEmail(ctx context.Context, email string) (Profile, error)
	UpdateProfile(ctx context.Context, userID string, p ProfilePatch, now time.Time) (Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	SetRole(ctx context.Context, userID, role string, now time.Time) error
	// SetPlan upserts the account's subscription. An unknown plan yields apperr.ErrNotFound.
	SetPlan(ctx context.Context, userID, planID string, now time.Time) error
	ListPlans(ctx context.Context) ([]Plan, error)

	UserByAssistant(ctx context.Context, assistantID string) (string, error)
	// UserByPhoneNumber matches any of the given stored forms of a number.
	UserByPhoneNumber(ctx context.Context, variants []string) (string, error)
}

// AdminAuditor receives admin mutations. Implemented by audit.Service.
type AdminAuditor interface {
	LogAdminAction(ctx context.Context, targetUserID, message, metadata string) error
}

type Service struct {
	repo  Repository
	audit AdminAuditor
	clock func() time.Time
}

func NewService(repo Repository, audit AdminAuditor) *Service {
	return &Service{repo: repo, audit: audit, clock: time.Now}
}

func (s *Service) GetMe(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, errors.New("tenants: user_id required")
	}
	return s.repo.GetProfile(ctx, userID)
}

func (s *Service) PatchMe(ctx context.Context, userID string, p ProfilePatch) (Profile, error) {
	if userID == "" {
		return Profile{}, errors.New("tenants: user_id required")
	}
	if p.Industry != nil && !p.Industry.Valid() {
		return Profile{}, fmt.Errorf("%w: unknown industry %q", apperr.ErrInvalidArgument, *p.Industry)
	}
	p.FullName = trimmed(p.FullName)
	p.BusinessName = trimmed(p.BusinessName)
	p.Phone = trimmed(p.Phone)
	if p.empty() {
		return s.repo.GetProfile(ctx, userID)
	}
	return s.repo.UpdateProfile(ctx, userID, p, s.clock().UTC())
}

// Industry returns the tenant's industry, used to gate record derivation.
func (s *Service) Industry(ctx context.Context, userID string) (Industry, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	return p.Industry, nil
}

// ResolveTenant finds the owner of an inbound call: by assistant id first,
// then by the called number in its stored forms. No match yields apperr.ErrNotFound.
func (s *Service) ResolveTenant(ctx context.Context, assistantID, calledNumber string) (string, error) {
	if assistantID = strings.TrimSpace(assistantID); assistantID != "" {
		uid, err := s.repo.UserByAssistant(ctx, assistantID)
		if err == nil {
			return uid, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
	}
	if variants := phone.LookupVariants(calledNumber); len(variants) > 0 {
		uid, err := s.repo.UserByPhoneNumber(ctx, variants)
		if err == nil {
			return uid, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no tenant for assistant %q or number %q", apperr.ErrNotFound, assistantID, calledNumber)
}

// CredentialsByEmail implements auth.CredentialStore.
func (s *Service) CredentialsByEmail(ctx context.Context, email string) (auth.Credentials, error) {
	p, err := s.repo.ProfileByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return auth.Credentials{}, err
	}
	return credentials(p), nil
}

// CredentialsByID implements auth.CredentialStore.
func (s *Service) CredentialsByID(ctx context.Context, userID string) (auth.Credentials, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return auth.Credentials{}, err
	}
	return credentials(p), nil
}

func credentials(p Profile) auth.Credentials {
	role := p.Role
	if role == "" {
		role = rbac.RoleUser
	}
	return auth.Credentials{UserID: p.ID, Role: role, PasswordHash: p.PasswordHash}
}

func (s *Service) ListUsers(ctx context.Context) ([]Profile, error) {
	return s.repo.ListProfiles(ctx)
}

func (s *Service) ListPlans(ctx context.Context) ([]Plan, error) {
	return s.repo.ListPlans(ctx)
}

// RecipientLimit is the per-campaign recipient cap of the tenant's plan.
// 0 means the plan sets no cap, or the tenant has no active plan.
func (s *Service) RecipientLimit(ctx context.Context, userID string) (int, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	if p.PlanID == "" {
		return 0, nil
	}
	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return 0, err
	}
	for _, pl := range plans {
		if pl.ID == p.PlanID {
			return max(pl.MaxCampaignRecipients, 0), nil
		}
	}
	return 0, nil
}

// PatchUser changes another account's role and/or plan. Each applied change is audited.
func (s *Service) PatchUser(ctx context.Context, targetUserID string, p AdminPatch) (Profile, error) {
	if targetUserID == "" {
		return Profile{}, fmt.Errorf("%w: user id required", apperr.ErrInvalidArgument)
	}
	if p.Role == nil && p.PlanID == nil {
		return Profile{}, fmt.Errorf("%w: nothing to update", apperr.ErrInvalidArgument)
	}
	if p.Role != nil && !rbac.IsValidRole(*p.Role) {
		return Profile{}, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidArgument, *p.Role)
	}
	if p.PlanID != nil && strings.TrimSpace(*p.PlanID) == "" {
		return Profile{}, fmt.Errorf("%w: plan_id must not be empty", apperr.ErrInvalidArgument)
	}
	before, err := s.repo.GetProfile(ctx, targetUserID)
	if err != nil {
		return Profile{}, err
	}

	now := s.clock().UTC()
	if p.Role != nil {
		if err := s.repo.SetRole(ctx, targetUserID, *p.Role, now); err != nil {
			return Profile{}, err
		}
		s.auditAdmin(ctx, targetUserID, "role changed", map[string]string{"from": before.Role, "to": *p.Role})
	}
	if p.PlanID != nil {
		planID := strings.TrimSpace(*p.PlanID)
		if err := s.repo.SetPlan(ctx, targetUserID, planID, now); err != nil {
			return Profile{}, err
		}
		s.auditAdmin(ctx, targetUserID, "plan changed", map[string]string{"from": before.PlanID, "to": planID})
	}
	return s.repo.GetProfile(ctx, targetUserID)
}

func (s *Service) auditAdmin(ctx context.Context, target, msg string, meta map[string]string) {
	if s.audit == nil {
		return
	}
	b, _ := json.Marshal(meta)
	if err := s.audit.LogAdminAction(ctx, target, msg, string(b)); err != nil {
		logger.From(ctx).Warn("audit write failed", "target_user_id", target, "error", err)
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
