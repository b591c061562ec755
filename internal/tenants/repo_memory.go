package tenants

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"voicedesk/internal/apperr"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu         sync.Mutex
	profiles   map[string]Profile
	plans      map[string]Plan
	assistants map[string]string // assistant id -> user id
	numbers    map[string]string // stored phone number -> user id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		profiles:   map[string]Profile{},
		plans:      map[string]Plan{},
		assistants: map[string]string{},
		numbers:    map[string]string{},
	}
}

func (r *MemoryRepo) PutProfile(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
}

func (r *MemoryRepo) PutPlan(p Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = p
}

func (r *MemoryRepo) MapAssistant(assistantID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assistants[assistantID] = userID
}

// MapNumber stores number exactly as given, like a row in phone_numbers.
func (r *MemoryRepo) MapNumber(number, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.numbers[number] = userID
}

func (r *MemoryRepo) GetProfile(_ context.Context, userID string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, apperr.ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) ProfileByEmail(_ context.Context, email string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return Profile{}, apperr.ErrNotFound
}

func (r *MemoryRepo) UpdateProfile(_ context.Context, userID string, patch ProfilePatch, now time.Time) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, apperr.ErrNotFound
	}
	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.BusinessName != nil {
		p.BusinessName = *patch.BusinessName
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.Industry != nil {
		p.Industry = *patch.Industry
	}
	p.UpdatedAt = now
	r.profiles[userID] = p
	return p, nil
}

func (r *MemoryRepo) ListProfiles(_ context.Context) ([]Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) SetRole(_ context.Context, userID, role string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	p.Role = role
	p.UpdatedAt = now
	r.profiles[userID] = p
	return nil
}

func (r *MemoryRepo) SetPlan(_ context.Context, userID, planID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[planID]; !ok {
		return fmt.Errorf("%w: plan %q", apperr.ErrNotFound, planID)
	}
	p, ok := r.profiles[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	p.PlanID = planID
	r.profiles[userID] = p
	return nil
}

func (r *MemoryRepo) ListPlans(_ context.Context) ([]Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Plan, 0, len(r.plans))
	for _, p := range r.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlyPrice != out[j].MonthlyPrice {
			return out[i].MonthlyPrice < out[j].MonthlyPrice
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepo) UserByAssistant(_ context.Context, assistantID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if uid, ok := r.assistants[assistantID]; ok {
		return uid, nil
	}
	return "", apperr.ErrNotFound
}

func (r *MemoryRepo) UserByPhoneNumber(_ context.Context, variants []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range variants {
		if uid, ok := r.numbers[v]; ok {
			return uid, nil
		}
	}
	return "", apperr.ErrNotFound
}
