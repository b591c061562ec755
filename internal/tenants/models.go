package tenants

import "time"

// Industry selects which domain features a tenant gets. Only restaurante
// tenants have orders and reservations derived from calls.
type Industry string

const (
	IndustryRealEstate Industry = "inmobiliario"
	IndustryRestaurant Industry = "restaurante"
	IndustryClinic     Industry = "clinica"
)

func (i Industry) Valid() bool {
	switch i {
	case IndustryRealEstate, IndustryRestaurant, IndustryClinic:
		return true
	}
	return false
}

// Profile is a tenant account. The profile id is the tenant id.
type Profile struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name" db:"full_name"`
	BusinessName string    `json:"business_name" db:"business_name"`
	Phone        string    `json:"phone" db:"phone"`
	Industry     Industry  `json:"industry" db:"industry"`
	Role         string    `json:"role" db:"role"`
	PlanID       string    `json:"plan_id,omitempty" db:"plan_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type Plan struct {
	ID                    string  `json:"id" db:"id"`
	Name                  string  `json:"name" db:"name"`
	MonthlyPrice          float64 `json:"monthly_price" db:"monthly_price"`
	MaxCampaignRecipients int     `json:"max_campaign_recipients" db:"max_campaign_recipients"`
	Active                bool    `json:"active" db:"active"`
}

const SubscriptionActive = "active"

// ProfilePatch is what a tenant may change about itself. Nil fields are left alone.
type ProfilePatch struct {
	FullName     *string   `json:"full_name"`
	BusinessName *string   `json:"business_name"`
	Phone        *string   `json:"phone"`
	Industry     *Industry `json:"industry"`
}

func (p ProfilePatch) empty() bool {
	return p.FullName == nil && p.BusinessName == nil && p.Phone == nil && p.Industry == nil
}

// AdminPatch is what an admin may change about any account.
type AdminPatch struct {
	Role   *string `json:"role"`
	PlanID *string `json:"plan_id"`
}
