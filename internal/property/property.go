// Package property is the read model of rental properties and the people
// who receive weather advisories for them.
package property

import (
	"strings"

	"github.com/neexbeast/weather-advisory/internal/weather"
)

// StatusActive is the occupant status that receives advisories.
const StatusActive = "active"

// Role distinguishes owner copy from occupant copy in notifications.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleOccupant Role = "occupant"
)

// Contact is a named email address.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Occupant is a boarder of a property and their boarding status.
type Occupant struct {
	Contact
	Status string `json:"status"`
}

// Active reports whether the occupant currently boards at the property.
func (o Occupant) Active() bool {
	return strings.EqualFold(o.Status, StatusActive)
}

// Property is one rental listing. Location is nil when no coordinate was recorded.
type Property struct {
	ID        int64               `json:"id"`
	Name      string              `json:"name"`
	Address   string              `json:"address"`
	Location  *weather.Coordinate `json:"location"`
	Owner     Contact             `json:"owner"`
	Occupants []Occupant          `json:"occupants,omitempty"`
}

// Recipient is one address an advisory will be sent to.
type Recipient struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}
