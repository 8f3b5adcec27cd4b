package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Account is a local author. Its serial is Id; the host is always this node.
type Account struct {
	Id           uuid.UUID
	Username     string
	DisplayName  string
	Github       string
	ProfileImage string
	IsStaff      bool
	TokenHash    string
	CreatedAt    time.Time
}

func (acc *Account) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUsername: %s \n\tDisplayName: %s \n\tStaff: %t \n\tCREATED_AT: %s)", acc.Id, acc.Username, acc.DisplayName, acc.IsStaff, acc.CreatedAt)
}

// Name returns the display name, falling back to the username.
func (acc *Account) Name() string {
	if acc.DisplayName != "" {
		return acc.DisplayName
	}
	return acc.Username
}
