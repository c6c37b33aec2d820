package domain

import "strings"

// Identity attributes orders and rewards to a person. Either field may be
// blank; an Identity with both blank is anonymous.
type Identity struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

func NewIdentity(userID, email string) Identity {
	return Identity{
		UserID: strings.TrimSpace(userID),
		Email:  NormalizeEmail(email),
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (i Identity) Empty() bool {
	return i.UserID == "" && i.Email == ""
}

// Key is the canonical identity key: the email when known, else the account
// id. Awards are unique per (Key, tier). An order reached anonymously (email
// from checkout) and later claimed (account id plus the same email) keeps the
// same key.
func (i Identity) Key() string {
	switch {
	case i.Email != "":
		return "email:" + i.Email
	case i.UserID != "":
		return "user:" + i.UserID
	default:
		return ""
	}
}

// Merge fills blank fields of i from other without overwriting.
func (i Identity) Merge(other Identity) Identity {
	if i.UserID == "" {
		i.UserID = other.UserID
	}
	if i.Email == "" {
		i.Email = other.Email
	}
	return i
}

func (i Identity) String() string {
	if k := i.Key(); k != "" {
		return k
	}
	return "anonymous"
}
