package model

import "regexp"

type Gender int

const (
	GenderUnknown Gender = 0
	GenderMale    Gender = 1
	GenderFemale  Gender = 2
)

// UserView is the redacted profile shown next to a team.
type UserView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Gender    Gender `json:"gender"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

var (
	phonePattern = regexp.MustCompile(`^(\d{3})\d*(\d{4})$`)
	emailPattern = regexp.MustCompile(`^([^@])[^@]*(@.*)$`)
)

// MaskPhone keeps the first three and last four digits.
// Anything that is not a plain digit string of at least 7 digits is dropped.
func MaskPhone(phone string) string {
	if !phonePattern.MatchString(phone) {
		return ""
	}
	return phonePattern.ReplaceAllString(phone, "$1****$2")
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	if !emailPattern.MatchString(email) {
		return ""
	}
	return emailPattern.ReplaceAllString(email, "$1****$2")
}
