package users

import "github.com/MarcoPoloResearchLab/roster/internal/auth"

// AttributesFromClaims maps a provider claims payload onto the local attribute set.
// It never fails: absent or blank profile fields become nil.
func AttributesFromClaims(claims auth.Claims) Attributes {
	return Attributes{
		UID:       normalize(claims.UID),
		Provider:  normalize(claims.Provider),
		Username:  normalizeOptional(claims.Info.Nickname),
		Name:      normalizeOptional(claims.Info.Name),
		Email:     normalizeOptional(claims.Info.Email),
		AvatarURL: normalizeOptional(claims.Info.Image),
	}
}
