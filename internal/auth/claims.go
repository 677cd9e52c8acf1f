package auth

// ProviderGitHub tags identities issued by GitHub.
const ProviderGitHub = "github"

// Claims is the payload an identity provider returns for an authenticated subject.
type Claims struct {
	UID      string
	Provider string
	Info     ClaimsInfo
}

// ClaimsInfo carries the optional profile attributes; nil means the provider did not supply the value.
type ClaimsInfo struct {
	Nickname *string
	Name     *string
	Email    *string
	Image    *string
}
