package domain

// User is a registered account. Credentials are stored and compared as
// plaintext; this catalog has no real authentication model.
type User struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IsAdmin   bool   `json:"isAdmin"`
	IsPremium bool   `json:"isPremium"`
}

// PremiumCode is a single-use entitlement key generated by an admin.
type PremiumCode struct {
	Code        string `json:"code"`
	IsUsed      bool   `json:"isUsed"`
	GeneratedBy string `json:"generatedBy"`
}

// GeneratedMetadata is the shape returned by the metadata-generation
// service for a given title.
type GeneratedMetadata struct {
	Description string  `json:"description"`
	Genre       string  `json:"genre"`
	Rating      float64 `json:"rating"`
	Year        int     `json:"year"`
}
