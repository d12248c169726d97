package models

// RelayClaims authorize one transfer through the relay endpoint for backends
// that cannot sign URLs themselves.
type RelayClaims struct {
	Issuer      string `json:"iss,omitempty"`
	Subject     string `json:"sub"` // object name
	IssuedAt    int64  `json:"iat"`
	ExpiresAt   int64  `json:"exp"`
	Method      string `json:"mth"`
	ContentType string `json:"ctp,omitempty"`
}
