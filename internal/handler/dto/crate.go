package dto

import "github.com/cargoyard/cargoyard/internal/model"

// CrateListResponse is the body of GET /api/v1/crates.
type CrateListResponse struct {
	Crates []*model.Crate `json:"crates"`
	Meta   ListMeta       `json:"meta"`
}

// ListMeta carries listing totals.
type ListMeta struct {
	Total int64 `json:"total"`
}

// ToCrateListResponse converts a crate page.
func ToCrateListResponse(page *model.CratePage) CrateListResponse {
	return CrateListResponse{Crates: page.Crates, Meta: ListMeta{Total: page.Total}}
}

// CreateTokenRequest is the body of PUT /api/v1/me/tokens.
type CreateTokenRequest struct {
	APIToken struct {
		Name string `json:"name"`
	} `json:"api_token"`
}

// TokenListResponse is the body of GET /api/v1/me/tokens.
type TokenListResponse struct {
	APITokens []model.APITokenResponse `json:"api_tokens"`
}

// TokenCreateResponse returns a new token with its plaintext.
type TokenCreateResponse struct {
	APIToken model.APITokenCreateResponse `json:"api_token"`
}

// ToTokenListResponse converts tokens, hiding their hashes.
func ToTokenListResponse(tokens []*model.APIToken) TokenListResponse {
	out := make([]model.APITokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.ToResponse())
	}
	return TokenListResponse{APITokens: out}
}
