package api

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LoginRequest carries the Firebase ID token obtained by the client SDK.
type LoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// ThemeRequest is the body of PUT /session/theme.
type ThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

// LanguageRequest is the body of PUT /session/language.
type LanguageRequest struct {
	Language string `json:"language" binding:"required"`
}

// VisibilityRequest reports a tab visibility transition. Visible is a
// pointer so that an explicit false is distinguishable from an absent field.
type VisibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// ToggleBookmarkRequest identifies the content to toggle plus the display
// metadata stored alongside a newly created bookmark.
type ToggleBookmarkRequest struct {
	ContentID string `json:"contentId" binding:"required"`
	Title     string `json:"title"`
	PosterURL string `json:"posterUrl"`
	IsSeries  bool   `json:"isSeries"`
}

// RedeemCouponRequest is the body of POST /billing/redeem.
type RedeemCouponRequest struct {
	Code string `json:"code" binding:"required"`
}
