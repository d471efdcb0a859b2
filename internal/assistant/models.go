package assistant

// ModelInfo describes one selectable completion model.
type ModelInfo struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	MaxTokens       int      `json:"max_tokens"`
	Languages       []string `json:"languages"`
	CostPer1KTokens float64  `json:"cost_per_1k_tokens"`
}

// Models returns the catalog of selectable models.
func (s *Service) Models() []ModelInfo {
	return []ModelInfo{
		{
			ID:              "gemini-2.5-flash",
			Name:            "Gemini 2.5 Flash",
			Description:     "نموذج جوجل السريع للمحادثات متعددة اللغات",
			MaxTokens:       32768,
			Languages:       []string{"العربية", "الإنجليزية"},
			CostPer1KTokens: 0.0005,
		},
		{
			ID:              "gemini-2.0-flash",
			Name:            "Gemini 2.0 Flash",
			Description:     "نموذج جوجل السريع للمحادثات العامة",
			MaxTokens:       32768,
			Languages:       []string{"العربية", "الإنجليزية"},
			CostPer1KTokens: 0.0005,
		},
		{
			ID:              "gemini-1.5-pro",
			Name:            "Gemini 1.5 Pro",
			Description:     "نموذج جوجل المتقدم للتحليل المعقد",
			MaxTokens:       32768,
			Languages:       []string{"العربية", "الإنجليزية"},
			CostPer1KTokens: 0.0015,
		},
	}
}

// DefaultModel returns the model used when a request names none.
func (s *Service) DefaultModel() string { return s.defaultModel }
