package ai

// LeaveAdvice captures the structured output from the AI model.
type LeaveAdvice struct {
	// LeaveTime is the suggested departure in RFC3339.
	LeaveTime string `json:"leave_time"`

	// Confidence is the model's on-time probability, 0 to 1.
	Confidence float64 `json:"confidence"`

	BufferMinutes int    `json:"buffer_minutes"`
	Explanation   string `json:"explanation"`

	Alternatives []struct {
		LeaveTime          string  `json:"leave_time"`
		ArrivalProbability float64 `json:"arrival_probability"`
		Description        string  `json:"description"`
	} `json:"alternatives,omitempty"`
}
