package models

// CarInfo is the vehicle context attached to a diagnosis request.
type CarInfo struct {
	Make    string `json:"make"`
	Model   string `json:"model"`
	Year    int    `json:"year"`
	VIN     string `json:"vin"`
	Mileage int    `json:"mileage"`
	Engine  string `json:"engine"`
}

// DiagnoseRequest is the body of POST /api/diagnose.
type DiagnoseRequest struct {
	Text    string   `json:"text"`
	Image   string   `json:"image,omitempty"` // base64-encoded photo
	CarInfo *CarInfo `json:"carInfo,omitempty"`
}

// DiagnosisResult is one candidate diagnosis returned by the AI backend.
type DiagnosisResult struct {
	Diagnosis     string  `json:"diagnosis"`
	Description   string  `json:"description,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Risk          string  `json:"risk,omitempty"`
	Urgency       string  `json:"urgency,omitempty"`
	EstimatedCost string  `json:"estimatedCost"`
}

// DiagnoseResponse is the success body of POST /api/diagnose.
type DiagnoseResponse struct {
	Message string            `json:"message,omitempty"`
	Results []DiagnosisResult `json:"results"`
}

// DiagnoseError is the failure body of POST /api/diagnose.
type DiagnoseError struct {
	Error        string `json:"error"`
	Details      string `json:"details,omitempty"`
	IsQuotaError bool   `json:"isQuotaError,omitempty"`
}
