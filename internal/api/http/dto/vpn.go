package dto

type GetVPNRequest struct {
	Name   string `json:"name" binding:"required"`
	Device string `json:"device" binding:"required"`
}

type GetVPNResponse struct {
	Success      bool         `json:"success"`
	Client       VPNClient    `json:"client"`
	Config       string       `json:"config"`
	QRCode       string       `json:"qrCode"`
	Instructions Instructions `json:"instructions"`
}

type VPNClient struct {
	Name      string `json:"name"`
	Device    string `json:"device"`
	IPAddress string `json:"ipAddress"`
	ID        string `json:"id"`
}

type Instructions struct {
	Step1       string `json:"step1"`
	Step2       string `json:"step2"`
	Step3       string `json:"step3"`
	DownloadURL string `json:"downloadUrl"`
}

// ValidationErrorResponse shows the caller what a valid body looks like.
type ValidationErrorResponse struct {
	Error   string        `json:"error"`
	Example GetVPNRequest `json:"example"`
}

type ServerErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
