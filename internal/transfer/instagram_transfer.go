package transfer

type InstagramErrorDetail struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
}

type InstagramErrorResponse struct {
	Error InstagramErrorDetail `json:"error"`
}

type InstagramContainerResponse struct {
	ID string `json:"id"`
}

type InstagramContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
}

type InstagramPublishResponse struct {
	ID string `json:"id"`
}
