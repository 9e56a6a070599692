package dto

type UploadImageResponse struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type ThresholdResponse struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type SetThresholdRequest struct {
	Value float64 `json:"value" binding:"required"`
}
