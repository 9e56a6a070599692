package models

// StorageNotification is the S3-compatible bucket notification body carried on
// the queue. One queue message may wrap multiple object records.
type StorageNotification struct {
	Records []StorageEventRecord `json:"Records"`
}

// StorageEventRecord is a single object-created record. Only the fields the
// pipeline reads are declared; the rest of the notification passes through
// untouched.
type StorageEventRecord struct {
	EventName string `json:"eventName,omitempty"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}
