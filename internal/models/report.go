package models

import "fmt"

// ImageRecord is the identity extracted from an inbound object key.
// CustomerID is always a prefix of ImageID.
type ImageRecord struct {
	Bucket     string `json:"bucket"`
	ObjectKey  string `json:"object_key"`
	ImageID    string `json:"image_id"`
	CustomerID string `json:"customer_id"`
}

func (r ImageRecord) Source() string {
	return r.Bucket + "/" + r.ObjectKey
}

// BoundingBox locates a face within its source image, in relative coordinates.
type BoundingBox struct {
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
	Left   float64 `json:"Left"`
	Top    float64 `json:"Top"`
}

// Face is an indexed face as the directory reports it.
type Face struct {
	FaceID          string      `json:"FaceId"`
	ExternalImageID string      `json:"ExternalImageId"`
	BoundingBox     BoundingBox `json:"BoundingBox"`
	Confidence      float64     `json:"Confidence"`
}

// FaceMatch is one result from a face directory search. Similarity is 0-100.
// CounterpartID is derived by the evaluator and empty on raw search results.
type FaceMatch struct {
	Similarity    float64 `json:"Similarity"`
	Face          Face    `json:"Face"`
	CounterpartID string  `json:"CustomerId,omitempty"`
}

// MatchReport is the persisted artifact for one processed image. Written
// exactly once per successfully processed ingestion event, immutable after,
// keyed by the source image id. Matches holds only cross-customer matches.
type MatchReport struct {
	Source     string      `json:"Source"`
	CustomerID string      `json:"CustomerID"`
	Matches    []FaceMatch `json:"Matches"`
}

// AlertMessage is one per-counterpart aggregate emitted by the notifier.
// It is ephemeral: success is acceptance by the sink.
type AlertMessage struct {
	CustomerID    string  `json:"customer_id"`
	Source        string  `json:"source"`
	CounterpartID string  `json:"counterpart_id"`
	HitCount      int     `json:"hit_count"`
	MaxSimilarity float64 `json:"max_similarity"`
	Message       string  `json:"message"`
}

// Render builds the human-readable alert line published to the sink.
func (a AlertMessage) Render() string {
	return fmt.Sprintf("%s, image %s, matched %s %d times with max similarity %.3f",
		a.CustomerID, a.Source, a.CounterpartID, a.HitCount, a.MaxSimilarity)
}
