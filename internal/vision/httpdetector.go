package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"interviewlab/internal/model"
)

// HTTPDetector calls an external face-detection inference service. The model
// itself is out of scope here; this client only speaks its contract: POST a
// frame, receive landmarks and emotion scores, or a 204 when no face was
// found.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
}

// NewHTTPDetector creates a detector client for the given endpoint.
func NewHTTPDetector(endpoint string) *HTTPDetector {
	return &HTTPDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type detectRequest struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp"`
	Data      []byte `json:"data"` // base64-encoded by encoding/json
}

type detectResponse struct {
	LeftEye  []Point             `json:"leftEye"`
	RightEye []Point             `json:"rightEye"`
	Nose     []Point             `json:"nose"`
	Mouth    []Point             `json:"mouth"`
	Emotions model.EmotionVector `json:"emotions"`
}

// Detect implements Detector.
func (d *HTTPDetector) Detect(ctx context.Context, frame Frame) (Observation, bool, error) {
	body, err := json.Marshal(detectRequest{
		Width:     frame.Width,
		Height:    frame.Height,
		Timestamp: frame.Timestamp,
		Data:      frame.Data,
	})
	if err != nil {
		return Observation{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return Observation{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return Observation{}, false, fmt.Errorf("detector request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return Observation{}, false, nil
	case http.StatusOK:
		var dr detectResponse
		if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
			return Observation{}, false, fmt.Errorf("decode detector response: %w", err)
		}
		return Observation{
			LeftEye:  dr.LeftEye,
			RightEye: dr.RightEye,
			Nose:     dr.Nose,
			Mouth:    dr.Mouth,
			Emotions: dr.Emotions,
		}, true, nil
	default:
		return Observation{}, false, fmt.Errorf("detector returned status %d", resp.StatusCode)
	}
}
