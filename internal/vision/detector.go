package vision

import (
	"context"
	"math"

	"interviewlab/internal/model"
)

// Frame is one raw video frame handed to the detector. The pixel payload is
// opaque to this package.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp int64 // epoch ms
}

// Point is a 2D landmark coordinate in frame pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Observation is the raw output of a face detection model for one frame:
// landmark sets plus per-emotion scores. Eye sets follow the standard
// 6-point layout (outer corner, two upper lid points, inner corner, two
// lower lid points).
type Observation struct {
	LeftEye  []Point
	RightEye []Point
	Nose     []Point
	Mouth    []Point
	Emotions model.EmotionVector
}

// Detector wraps an external face-detection model. Detect returns the
// observation for the frame, or ok=false when no face was found. A failed
// detection is not an error; errors are reserved for the model itself
// misbehaving.
type Detector interface {
	Detect(ctx context.Context, frame Frame) (Observation, bool, error)
}

func centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return Point{X: sx / n, Y: sy / n}
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// eyeAspectRatio computes the EAR over a 6-point eye landmark set:
// (|p2-p6| + |p3-p5|) / (2 * |p1-p4|). Returns 0 for malformed sets.
func eyeAspectRatio(eye []Point) float64 {
	if len(eye) != 6 {
		return 0
	}
	horizontal := distance(eye[0], eye[3])
	if horizontal == 0 {
		return 0
	}
	v1 := distance(eye[1], eye[5])
	v2 := distance(eye[2], eye[4])
	return (v1 + v2) / (2 * horizontal)
}
