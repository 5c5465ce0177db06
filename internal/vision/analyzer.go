package vision

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"interviewlab/internal/model"
)

// earThreshold is the eye-aspect-ratio above which both eyes are considered
// open enough to count as eye contact.
const earThreshold = 0.2

// Outcome is the tagged result of analyzing one frame. A detection gap is a
// first-class state, never a fabricated signal; callers must treat
// Detected=false as a gap, not a data point.
type Outcome struct {
	Detected bool
	Signal   model.FacialSignal // valid only when Detected
}

// Observed wraps a signal in a detected outcome.
func Observed(sig model.FacialSignal) Outcome {
	return Outcome{Detected: true, Signal: sig}
}

// Undetected is the outcome for a frame with no usable face.
func Undetected() Outcome {
	return Outcome{}
}

// Analyzer converts raw detector observations into normalized FacialSignal
// records. The head pose numbers are heuristic 2D estimates, documented as
// approximate rather than metric-accurate.
type Analyzer struct {
	detector Detector
	log      *zap.Logger
}

// NewAnalyzer creates an analyzer over the given detector.
func NewAnalyzer(detector Detector, log *zap.Logger) *Analyzer {
	return &Analyzer{detector: detector, log: log}
}

// Analyze runs detection on one frame. A frame with no face yields
// Undetected with a nil error.
func (a *Analyzer) Analyze(ctx context.Context, frame Frame) (Outcome, error) {
	obs, ok, err := a.detector.Detect(ctx, frame)
	if err != nil {
		return Undetected(), fmt.Errorf("detect frame: %w", err)
	}
	if !ok {
		a.log.Debug("no face in frame", zap.Int64("timestamp", frame.Timestamp))
		return Undetected(), nil
	}
	return Observed(a.signalFrom(obs, frame.Timestamp)), nil
}

func (a *Analyzer) signalFrom(obs Observation, timestamp int64) model.FacialSignal {
	leftEAR := eyeAspectRatio(obs.LeftEye)
	rightEAR := eyeAspectRatio(obs.RightEye)
	avgEAR := (leftEAR + rightEAR) / 2

	emotions := obs.Emotions.Clone()
	if emotions == nil {
		emotions = model.EmotionVector{}
	}
	_, confidence := emotions.Dominant()

	return model.FacialSignal{
		Emotions:   emotions,
		EyeContact: avgEAR > earThreshold,
		HeadPose:   estimatePose(obs),
		Confidence: confidence,
		Timestamp:  timestamp,
	}
}

// estimatePose derives approximate head orientation from landmark geometry:
// roll from the angle between eye centers, yaw from the nose's horizontal
// offset, pitch from the mouth's vertical offset, both scaled by the
// inter-eye distance.
func estimatePose(obs Observation) model.HeadPose {
	leftCenter := centroid(obs.LeftEye)
	rightCenter := centroid(obs.RightEye)
	interEye := distance(leftCenter, rightCenter)
	if interEye == 0 {
		return model.HeadPose{}
	}

	roll := math.Atan2(rightCenter.Y-leftCenter.Y, rightCenter.X-leftCenter.X) * 180 / math.Pi

	eyeMid := Point{
		X: (leftCenter.X + rightCenter.X) / 2,
		Y: (leftCenter.Y + rightCenter.Y) / 2,
	}
	noseCenter := centroid(obs.Nose)
	mouthCenter := centroid(obs.Mouth)

	yaw := (noseCenter.X - eyeMid.X) / interEye * 45
	pitch := (mouthCenter.Y - eyeMid.Y) / interEye * 30

	return model.HeadPose{Pitch: pitch, Yaw: yaw, Roll: roll}
}
