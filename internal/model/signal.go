package model

// Emotion is one of the seven fixed emotion classes the detector scores.
type Emotion string

const (
	EmotionNeutral   Emotion = "neutral"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionFearful   Emotion = "fearful"
	EmotionDisgusted Emotion = "disgusted"
	EmotionSurprised Emotion = "surprised"
)

// EmotionOrder is the canonical iteration order for the seven emotion keys.
// Dominant-emotion ties are broken by the first key in this order, so the
// result is stable across runs.
var EmotionOrder = []Emotion{
	EmotionNeutral,
	EmotionHappy,
	EmotionSad,
	EmotionAngry,
	EmotionFearful,
	EmotionDisgusted,
	EmotionSurprised,
}

// EmotionVector maps each of the seven emotion keys to a non-negative score.
// Scores from the detector sum to roughly 1 but this is not enforced.
type EmotionVector map[Emotion]float64

// Dominant returns the highest-scoring emotion and its score. Ties go to the
// earlier key in EmotionOrder. An empty or all-zero vector is neutral.
func (v EmotionVector) Dominant() (Emotion, float64) {
	best := EmotionNeutral
	bestScore := 0.0
	for _, e := range EmotionOrder {
		if score, ok := v[e]; ok && score > bestScore {
			best = e
			bestScore = score
		}
	}
	return best, bestScore
}

// Clone returns an independent copy of the vector.
func (v EmotionVector) Clone() EmotionVector {
	if v == nil {
		return nil
	}
	out := make(EmotionVector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// HeadPose holds heuristic head orientation estimates in degrees. These are
// derived from 2D landmark geometry, not a calibrated 3D solve, and should
// be treated as approximate.
type HeadPose struct {
	Pitch float64 `json:"pitch" bson:"pitch"`
	Yaw   float64 `json:"yaw" bson:"yaw"`
	Roll  float64 `json:"roll" bson:"roll"`
}

// FacialSignal is one normalized observation derived from a single sampled
// video frame. It is created once by the analyzer and owned exclusively by
// the aggregator that ingests it.
type FacialSignal struct {
	Emotions   EmotionVector `json:"emotions" bson:"emotions"`
	EyeContact bool          `json:"eyeContact" bson:"eyeContact"`
	HeadPose   HeadPose      `json:"headPose" bson:"headPose"`
	Confidence float64       `json:"confidence" bson:"confidence"` // 0-1, dominant emotion score
	Timestamp  int64         `json:"timestamp" bson:"timestamp"`   // epoch ms
}

// MoodDataPoint is one entry in a session's mood timeline: the dominant
// emotion observed for a single ingested signal.
type MoodDataPoint struct {
	Timestamp       int64         `json:"timestamp" bson:"timestamp"`
	DominantEmotion Emotion       `json:"dominantEmotion" bson:"dominantEmotion"`
	Confidence      float64       `json:"confidence" bson:"confidence"`
	Emotions        EmotionVector `json:"emotions" bson:"emotions"`
}
