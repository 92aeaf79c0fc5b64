package pipeline

import "encoding/json"

// MotionDetector is a frame-diff heuristic: it reports motion when the
// fraction of bytes that changed between consecutive frames exceeds a
// configurable threshold. No external model dependency, grounded on the
// original's mock_detector shape but with a real (if simple) heuristic.
type MotionDetector struct {
	threshold float64
	prev      []byte
}

func (m *MotionDetector) Initialise(config json.RawMessage) error {
	var cfg struct {
		Threshold float64 `json:"threshold"`
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return err
		}
	}
	m.threshold = cfg.Threshold
	if m.threshold <= 0 {
		m.threshold = 0.05
	}
	return nil
}

func (m *MotionDetector) Process(frame Frame) ([]Detection, error) {
	defer func() { m.prev = frame.PixelData }()

	if m.prev == nil || len(m.prev) != len(frame.PixelData) || len(frame.PixelData) == 0 {
		return nil, nil
	}

	var changed int
	for i, b := range frame.PixelData {
		if b != m.prev[i] {
			changed++
		}
	}
	fraction := float64(changed) / float64(len(frame.PixelData))
	if fraction < m.threshold {
		return nil, nil
	}
	return []Detection{{Label: "motion", Confidence: fraction}}, nil
}

func (m *MotionDetector) Shutdown() error { return nil }
