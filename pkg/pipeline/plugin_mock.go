package pipeline

import "encoding/json"

// MockDetector always returns one canned detection per frame. Grounded
// on the original's mock_detector, used by tests and demos that need a
// deterministic plugin with no external model dependency.
type MockDetector struct {
	label string
}

func (m *MockDetector) Initialise(config json.RawMessage) error {
	var cfg struct {
		Label string `json:"label"`
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return err
		}
	}
	m.label = cfg.Label
	if m.label == "" {
		m.label = "object"
	}
	return nil
}

func (m *MockDetector) Process(frame Frame) ([]Detection, error) {
	return []Detection{{Label: m.label, Confidence: 0.99}}, nil
}

func (m *MockDetector) Shutdown() error { return nil }
