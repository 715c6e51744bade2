package recycling

import "sync"

// AudioSignal is a stream of fixed-size float32 frames, one per tick.
type AudioSignal struct {
	mu     sync.Mutex
	frames [][]float32
}

// NewAudioSignal creates an empty signal.
func NewAudioSignal() *AudioSignal {
	return &AudioSignal{}
}

// Append adds a frame at the end of the stream. The frame is not copied.
func (s *AudioSignal) Append(frame []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

// Frame returns the frame for tick, or nil past the end of the stream.
func (s *AudioSignal) Frame(tick int) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tick < 0 || tick >= len(s.frames) {
		return nil
	}
	return s.frames[tick]
}

// Len returns the number of frames.
func (s *AudioSignal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
