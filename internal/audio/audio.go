// Package audio holds the PCM and WAV helpers shared by capture,
// transcription, and the offline store. All audio in the system is 16-bit
// mono PCM at 16 kHz.
package audio

import (
	"bytes"
	"encoding/binary"
)

const (
	// SampleRate is required by both the speech API config and VAD framing.
	SampleRate = 16000

	// FrameDurationMS is the VAD frame length. 10, 20, and 30 ms are the
	// supported sizes; 30 gives the best speech/silence discrimination.
	FrameDurationMS = 30

	// FrameSize is samples per VAD frame.
	FrameSize = SampleRate * FrameDurationMS / 1000

	bytesPerSample = 2
)

var riffMagic = []byte("RIFF")

// IsWAV reports whether data already carries a RIFF/WAV header.
func IsWAV(data []byte) bool {
	return bytes.HasPrefix(data, riffMagic)
}

// WrapPCM wraps raw 16-bit mono PCM in a minimal WAV container. Data that is
// already WAV passes through unchanged.
func WrapPCM(pcm []byte, sampleRate int) []byte {
	if IsWAV(pcm) {
		return pcm
	}
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}

	const headerLen = 44
	byteRate := sampleRate * bytesPerSample
	out := make([]byte, 0, headerLen+len(pcm))
	buf := bytes.NewBuffer(out)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))               // chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))                // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))                // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))       // sample rate
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))         // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample))   // block align
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample)) // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// Frames splits raw PCM into full frames of frameSize samples. A trailing
// partial frame is dropped.
func Frames(pcm []byte, frameSize int) [][]byte {
	if frameSize <= 0 {
		frameSize = FrameSize
	}
	frameBytes := frameSize * bytesPerSample
	if frameBytes == 0 || len(pcm) < frameBytes {
		return nil
	}
	frames := make([][]byte, 0, len(pcm)/frameBytes)
	for i := 0; i+frameBytes <= len(pcm); i += frameBytes {
		frames = append(frames, pcm[i:i+frameBytes])
	}
	return frames
}

// SpeechDetector gates audio frames on voice activity.
type SpeechDetector interface {
	// IsSpeech reports whether one frame contains speech.
	IsSpeech(frame []byte) bool

	// Available reports whether real detection is active. When false every
	// frame passes.
	Available() bool
}

// PassthroughDetector treats every frame as speech. It is the stand-in when
// no VAD backend is wired up: dropping silence is an optimization, keeping
// it is always correct.
type PassthroughDetector struct{}

func (PassthroughDetector) IsSpeech([]byte) bool { return true }
func (PassthroughDetector) Available() bool      { return false }

// FilterSpeech concatenates the frames det accepts. With an unavailable
// detector the input PCM is returned trimmed to whole frames.
func FilterSpeech(det SpeechDetector, pcm []byte) []byte {
	if det == nil {
		det = PassthroughDetector{}
	}
	var out []byte
	for _, f := range Frames(pcm, FrameSize) {
		if det.IsSpeech(f) {
			out = append(out, f...)
		}
	}
	return out
}
