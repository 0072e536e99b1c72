package deepgram

import (
	"fmt"

	"github.com/koscakluka/callflow-core/core/audio"
)

type encodingInfo struct {
	SampleRate int
	Format     string
}

// convertEncoding validates an encoding against what Deepgram's live
// transcription endpoint accepts. Companded formats are 8 kHz only.
func convertEncoding(encoding audio.EncodingInfo) (*encodingInfo, error) {
	converted := encodingInfo{}

	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		converted.SampleRate = encoding.SampleRate
	default:
		return nil, fmt.Errorf("unsupported sample rate: %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		converted.Format = encoding.Format.Name()
	case audio.EncodingALaw, audio.EncodingMulaw:
		converted.Format = encoding.Format.Name()
		if converted.SampleRate != 8000 {
			return nil, fmt.Errorf("unsupported sample rate for %s encoding: %d", encoding.Format.Name(), encoding.SampleRate)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding.Format.Name())
	}

	return &converted, nil
}
