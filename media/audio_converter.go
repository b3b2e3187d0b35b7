package media

import (
	"context"
	"fmt"
	"strings"
)

// Audio format constants.
const (
	AudioFormatWAV  = "wav"
	AudioFormatMP3  = "mp3"
	AudioFormatFLAC = "flac"
	AudioFormatOGG  = "ogg"
	AudioFormatM4A  = "m4a"
	AudioFormatAAC  = "aac"
	AudioFormatPCM  = "pcm"
	AudioFormatWebM = "webm"
)

// Audio MIME type constants.
const (
	MIMETypeAudioWAV  = "audio/wav"
	MIMETypeAudioMP3  = "audio/mpeg"
	MIMETypeAudioFLAC = "audio/flac"
	MIMETypeAudioOGG  = "audio/ogg"
	MIMETypeAudioM4A  = "audio/mp4"
	MIMETypeAudioAAC  = "audio/aac"
	MIMETypeAudioPCM  = "audio/L16"
	MIMETypeAudioWebM = "audio/webm"
)

// Default configuration values.
const (
	DefaultFFmpegPath          = "ffmpeg"
	DefaultFFmpegTimeout       = 300
	DefaultFFmpegCheckTimeout  = 5
	DefaultTempFilePermissions = 0o600
)

var audioConversionGraph = map[string]bool{
	MIMETypeAudioWAV:  true,
	MIMETypeAudioMP3:  true,
	MIMETypeAudioFLAC: true,
	MIMETypeAudioOGG:  true,
	MIMETypeAudioM4A:  true,
	MIMETypeAudioAAC:  true,
	MIMETypeAudioPCM:  true,
	MIMETypeAudioWebM: true,
}

// AudioConverterConfig configures ffmpeg-backed audio format conversion.
type AudioConverterConfig struct {
	// FFmpegPath is the ffmpeg binary to invoke. Default: "ffmpeg" (PATH lookup).
	FFmpegPath string

	// FFmpegTimeout bounds a single conversion, in seconds. Default: 300.
	FFmpegTimeout int

	// SampleRate resamples output audio when > 0.
	SampleRate int

	// Channels remixes output audio when > 0.
	Channels int

	// BitRate sets the output bitrate for lossy formats (e.g. "192k").
	BitRate string
}

// DefaultAudioConverterConfig returns sensible defaults for audio conversion.
func DefaultAudioConverterConfig() AudioConverterConfig {
	return AudioConverterConfig{
		FFmpegPath:    DefaultFFmpegPath,
		FFmpegTimeout: DefaultFFmpegTimeout,
	}
}

// AudioConvertResult contains the result of an audio conversion.
type AudioConvertResult struct {
	Data         []byte
	Format       string
	MIMEType     string
	OriginalSize int64
	NewSize      int64
	WasConverted bool
}

// AudioConverter rescales and transcodes audio buffers via ffmpeg, used
// by nodes that need to normalize input audio to a model's expected
// sample rate/channel count/format before forwarding it downstream.
type AudioConverter struct {
	config AudioConverterConfig
}

// NewAudioConverter builds an AudioConverter; a zero-value config falls
// back to DefaultAudioConverterConfig's FFmpegPath/FFmpegTimeout.
func NewAudioConverter(config AudioConverterConfig) *AudioConverter {
	if config.FFmpegPath == "" {
		config.FFmpegPath = DefaultFFmpegPath
	}
	if config.FFmpegTimeout == 0 {
		config.FFmpegTimeout = DefaultFFmpegTimeout
	}
	return &AudioConverter{config: config}
}

// ConvertAudio converts data from fromMIME to toMIME. If the two
// normalize to the same format, the original bytes are returned
// unchanged and WasConverted is false.
func (c *AudioConverter) ConvertAudio(ctx context.Context, data []byte, fromMIME, toMIME string) (*AudioConvertResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("media: empty audio data")
	}

	fromNorm := normalizeMIMEType(fromMIME)
	toNorm := normalizeMIMEType(toMIME)

	if fromNorm == toNorm {
		return &AudioConvertResult{
			Data:         data,
			Format:       MIMETypeToAudioFormat(toNorm),
			MIMEType:     toNorm,
			OriginalSize: int64(len(data)),
			NewSize:      int64(len(data)),
			WasConverted: false,
		}, nil
	}

	converted, err := c.convertWithFFmpeg(ctx, data, fromNorm, toNorm)
	if err != nil {
		return nil, err
	}
	return &AudioConvertResult{
		Data:         converted,
		Format:       MIMETypeToAudioFormat(toNorm),
		MIMEType:     toNorm,
		OriginalSize: int64(len(data)),
		NewSize:      int64(len(converted)),
		WasConverted: true,
	}, nil
}

// CanConvert reports whether both MIME types are ones this converter
// knows how to map to an ffmpeg output format.
func (c *AudioConverter) CanConvert(fromMIME, toMIME string) bool {
	return audioConversionGraph[normalizeMIMEType(fromMIME)] && audioConversionGraph[normalizeMIMEType(toMIME)]
}

// IsFormatSupported reports whether mimeType (after normalization)
// appears in supported.
func IsFormatSupported(mimeType string, supported []string) bool {
	norm := normalizeMIMEType(mimeType)
	for _, s := range supported {
		if normalizeMIMEType(s) == norm {
			return true
		}
	}
	return false
}

// SelectTargetFormat picks the best of supported, preferring WAV, then
// MP3, then the first entry.
func SelectTargetFormat(supported []string) string {
	if len(supported) == 0 {
		return MIMETypeAudioWAV
	}
	for _, s := range supported {
		if normalizeMIMEType(s) == MIMETypeAudioWAV {
			return s
		}
	}
	for _, s := range supported {
		if normalizeMIMEType(s) == MIMETypeAudioMP3 {
			return s
		}
	}
	return supported[0]
}

// MIMETypeToAudioFormat converts a MIME type to an ffmpeg output format,
// defaulting to wav for anything unrecognized.
func MIMETypeToAudioFormat(mimeType string) string {
	switch normalizeMIMEType(mimeType) {
	case MIMETypeAudioMP3:
		return AudioFormatMP3
	case MIMETypeAudioFLAC:
		return AudioFormatFLAC
	case MIMETypeAudioOGG:
		return AudioFormatOGG
	case MIMETypeAudioM4A:
		return AudioFormatM4A
	case MIMETypeAudioAAC:
		return AudioFormatAAC
	case MIMETypeAudioPCM:
		return AudioFormatPCM
	case MIMETypeAudioWebM:
		return AudioFormatWebM
	default:
		return AudioFormatWAV
	}
}

// AudioFormatToMIMEType converts an ffmpeg output format to its MIME type.
func AudioFormatToMIMEType(format string) string {
	switch format {
	case AudioFormatMP3:
		return MIMETypeAudioMP3
	case AudioFormatFLAC:
		return MIMETypeAudioFLAC
	case AudioFormatOGG:
		return MIMETypeAudioOGG
	case AudioFormatM4A:
		return MIMETypeAudioM4A
	case AudioFormatAAC:
		return MIMETypeAudioAAC
	case AudioFormatPCM:
		return MIMETypeAudioPCM
	case AudioFormatWebM:
		return MIMETypeAudioWebM
	default:
		return MIMETypeAudioWAV
	}
}

// normalizeMIMEType strips parameters, lowercases, and folds known
// aliases (audio/x-wav, audio/wave, audio/mpeg, ...) to their canonical
// MIME type.
func normalizeMIMEType(mimeType string) string {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return MIMETypeAudioWAV
	case "audio/mpeg", "audio/mp3":
		return MIMETypeAudioMP3
	case "audio/flac", "audio/x-flac":
		return MIMETypeAudioFLAC
	case "audio/ogg":
		return MIMETypeAudioOGG
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return MIMETypeAudioM4A
	case "audio/aac":
		return MIMETypeAudioAAC
	case "audio/l16", "audio/pcm":
		return MIMETypeAudioPCM
	case "audio/webm":
		return MIMETypeAudioWebM
	default:
		return base
	}
}
