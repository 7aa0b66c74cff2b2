package media

import "strings"

// Mime types understood by the bundled sources and decoders.
const (
	MimeVideoH264 = "video/avc"
	MimeVideoH265 = "video/hevc"
	MimeVideoRaw  = "video/x-raw"

	MimeAudioAAC  = "audio/mp4a-latm"
	MimeAudioMPEG = "audio/mpeg"
	MimeAudioOpus = "audio/opus"
	MimeAudioAC3  = "audio/ac3"
	MimeAudioEAC3 = "audio/eac3"
	MimeAudioRaw  = "audio/raw"

	MimeTextPlain = "text/plain"
	MimeTextVTT   = "text/vtt"
	MimeTextTTML  = "application/ttml+xml"
)

func topLevelType(mime string) string {
	before, _, _ := strings.Cut(mime, "/")
	return before
}

// IsVideo reports whether the mime type describes a video stream.
func IsVideo(mime string) bool {
	return topLevelType(mime) == "video"
}

// IsAudio reports whether the mime type describes an audio stream.
func IsAudio(mime string) bool {
	return topLevelType(mime) == "audio"
}

// IsText reports whether the mime type describes a text stream.
func IsText(mime string) bool {
	return topLevelType(mime) == "text" || mime == MimeTextTTML
}
