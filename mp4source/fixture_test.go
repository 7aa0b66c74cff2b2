package mp4source

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/require"
)

const (
	fixtureTimescale      = 1000
	fixtureSamplesPerFrag = 10
	fixtureSampleDur      = 100
	fixtureSampleSize     = 100
)

// aacLC48kStereo is the AudioSpecificConfig of AAC-LC at 48kHz with two channels.
var aacLC48kStereo = []byte{0x11, 0x90}

// buildClip returns a fragmented MP4 file with an AAC track and a WebVTT track. Every second of media
// is one audio fragment of ten sync samples followed by one text fragment with a single cue.
func buildClip(t *testing.T, seconds int) []byte {
	t.Helper()

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(fixtureTimescale, "audio", "eng")
	esds := mp4.CreateEsdsBox(aacLC48kStereo)
	mp4a := mp4.CreateAudioSampleEntryBox("mp4a", 2, 16, 48000, esds)
	init.Moov.Trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4a)

	init.AddEmptyTrack(fixtureTimescale, "wvtt", "swe")
	require.NoError(t, init.Moov.Traks[1].SetWvttDescriptor("WEBVTT"))

	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))

	audioID := init.Moov.Traks[0].Tkhd.TrackID
	textID := init.Moov.Traks[1].Tkhd.TrackID
	for i := range seconds {
		seg := mp4.NewMediaSegment()

		audio, err := mp4.CreateFragment(uint32(2*i+1), audioID)
		require.NoError(t, err)
		seg.AddFragment(audio)
		for j := range fixtureSamplesPerFrag {
			data := bytes.Repeat([]byte{byte(i), byte(j)}, fixtureSampleSize/2)
			audio.AddFullSample(mp4.FullSample{
				Sample: mp4.Sample{
					Flags: mp4.SyncSampleFlags,
					Dur:   fixtureSampleDur,
					Size:  uint32(len(data)),
				},
				DecodeTime: uint64(i*fixtureTimescale + j*fixtureSampleDur),
				Data:       data,
			})
		}

		text, err := mp4.CreateFragment(uint32(2*i+2), textID)
		require.NoError(t, err)
		seg.AddFragment(text)
		cue := vttCue(t, fmt.Sprintf("cue %d", i))
		text.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: mp4.SyncSampleFlags,
				Dur:   fixtureTimescale,
				Size:  uint32(len(cue)),
			},
			DecodeTime: uint64(i * fixtureTimescale),
			Data:       cue,
		})

		require.NoError(t, seg.Encode(&buf))
	}

	return buf.Bytes()
}

func vttCue(t *testing.T, text string) []byte {
	t.Helper()

	vttc := mp4.VttcBox{}
	vttc.AddChild(&mp4.PaylBox{CueText: text})
	sw := bits.NewFixedSliceWriter(int(vttc.Size()))
	require.NoError(t, vttc.EncodeSW(sw))
	return sw.Bytes()
}
