package mp4source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Eyevinn/mp4ff/aac"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
	"github.com/samber/lo"
)

var (
	// ErrNotFragmented is returned for progressive MP4 files.
	ErrNotFragmented = errors.New("file is not fragmented")
	// ErrNoTracks is returned when no track of the file can be played.
	ErrNoTracks = errors.New("no playable tracks")
)

// track is one playable track of a movie.
type track struct {
	id        uint32
	timescale uint32
	format    *media.Format
	// lastFragment is the index of the track's last fragment, -1 when it has none.
	lastFragment int
}

// sample is one access unit with its times already converted to microseconds.
type sample struct {
	timeUs   int64
	decodeUs int64
	flags    media.SampleFlags
	data     []byte
}

// fragment holds the samples of one moof/mdat pair. Fragments carry a single track.
type fragment struct {
	track   int
	startUs int64
	endUs   int64
	size    int
	samples []sample
}

// movie is a parsed fragmented MP4 file.
type movie struct {
	tracks    []*track
	fragments []*fragment
}

// parse decodes a fragmented MP4 file.
func parse(r io.Reader) (*movie, error) {
	file, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("could not decode file: %w", err)
	}
	if !file.IsFragmented() || file.Init == nil {
		return nil, ErrNotFragmented
	}

	m := &movie{}
	byID := make(map[uint32]int)
	for _, trak := range file.Init.Moov.Traks {
		t, err := newTrack(trak)
		if err != nil {
			log.WithFields(map[string]any{"track": trak.Tkhd.TrackID}).Warnf("skipping track: %v", err)
			continue
		}
		byID[t.id] = len(m.tracks)
		m.tracks = append(m.tracks, t)
	}
	if len(m.tracks) == 0 {
		return nil, ErrNoTracks
	}

	trexs := make(map[uint32]*mp4.TrexBox)
	for _, trex := range file.Init.Moov.Mvex.Trexs {
		trexs[trex.TrackID] = trex
	}

	durations := make([]int64, len(m.tracks))
	for _, seg := range file.Segments {
		for _, frag := range seg.Fragments {
			trackID := frag.Moof.Traf.Tfhd.TrackID
			index, ok := byID[trackID]
			if !ok {
				continue
			}
			trex, ok := trexs[trackID]
			if !ok {
				return nil, fmt.Errorf("no trex for track %d", trackID)
			}

			f, err := m.newFragment(index, frag, trex)
			if err != nil {
				return nil, err
			}
			m.tracks[index].lastFragment = len(m.fragments)
			m.fragments = append(m.fragments, f)
			durations[index] = max(durations[index], f.endUs)
		}
	}

	for i, t := range m.tracks {
		t.format = t.format.WithDurationUs(durations[i])
		if t.lastFragment >= 0 {
			maxSize := lo.Max(lo.FlatMap(m.fragments, func(f *fragment, _ int) []int {
				if f.track != i {
					return nil
				}
				return lo.Map(f.samples, func(s sample, _ int) int { return len(s.data) })
			}))
			t.format = t.format.WithMaxInputSize(maxSize)
		}
	}

	return m, nil
}

func (m *movie) newFragment(index int, frag *mp4.Fragment, trex *mp4.TrexBox) (*fragment, error) {
	t := m.tracks[index]
	full, err := frag.GetFullSamples(trex)
	if err != nil {
		return nil, fmt.Errorf("could not get full samples: %w", err)
	}

	f := &fragment{track: index, startUs: media.UnknownTimeUs}
	isText := media.IsText(t.format.MimeType)
	for _, fs := range full {
		var flags media.SampleFlags
		if fs.IsSync() {
			flags = media.FlagSync
		}

		data := fs.Data
		if isText {
			data = []byte(cueText(fs.Data))
		}

		presentation := int64(fs.DecodeTime) + int64(fs.CompositionTimeOffset)
		s := sample{
			timeUs:   scaleToUs(uint64(max(presentation, 0)), t.timescale),
			decodeUs: scaleToUs(fs.DecodeTime, t.timescale),
			flags:    flags,
			data:     data,
		}
		if f.startUs == media.UnknownTimeUs {
			f.startUs = s.decodeUs
		}
		f.endUs = max(f.endUs, scaleToUs(fs.DecodeTime+uint64(fs.Dur), t.timescale))
		f.size += len(data)
		f.samples = append(f.samples, s)
	}
	if f.startUs == media.UnknownTimeUs {
		f.startUs = 0
		if tfdt := frag.Moof.Traf.Tfdt; tfdt != nil {
			f.startUs = scaleToUs(tfdt.BaseMediaDecodeTime(), t.timescale)
		}
		f.endUs = f.startUs
	}
	return f, nil
}

// newTrack maps a trak box to a track format.
func newTrack(trak *mp4.TrakBox) (*track, error) {
	mdia := trak.Mdia
	timescale := mdia.Mdhd.Timescale
	if timescale == 0 {
		return nil, errors.New("zero timescale")
	}

	language := mdia.Mdhd.GetLanguage()
	if mdia.Elng != nil {
		language = mdia.Elng.Language
	}

	desc, err := mdia.Minf.Stbl.Stsd.GetSampleDescription(0)
	if err != nil {
		return nil, fmt.Errorf("could not get sample description: %w", err)
	}

	id := trak.Tkhd.TrackID
	trackID := strconv.FormatUint(uint64(id), 10)
	t := &track{id: id, timescale: timescale, lastFragment: -1}

	switch desc.Type() {
	case "avc1", "avc3":
		visual := mdia.Minf.Stbl.Stsd.AvcX
		var initData [][]byte
		if visual.AvcC != nil {
			initData = append(append(initData, visual.AvcC.SPSnalus...), visual.AvcC.PPSnalus...)
		}
		t.format = media.NewVideoFormat(trackID, media.MimeVideoH264, media.NoValue, media.NoValue,
			media.UnknownTimeUs, int(visual.Width), int(visual.Height), initData)
	case "hvc1", "hev1":
		visual, ok := desc.(*mp4.VisualSampleEntryBox)
		if !ok {
			return nil, fmt.Errorf("unexpected %s sample entry %T", desc.Type(), desc)
		}
		t.format = media.NewVideoFormat(trackID, media.MimeVideoH265, media.NoValue, media.NoValue,
			media.UnknownTimeUs, int(visual.Width), int(visual.Height), nil)
	case "mp4a":
		mp4a := mdia.Minf.Stbl.Stsd.Mp4a
		if mp4a.Esds == nil {
			return nil, errors.New("mp4a without esds")
		}
		asc := mp4a.Esds.DecConfigDescriptor.DecSpecificInfo.DecConfig
		config, err := aac.DecodeAudioSpecificConfig(bytes.NewBuffer(asc))
		if err != nil {
			return nil, fmt.Errorf("could not decode audio specific config: %w", err)
		}
		t.format = media.NewAudioFormat(trackID, media.MimeAudioAAC, media.NoValue, media.NoValue,
			media.UnknownTimeUs, int(config.ChannelConfiguration), int(mp4a.SampleRate), [][]byte{asc}, language)
	case "Opus", "ac-3", "ec-3":
		audio, ok := desc.(*mp4.AudioSampleEntryBox)
		if !ok {
			return nil, fmt.Errorf("unexpected %s sample entry %T", desc.Type(), desc)
		}
		mime := map[string]string{
			"Opus": media.MimeAudioOpus,
			"ac-3": media.MimeAudioAC3,
			"ec-3": media.MimeAudioEAC3,
		}[desc.Type()]
		t.format = media.NewAudioFormat(trackID, mime, media.NoValue, media.NoValue,
			media.UnknownTimeUs, int(audio.ChannelCount), int(audio.SampleRate), nil, language)
	case "wvtt":
		t.format = media.NewTextFormat(trackID, media.MimeTextVTT, media.NoValue, media.UnknownTimeUs, language)
	default:
		return nil, fmt.Errorf("unsupported sample description type: %s", desc.Type())
	}

	return t, nil
}

// cueText returns the text of a WebVTT sample. Empty cue boxes and undecodable payloads yield no text.
func cueText(data []byte) string {
	box, err := mp4.DecodeBox(0, bytes.NewReader(data))
	if err != nil {
		return ""
	}
	if vttc, ok := box.(*mp4.VttcBox); ok && vttc.Payl != nil {
		return vttc.Payl.CueText
	}
	return ""
}

// scaleToUs converts a time in timescale units to microseconds without overflowing for long media.
func scaleToUs(t uint64, timescale uint32) int64 {
	ts := uint64(timescale)
	return int64(t/ts*media.MicrosPerSecond + t%ts*media.MicrosPerSecond/ts)
}

// seekIndex returns the first fragment loading must restart from so that every track in tracks can
// be read from positionUs.
func (m *movie) seekIndex(positionUs int64, tracks []int) int {
	if len(tracks) == 0 {
		return 0
	}

	index := len(m.fragments)
	for _, t := range tracks {
		first := -1
		last := -1
		for i, f := range m.fragments {
			if f.track != t {
				continue
			}
			if first == -1 {
				first = i
			}
			if f.startUs > positionUs {
				break
			}
			last = i
		}
		switch {
		case last != -1:
			index = min(index, last)
		case first != -1:
			index = min(index, first)
		}
	}
	return index
}

// FormatInfo summarizes one track of a file.
type FormatInfo struct {
	Format    *media.Format
	Fragments int
	Samples   int
	Bytes     int
}

func (m *movie) info() []*FormatInfo {
	infos := lo.Map(m.tracks, func(t *track, _ int) *FormatInfo {
		return &FormatInfo{Format: t.format}
	})
	for _, f := range m.fragments {
		info := infos[f.track]
		info.Fragments++
		info.Samples += len(f.samples)
		info.Bytes += f.size
	}
	return infos
}
