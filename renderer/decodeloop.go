package renderer

import (
	"errors"
	"slices"
	"time"

	"github.com/anisan-cli/reelplay/clock"
	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/drm"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/media"
	"github.com/anisan-cli/reelplay/source"
)

// maxCodecHotswapTime is how long a renderer stays ready after its decoder was replaced while started.
const maxCodecHotswapTime = time.Second

type sourceState int

const (
	sourceNotReady sourceState = iota
	sourceReady
	// sourceReadyReadMayFail is set when the source claimed readiness but a read returned nothing.
	sourceReadyReadMayFail
)

type reconfigurationState int

const (
	reconfigurationNone reconfigurationState = iota
	// reconfigurationWritePending means the initialization data of the new format must be written into
	// the next input buffer.
	reconfigurationWritePending
	// reconfigurationQueuePending means the initialization data was written but not queued yet.
	reconfigurationQueuePending
)

type reinitializationState int

const (
	reinitializationNone reinitializationState = iota
	// reinitializationSignalEndOfStream means end of stream must be queued to drain the decoder before
	// it is replaced.
	reinitializationSignalEndOfStream
	// reinitializationWaitEndOfStream means end of stream was queued and the decoder is draining.
	reinitializationWaitEndOfStream
)

// DecoderOptions configure the decoder driven by the audio and video renderers.
type DecoderOptions struct {
	Selector codec.Selector
	Factory  codec.Factory

	// Drm opens sessions for protected tracks. Protected media fails without it.
	Drm drm.SessionManager
	// PlayClearSamplesWithoutKeys lets clear samples of a protected track play before keys arrive.
	PlayClearSamplesWithoutKeys bool

	Clock    clock.Source
	Listener *EventListener
}

// decoderHooks are the variant specific steps of the decode loop.
type decoderHooks interface {
	// shouldInitDecoder adds variant conditions for creating a decoder once a format is known.
	shouldInitDecoder() bool
	configureDecoder(session codec.Session, format *media.Format, crypto codec.Crypto) error
	// canReconfigure reports whether the running decoder accepts newFormat in place.
	canReconfigure(adaptive bool, oldFormat, newFormat *media.Format) bool
	onInputFormatChanged(format *media.Format)
	onOutputFormatChanged(format *media.Format) error
	onOutputStreamEnded()
	// processOutputBuffer consumes a decoded buffer and reports whether it was released. Unreleased
	// buffers are offered again on the next work cycle.
	processOutputBuffer(positionUs, elapsedRealtimeUs int64, data []byte, info *codec.BufferInfo, index int, shouldSkip bool) (bool, error)
}

// decodeLoop feeds samples of the enabled track into a decoder session and drains its output.
type decodeLoop struct {
	opts     DecoderOptions
	track    *sourceTrack
	state    func() State
	hooks    decoderHooks
	counters counters

	format       *media.Format
	drmInitData  *media.DrmInitData
	formatHolder media.FormatHolder
	sample       *media.SampleHolder
	outputInfo   codec.BufferInfo
	decodeOnly   []int64

	session          codec.Session
	caps             codec.Capabilities
	openedDrmSession bool
	hotswapDeadline  time.Duration

	inputIndex  int
	outputIndex int

	reconfigured     bool
	reconfiguration  reconfigurationState
	reinitialization reinitializationState
	receivedBuffers  bool
	receivedEos      bool

	sourceState              sourceState
	inputStreamEnded         bool
	outputStreamEnded        bool
	waitingForKeys           bool
	waitingForFirstSyncFrame bool
}

func newDecodeLoop(opts DecoderOptions, track *sourceTrack, state func() State, hooks decoderHooks) *decodeLoop {
	if opts.Clock == nil {
		opts.Clock = clock.System
	}
	return &decodeLoop{
		opts:            opts,
		track:           track,
		state:           state,
		hooks:           hooks,
		sample:          media.NewSampleHolder(media.BufferReplacementNormal),
		hotswapDeadline: -1,
		inputIndex:      -1,
		outputIndex:     -1,
	}
}

// handles reports whether a decoder exists for mimeType.
func (d *decodeLoop) handles(mimeType string) (bool, error) {
	info, err := d.opts.Selector.DecoderInfo(mimeType, false)
	if err != nil {
		return false, err
	}
	return info.IsPresent(), nil
}

func (d *decodeLoop) doSomeWork(positionUs, elapsedRealtimeUs int64, sourceIsReady bool) error {
	defer d.counters.publish()

	switch {
	case !sourceIsReady:
		d.sourceState = sourceNotReady
	case d.sourceState == sourceNotReady:
		d.sourceState = sourceReady
	}

	if d.format == nil {
		if err := d.readFormat(positionUs); err != nil {
			return err
		}
	}

	if err := d.maybeInitDecoder(); err != nil {
		return err
	}
	if d.session == nil {
		return nil
	}

	for {
		more, err := d.drainOutputBuffer(positionUs, elapsedRealtimeUs)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}

	fed, err := d.feedInputBuffer(positionUs, true)
	for fed && err == nil {
		fed, err = d.feedInputBuffer(positionUs, false)
	}
	return err
}

func (d *decodeLoop) readFormat(positionUs int64) error {
	result, err := d.track.readData(positionUs, &d.formatHolder, nil)
	if err != nil {
		return err
	}
	if result == source.FormatRead {
		return d.onInputFormatChanged()
	}
	return nil
}

func (d *decodeLoop) shouldInitDecoder() bool {
	return d.session == nil && d.format != nil && d.hooks.shouldInitDecoder()
}

func (d *decodeLoop) maybeInitDecoder() error {
	if !d.shouldInitDecoder() {
		return nil
	}

	mimeType := d.format.MimeType
	var crypto codec.Crypto
	requiresSecure := false

	if d.drmInitData != nil {
		if d.opts.Drm == nil {
			return ErrDrmSessionManagerRequired
		}
		if !d.openedDrmSession {
			d.opts.Drm.Open(d.drmInitData)
			d.openedDrmSession = true
		}
		switch d.opts.Drm.State() {
		case drm.StateError:
			return d.opts.Drm.Error()
		case drm.StateOpened, drm.StateOpenedWithKeys:
			crypto = d.opts.Drm.Crypto()
			requiresSecure = d.opts.Drm.RequiresSecureDecoder(mimeType)
		default:
			// The session is still opening.
			return nil
		}
	}

	info, err := d.opts.Selector.DecoderInfo(mimeType, requiresSecure)
	if err != nil {
		return d.initError(&codec.DecoderInitError{
			MimeType:       mimeType,
			SecureRequired: requiresSecure,
			Reason:         codec.DecoderQueryError,
			Err:            err,
		})
	}
	decoder, ok := info.Get()
	if !ok {
		return d.initError(&codec.DecoderInitError{
			MimeType:       mimeType,
			SecureRequired: requiresSecure,
			Reason:         codec.NoSuitableDecoder,
		})
	}

	startedAt := d.opts.Clock.Elapsed()
	session, err := d.createSession(decoder.Name, crypto)
	if err != nil {
		return d.initError(&codec.DecoderInitError{
			MimeType:       mimeType,
			DecoderName:    decoder.Name,
			SecureRequired: requiresSecure,
			Reason:         codec.InstantiationError,
			Err:            err,
		})
	}

	initDuration := d.opts.Clock.Elapsed() - startedAt
	d.session = session
	d.caps = decoder.Capabilities
	d.opts.Listener.decoderInitialized(decoder.Name, initDuration)
	log.Component("renderer").WithFields(map[string]any{
		"decoder": decoder.Name,
		"mime":    mimeType,
		"secure":  requiresSecure,
	}).Info("decoder initialized")

	d.hotswapDeadline = -1
	if d.state() == StateStarted {
		d.hotswapDeadline = d.opts.Clock.Elapsed() + maxCodecHotswapTime
	}
	d.inputIndex = -1
	d.outputIndex = -1
	d.waitingForFirstSyncFrame = true
	d.counters.DecoderInitCount++
	return nil
}

func (d *decodeLoop) createSession(name string, crypto codec.Crypto) (codec.Session, error) {
	session, err := d.opts.Factory.CreateSession(name)
	if err != nil {
		return nil, err
	}
	if err := d.hooks.configureDecoder(session, d.format, crypto); err != nil {
		return nil, errors.Join(err, session.Release())
	}
	if err := session.Start(); err != nil {
		return nil, errors.Join(err, session.Release())
	}
	return session, nil
}

func (d *decodeLoop) initError(err *codec.DecoderInitError) error {
	d.opts.Listener.decoderInitError(err)
	log.Component("renderer").WithFields(map[string]any{
		"mime":    err.MimeType,
		"decoder": err.DecoderName,
	}).Error(err)
	return err
}

func (d *decodeLoop) releaseDecoder() error {
	if d.session == nil {
		return nil
	}

	d.hotswapDeadline = -1
	d.inputIndex = -1
	d.outputIndex = -1
	d.waitingForKeys = false
	d.decodeOnly = d.decodeOnly[:0]
	d.reconfigured = false
	d.receivedBuffers = false
	d.receivedEos = false
	d.caps = codec.Capabilities{}
	d.reconfiguration = reconfigurationNone
	d.reinitialization = reinitializationNone
	d.counters.DecoderReleaseCount++

	session := d.session
	d.session = nil
	return errors.Join(session.Stop(), session.Release())
}

func (d *decodeLoop) flushDecoder() error {
	d.hotswapDeadline = -1
	d.inputIndex = -1
	d.outputIndex = -1
	d.waitingForFirstSyncFrame = true
	d.waitingForKeys = false
	d.decodeOnly = d.decodeOnly[:0]

	recreate := d.caps.NeedsFlushWorkaround ||
		(d.caps.NeedsEosFlushWorkaround && d.receivedEos) ||
		d.reinitialization != reinitializationNone

	if recreate {
		// A pending reinitialization is completed right away.
		if err := d.releaseDecoder(); err != nil {
			return err
		}
		if err := d.maybeInitDecoder(); err != nil {
			return err
		}
	} else {
		if err := d.session.Flush(); err != nil {
			return err
		}
		d.receivedBuffers = false
	}

	if d.reconfigured && d.format != nil {
		d.reconfiguration = reconfigurationWritePending
	}
	return nil
}

func (d *decodeLoop) onDiscontinuity() error {
	d.sourceState = sourceNotReady
	d.inputStreamEnded = false
	d.outputStreamEnded = false
	if d.session != nil {
		return d.flushDecoder()
	}
	return nil
}

func (d *decodeLoop) onDisabled() error {
	d.format = nil
	d.drmInitData = nil
	err := d.releaseDecoder()
	if d.openedDrmSession {
		d.opts.Drm.Close()
		d.openedDrmSession = false
	}
	d.counters.publish()
	return err
}

func (d *decodeLoop) onInputFormatChanged() error {
	oldFormat := d.format
	d.format = d.formatHolder.Format
	d.drmInitData = d.formatHolder.DrmInitData
	d.hooks.onInputFormatChanged(d.format)

	if d.session != nil && d.hooks.canReconfigure(d.caps.Adaptive, oldFormat, d.format) {
		d.reconfigured = true
		d.reconfiguration = reconfigurationWritePending
		return nil
	}

	if d.receivedBuffers {
		// Drain the current decoder before replacing it.
		d.reinitialization = reinitializationSignalEndOfStream
		return nil
	}

	if err := d.releaseDecoder(); err != nil {
		return err
	}
	return d.maybeInitDecoder()
}

func (d *decodeLoop) feedInputBuffer(positionUs int64, firstFeed bool) (bool, error) {
	if d.session == nil || d.inputStreamEnded || d.reinitialization == reinitializationWaitEndOfStream {
		return false, nil
	}

	if d.inputIndex < 0 {
		d.inputIndex = d.session.DequeueInputBuffer()
		if d.inputIndex < 0 {
			return false, nil
		}
		d.sample.ClearData()
	}

	if d.reinitialization == reinitializationSignalEndOfStream {
		if !d.caps.NeedsEosPropagationWorkaround {
			if err := d.queueEndOfStream(); err != nil {
				return false, err
			}
		}
		d.reinitialization = reinitializationWaitEndOfStream
		return false, nil
	}

	result := source.SampleRead
	if !d.waitingForKeys {
		// The sample from the last attempt is still held while waiting for keys.
		if d.reconfiguration == reconfigurationWritePending {
			for _, data := range d.format.InitializationData {
				if err := d.writeConfiguration(data); err != nil {
					return false, err
				}
			}
			d.reconfiguration = reconfigurationQueuePending
		}

		var err error
		result, err = d.track.readData(positionUs, &d.formatHolder, d.sample)
		if err != nil {
			return false, err
		}
		if firstFeed && d.sourceState == sourceReady && result == source.NothingRead {
			d.sourceState = sourceReadyReadMayFail
		}
	}

	switch result {
	case source.NothingRead:
		return false, nil

	case source.FormatRead:
		if d.reconfiguration == reconfigurationQueuePending {
			// Two formats in a row: drop the initialization data of the first one.
			d.sample.ClearData()
			d.reconfiguration = reconfigurationWritePending
		}
		return true, d.onInputFormatChanged()

	case source.EndOfStream:
		if d.reconfiguration == reconfigurationQueuePending {
			d.sample.ClearData()
			d.reconfiguration = reconfigurationWritePending
		}
		d.inputStreamEnded = true
		if !d.receivedBuffers {
			return false, d.processEndOfStream()
		}
		if !d.caps.NeedsEosPropagationWorkaround {
			return false, d.queueEndOfStream()
		}
		return false, nil
	}

	if d.waitingForFirstSyncFrame {
		if !d.sample.IsSyncFrame() {
			d.sample.ClearData()
			if d.reconfiguration == reconfigurationQueuePending {
				d.reconfiguration = reconfigurationWritePending
			}
			return true, nil
		}
		d.waitingForFirstSyncFrame = false
	}

	encrypted := d.sample.IsEncrypted()
	waiting, err := d.shouldWaitForKeys(encrypted)
	if err != nil {
		return false, err
	}
	d.waitingForKeys = waiting
	if waiting {
		return false, nil
	}

	timeUs := d.sample.TimeUs
	if d.sample.IsDecodeOnly() {
		d.decodeOnly = append(d.decodeOnly, timeUs)
	}

	var flags codec.BufferFlags
	if d.sample.IsSyncFrame() {
		flags |= codec.BufferFlagKeyFrame
	}

	if encrypted {
		info := d.cryptoInfo(len(d.sample.Data) - d.sample.Size)
		err = d.session.QueueSecureInputBuffer(d.inputIndex, d.sample.Data, info, timeUs, flags)
	} else {
		err = d.session.QueueInputBuffer(d.inputIndex, d.sample.Data, timeUs, flags)
	}
	if err != nil {
		var cryptoErr *codec.CryptoError
		if errors.As(err, &cryptoErr) {
			d.opts.Listener.cryptoError(err)
		}
		return false, err
	}

	d.inputIndex = -1
	d.receivedBuffers = true
	d.reconfiguration = reconfigurationNone
	d.counters.InputBufferCount++
	return true, nil
}

func (d *decodeLoop) queueEndOfStream() error {
	d.receivedEos = true
	if err := d.session.QueueInputBuffer(d.inputIndex, nil, 0, codec.BufferFlagEndOfStream); err != nil {
		return err
	}
	d.inputIndex = -1
	return nil
}

// writeConfiguration prepends initialization data to the pending input without counting it as sample
// data.
func (d *decodeLoop) writeConfiguration(data []byte) error {
	if err := d.sample.EnsureSpaceForWrite(len(data)); err != nil {
		return err
	}
	d.sample.Data = append(d.sample.Data, data...)
	return nil
}

// cryptoInfo returns the sample's crypto info with the prepended configuration bytes marked as clear.
func (d *decodeLoop) cryptoInfo(configurationBytes int) *media.CryptoInfo {
	info := d.sample.CryptoInfo
	if configurationBytes == 0 {
		return &info
	}

	if len(info.NumBytesOfClearData) == 0 {
		info.NumBytesOfClearData = []int{0}
		info.NumBytesOfEncryptedData = []int{d.sample.Size}
	} else {
		info.NumBytesOfClearData = slices.Clone(info.NumBytesOfClearData)
	}
	info.NumBytesOfClearData[0] += configurationBytes
	return &info
}

func (d *decodeLoop) shouldWaitForKeys(sampleEncrypted bool) (bool, error) {
	if !d.openedDrmSession {
		return false, nil
	}
	state := d.opts.Drm.State()
	if state == drm.StateError {
		return false, d.opts.Drm.Error()
	}
	return state != drm.StateOpenedWithKeys && (sampleEncrypted || !d.opts.PlayClearSamplesWithoutKeys), nil
}

func (d *decodeLoop) drainOutputBuffer(positionUs, elapsedRealtimeUs int64) (bool, error) {
	if d.session == nil || d.outputStreamEnded {
		return false, nil
	}

	if d.outputIndex < 0 {
		d.outputIndex = d.session.DequeueOutputBuffer(&d.outputInfo)
	}

	switch {
	case d.outputIndex == codec.InfoOutputFormatChanged:
		d.outputIndex = -1
		d.counters.OutputFormatChangedCount++
		return true, d.hooks.onOutputFormatChanged(d.session.OutputFormat())

	case d.outputIndex == codec.InfoOutputBuffersChanged:
		d.outputIndex = -1
		d.counters.OutputBuffersChangedCount++
		return true, nil

	case d.outputIndex < 0:
		d.outputIndex = -1
		if d.caps.NeedsEosPropagationWorkaround &&
			(d.inputStreamEnded || d.reinitialization == reinitializationWaitEndOfStream) {
			return true, d.processEndOfStream()
		}
		return false, nil
	}

	if d.outputInfo.Flags&codec.BufferFlagEndOfStream != 0 {
		index := d.outputIndex
		d.outputIndex = -1
		if err := d.session.ReleaseOutputBuffer(index, false, 0); err != nil {
			return false, err
		}
		return false, d.processEndOfStream()
	}

	decodeOnly := slices.Index(d.decodeOnly, d.outputInfo.PresentationTimeUs)
	data := d.session.OutputBuffer(d.outputIndex)
	if end := d.outputInfo.Offset + d.outputInfo.Size; end <= len(data) {
		data = data[d.outputInfo.Offset:end]
	}

	processed, err := d.hooks.processOutputBuffer(positionUs, elapsedRealtimeUs, data, &d.outputInfo, d.outputIndex, decodeOnly >= 0)
	if err != nil || !processed {
		return false, err
	}

	if decodeOnly >= 0 {
		d.decodeOnly = slices.Delete(d.decodeOnly, decodeOnly, decodeOnly+1)
	}
	d.outputIndex = -1
	return true, nil
}

func (d *decodeLoop) processEndOfStream() error {
	if d.reinitialization == reinitializationWaitEndOfStream {
		if err := d.releaseDecoder(); err != nil {
			return err
		}
		return d.maybeInitDecoder()
	}
	d.outputStreamEnded = true
	d.hooks.onOutputStreamEnded()
	return nil
}

func (d *decodeLoop) withinHotswapPeriod() bool {
	return d.hotswapDeadline >= 0 && d.opts.Clock.Elapsed() < d.hotswapDeadline
}

func (d *decodeLoop) isReady() bool {
	return d.format != nil && !d.waitingForKeys &&
		(d.sourceState != sourceNotReady || d.outputIndex >= 0 || d.withinHotswapPeriod())
}

func (d *decodeLoop) isEnded() bool {
	return d.outputStreamEnded
}

func (d *decodeLoop) decoderInitialized() bool {
	return d.session != nil
}
