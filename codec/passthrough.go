package codec

import (
	"bytes"
	"fmt"

	"github.com/anisan-cli/reelplay/media"
)

// PassthroughOptions sizes a Passthrough session.
type PassthroughOptions struct {
	// InputSlots bounds the number of queued inputs whose output was not dequeued yet.
	InputSlots int
	// OutputSlots bounds the number of dequeued outputs not released yet.
	OutputSlots int
	// Latency holds back this many inputs before their outputs become available, as a real decoder's
	// pipeline would.
	Latency int
}

type passthroughBuffer struct {
	data  []byte
	info  BufferInfo
	input int
}

// Passthrough is a Session whose output buffers carry the input data unchanged. It decodes raw media
// and stands in for hardware decoders in tests.
type Passthrough struct {
	name string
	opts PassthroughOptions

	format       *media.Format
	outputFormat *media.Format
	surface      Surface
	crypto       Crypto

	configured          bool
	started             bool
	formatChangePending bool

	freeInputs  []int
	queued      []passthroughBuffer
	eosQueued   bool
	outputs     map[int]passthroughBuffer
	freeOutputs []int

	// Rendered counts the frames handed to the surface.
	Rendered int
}

// NewPassthrough returns an unconfigured session.
func NewPassthrough(name string, opts PassthroughOptions) *Passthrough {
	if opts.InputSlots <= 0 {
		opts.InputSlots = 4
	}
	if opts.OutputSlots <= 0 {
		opts.OutputSlots = 4
	}
	return &Passthrough{name: name, opts: opts}
}

func (p *Passthrough) Name() string {
	return p.name
}

func (p *Passthrough) Configure(format *media.Format, surface Surface, crypto Crypto) error {
	if p.started {
		return fmt.Errorf("configure %s: already started", p.name)
	}
	p.format = format
	p.outputFormat = nil
	p.surface = surface
	p.crypto = crypto
	p.configured = true
	return nil
}

func (p *Passthrough) Start() error {
	if !p.configured {
		return fmt.Errorf("start %s: not configured", p.name)
	}
	p.started = true
	p.formatChangePending = true
	p.reset()
	return nil
}

func (p *Passthrough) reset() {
	p.freeInputs = p.freeInputs[:0]
	for i := range p.opts.InputSlots {
		p.freeInputs = append(p.freeInputs, i)
	}
	p.freeOutputs = p.freeOutputs[:0]
	for i := range p.opts.OutputSlots {
		p.freeOutputs = append(p.freeOutputs, i)
	}
	p.queued = nil
	p.outputs = make(map[int]passthroughBuffer)
	p.eosQueued = false
}

func (p *Passthrough) DequeueInputBuffer() int {
	if !p.started || len(p.freeInputs) == 0 {
		return -1
	}
	index := p.freeInputs[0]
	p.freeInputs = p.freeInputs[1:]
	return index
}

func (p *Passthrough) QueueInputBuffer(index int, data []byte, presentationTimeUs int64, flags BufferFlags) error {
	if !p.started {
		return ErrNotStarted
	}
	if index < 0 || index >= p.opts.InputSlots {
		return fmt.Errorf("%w: input %d", ErrInvalidIndex, index)
	}

	if flags&BufferFlagCodecConfig != 0 {
		p.freeInputs = append(p.freeInputs, index)
		return nil
	}
	if flags&BufferFlagEndOfStream != 0 {
		p.eosQueued = true
	}

	p.queued = append(p.queued, passthroughBuffer{
		data:  bytes.Clone(data),
		input: index,
		info: BufferInfo{
			Size:               len(data),
			PresentationTimeUs: presentationTimeUs,
			Flags:              flags,
		},
	})
	return nil
}

func (p *Passthrough) QueueSecureInputBuffer(index int, data []byte, info *media.CryptoInfo, presentationTimeUs int64, flags BufferFlags) error {
	if p.crypto == nil {
		return &CryptoError{Code: 1, Err: ErrNoCrypto}
	}
	plain, err := p.crypto.Decrypt(data, info)
	if err != nil {
		return &CryptoError{Code: 2, Err: err}
	}
	return p.QueueInputBuffer(index, plain, presentationTimeUs, flags)
}

func (p *Passthrough) DequeueOutputBuffer(info *BufferInfo) int {
	if !p.started {
		return InfoTryAgainLater
	}
	if p.formatChangePending {
		p.formatChangePending = false
		return InfoOutputFormatChanged
	}
	if len(p.queued) == 0 || len(p.freeOutputs) == 0 {
		return InfoTryAgainLater
	}
	if len(p.queued) <= p.opts.Latency && !p.eosQueued {
		return InfoTryAgainLater
	}

	buf := p.queued[0]
	p.queued = p.queued[1:]
	p.freeInputs = append(p.freeInputs, buf.input)

	index := p.freeOutputs[0]
	p.freeOutputs = p.freeOutputs[1:]
	p.outputs[index] = buf
	*info = buf.info
	return index
}

func (p *Passthrough) OutputBuffer(index int) []byte {
	return p.outputs[index].data
}

func (p *Passthrough) OutputFormat() *media.Format {
	if p.outputFormat != nil {
		return p.outputFormat
	}
	return p.format
}

// SetOutputFormat replaces the output format and announces the change on the next output dequeue.
// Sessions that transform their input use it once they learn the decoded format.
func (p *Passthrough) SetOutputFormat(format *media.Format) {
	p.outputFormat = format
	p.formatChangePending = true
}

func (p *Passthrough) ReleaseOutputBuffer(index int, render bool, releaseTimeNs int64) error {
	buf, ok := p.outputs[index]
	if !ok {
		return fmt.Errorf("%w: output %d", ErrInvalidIndex, index)
	}
	delete(p.outputs, index)
	p.freeOutputs = append(p.freeOutputs, index)

	if render && p.surface != nil {
		p.surface.RenderFrame(buf.data, buf.info.PresentationTimeUs, releaseTimeNs)
		p.Rendered++
	}
	return nil
}

func (p *Passthrough) Flush() error {
	if !p.started {
		return ErrNotStarted
	}
	p.reset()
	return nil
}

func (p *Passthrough) Stop() error {
	p.started = false
	return nil
}

func (p *Passthrough) Release() error {
	p.started = false
	p.configured = false
	p.queued = nil
	p.outputs = nil
	return nil
}
