package media

import "errors"

// SampleFlags annotate a sample read from a source.
type SampleFlags uint8

const (
	FlagSync SampleFlags = 1 << iota
	FlagEncrypted
	FlagDecodeOnly
)

// BufferReplacement controls what a SampleHolder does when a sample does not fit its buffer.
type BufferReplacement int

const (
	// BufferReplacementDisabled fails the write with ErrBufferTooSmall.
	BufferReplacementDisabled BufferReplacement = iota
	// BufferReplacementNormal reallocates to the exact size needed.
	BufferReplacementNormal
	// BufferReplacementPinned reallocates in whole pages so the buffer is reused across size jitter.
	BufferReplacementPinned
)

const pinnedPageSize = 4096

// ErrBufferTooSmall is returned when a sample does not fit and replacement is disabled.
var ErrBufferTooSmall = errors.New("sample buffer too small")

// CryptoInfo carries the per-sample decryption parameters of an encrypted sample.
type CryptoInfo struct {
	KeyID                   []byte
	IV                      []byte
	NumBytesOfClearData     []int
	NumBytesOfEncryptedData []int
}

// SampleHolder receives one sample from a source. The data buffer is owned by the renderer and reused
// between reads.
type SampleHolder struct {
	Data       []byte
	Size       int
	Flags      SampleFlags
	TimeUs     int64
	CryptoInfo CryptoInfo

	replacement BufferReplacement
}

// NewSampleHolder returns a holder with the given replacement policy.
func NewSampleHolder(replacement BufferReplacement) *SampleHolder {
	return &SampleHolder{replacement: replacement}
}

// SetBuffer installs a caller-owned buffer, discarding any buffered data.
func (s *SampleHolder) SetBuffer(buf []byte) {
	s.Data = buf[:0]
}

// EnsureSpaceForWrite makes room for n more bytes according to the replacement policy.
func (s *SampleHolder) EnsureSpaceForWrite(n int) error {
	required := len(s.Data) + n
	if required <= cap(s.Data) {
		return nil
	}

	var capacity int
	switch s.replacement {
	case BufferReplacementNormal:
		capacity = required
	case BufferReplacementPinned:
		capacity = (required + pinnedPageSize - 1) / pinnedPageSize * pinnedPageSize
	default:
		return ErrBufferTooSmall
	}

	grown := make([]byte, len(s.Data), capacity)
	copy(grown, s.Data)
	s.Data = grown
	return nil
}

// Write appends p to the sample data, growing the buffer when the policy allows.
func (s *SampleHolder) Write(p []byte) (int, error) {
	if err := s.EnsureSpaceForWrite(len(p)); err != nil {
		return 0, err
	}
	s.Data = append(s.Data, p...)
	s.Size += len(p)
	return len(p), nil
}

// ClearData empties the buffer and resets the metadata, keeping the allocation.
func (s *SampleHolder) ClearData() {
	s.Data = s.Data[:0]
	s.Size = 0
	s.Flags = 0
	s.TimeUs = 0
	s.CryptoInfo = CryptoInfo{}
}

func (s *SampleHolder) IsSyncFrame() bool  { return s.Flags&FlagSync != 0 }
func (s *SampleHolder) IsEncrypted() bool  { return s.Flags&FlagEncrypted != 0 }
func (s *SampleHolder) IsDecodeOnly() bool { return s.Flags&FlagDecodeOnly != 0 }

// DrmInitData holds scheme specific initialization data keyed by scheme identifier.
type DrmInitData struct {
	SchemeData map[string][]byte
}

// FormatHolder receives a format (and any DRM initialization data) from a source.
type FormatHolder struct {
	Format      *Format
	DrmInitData *DrmInitData
}
