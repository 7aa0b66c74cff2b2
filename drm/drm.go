// Package drm provides the session managers that supply decryption to decoders of protected tracks.
package drm

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/anisan-cli/reelplay/codec"
	"github.com/anisan-cli/reelplay/media"
)

// State of a DRM session.
type State int

const (
	StateError State = iota
	StateClosed
	StateOpening
	StateOpened
	StateOpenedWithKeys
)

func (s State) String() string {
	switch s {
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpened:
		return "opened"
	case StateOpenedWithKeys:
		return "opened with keys"
	default:
		return "unknown"
	}
}

// SessionManager opens and closes the DRM session of one renderer.
type SessionManager interface {
	Open(initData *media.DrmInitData)
	Close()
	State() State
	// Error returns the cause of StateError.
	Error() error
	// Crypto is valid once the session is opened.
	Crypto() codec.Crypto
	RequiresSecureDecoder(mimeType string) bool
}

var (
	ErrNoSchemeData = errors.New("no scheme data for a supported scheme")
	ErrUnknownKey   = errors.New("unknown key id")
)

// SchemeCENC identifies common encryption scheme data.
const SchemeCENC = "cenc"

// StaticOptions configures a StaticSessionManager.
type StaticOptions struct {
	// Deferred sessions open without keys until Provision is called.
	Deferred bool
	// SecureDecoder requires secure decoders for every protected track.
	SecureDecoder bool
}

// StaticSessionManager serves keys known up front, keyed by hex encoded key id.
type StaticSessionManager struct {
	keys map[string][]byte
	opts StaticOptions

	mu        sync.Mutex
	state     State
	err       error
	provided  bool
	openCount int
	crypto    *cencCrypto
}

// NewStatic returns a closed manager serving keys.
func NewStatic(keys map[string][]byte, opts StaticOptions) *StaticSessionManager {
	return &StaticSessionManager{
		keys:     keys,
		opts:     opts,
		state:    StateClosed,
		provided: !opts.Deferred,
	}
}

func (m *StaticSessionManager) Open(initData *media.DrmInitData) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openCount++
	if m.openCount > 1 {
		return
	}

	if initData == nil || initData.SchemeData[SchemeCENC] == nil {
		m.state = StateError
		m.err = ErrNoSchemeData
		return
	}

	m.crypto = &cencCrypto{keys: m.keys, secure: m.opts.SecureDecoder}
	m.state = StateOpened
	if m.provided {
		m.state = StateOpenedWithKeys
	}
}

// Provision delivers the keys of a deferred session.
func (m *StaticSessionManager) Provision() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.provided = true
	if m.state == StateOpened {
		m.state = StateOpenedWithKeys
	}
}

func (m *StaticSessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openCount == 0 {
		return
	}
	m.openCount--
	if m.openCount > 0 {
		return
	}
	m.state = StateClosed
	m.err = nil
	m.crypto = nil
}

func (m *StaticSessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *StaticSessionManager) Error() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *StaticSessionManager) Crypto() codec.Crypto {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.crypto == nil {
		return nil
	}
	return m.crypto
}

func (m *StaticSessionManager) RequiresSecureDecoder(string) bool {
	return m.opts.SecureDecoder
}

// cencCrypto decrypts AES-128 CTR protected samples.
type cencCrypto struct {
	keys   map[string][]byte
	secure bool
}

func (c *cencCrypto) RequiresSecureDecoder(string) bool {
	return c.secure
}

func (c *cencCrypto) Decrypt(data []byte, info *media.CryptoInfo) ([]byte, error) {
	key, ok := c.keys[hex.EncodeToString(info.KeyID)]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrUnknownKey, info.KeyID)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)
	copy(iv, info.IV)
	stream := cipher.NewCTR(block, iv)

	out := make([]byte, len(data))
	copy(out, data)

	if len(info.NumBytesOfClearData) == 0 {
		stream.XORKeyStream(out, out)
		return out, nil
	}

	offset := 0
	for i, clearBytes := range info.NumBytesOfClearData {
		offset += clearBytes
		var encrypted int
		if i < len(info.NumBytesOfEncryptedData) {
			encrypted = info.NumBytesOfEncryptedData[i]
		}
		if offset+encrypted > len(out) {
			return nil, fmt.Errorf("subsample %d exceeds sample size %d", i, len(out))
		}
		stream.XORKeyStream(out[offset:offset+encrypted], out[offset:offset+encrypted])
		offset += encrypted
	}

	return out, nil
}
