package codec

import (
	"errors"
	"fmt"
)

// InitFailure classifies why a decoder could not be initialized.
type InitFailure int

const (
	// NoSuitableDecoder means the selector found no decoder for the format.
	NoSuitableDecoder InitFailure = iota
	// DecoderQueryError means the selector itself failed.
	DecoderQueryError
	// InstantiationError means the decoder was found but failed to start.
	InstantiationError
)

func (f InitFailure) String() string {
	switch f {
	case NoSuitableDecoder:
		return "no suitable decoder"
	case DecoderQueryError:
		return "decoder query error"
	case InstantiationError:
		return "instantiation error"
	default:
		return "unknown"
	}
}

// DecoderInitError is fatal to the current playback attempt.
type DecoderInitError struct {
	MimeType       string
	DecoderName    string
	SecureRequired bool
	Reason         InitFailure
	Err            error
}

func (e *DecoderInitError) Error() string {
	msg := fmt.Sprintf("decoder init failed: %s (mime %s, secure %t", e.Reason, e.MimeType, e.SecureRequired)
	if e.DecoderName != "" {
		msg += ", decoder " + e.DecoderName
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecoderInitError) Unwrap() error {
	return e.Err
}

// CryptoError reports a decryption failure.
type CryptoError struct {
	Code int
	Err  error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto error %d: %v", e.Code, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

var (
	ErrUnknownDecoder  = errors.New("unknown decoder")
	ErrInvalidMimeType = errors.New("invalid mime type")
	ErrInvalidIndex    = errors.New("invalid buffer index")
	ErrNotStarted      = errors.New("session not started")
	ErrNoCrypto        = errors.New("secure input queued without crypto")
)
