package drm

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/anisan-cli/reelplay/media"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	keyID = []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	key   = []byte("0123456789abcdef")
	iv    = []byte{9, 9, 9, 9, 9, 9, 9, 9}
)

func encrypt(plain []byte) []byte {
	block, _ := aes.NewCipher(key)
	fullIV := make([]byte, aes.BlockSize)
	copy(fullIV, iv)
	out := make([]byte, len(plain))
	cipher.NewCTR(block, fullIV).XORKeyStream(out, plain)
	return out
}

func initData() *media.DrmInitData {
	return &media.DrmInitData{SchemeData: map[string][]byte{SchemeCENC: keyID}}
}

func TestStaticSessionManager(t *testing.T) {
	keys := map[string][]byte{hex.EncodeToString(keyID): key}

	Convey("Given a static manager", t, func() {
		m := NewStatic(keys, StaticOptions{})

		Convey("When opened with cenc init data", func() {
			m.Open(initData())

			Convey("Then keys should be available immediately", func() {
				So(m.State(), ShouldEqual, StateOpenedWithKeys)
				So(m.Crypto(), ShouldNotBeNil)
			})

			Convey("Then a fully encrypted sample should decrypt", func() {
				plain := []byte("hello protected world")
				out, err := m.Crypto().Decrypt(encrypt(plain), &media.CryptoInfo{KeyID: keyID, IV: iv})
				So(err, ShouldBeNil)
				So(out, ShouldResemble, plain)
			})

			Convey("Then subsamples should leave clear bytes untouched", func() {
				header := []byte("HDR")
				body := []byte("secret payload")
				sample := append(append([]byte{}, header...), encrypt(body)...)
				out, err := m.Crypto().Decrypt(sample, &media.CryptoInfo{
					KeyID:                   keyID,
					IV:                      iv,
					NumBytesOfClearData:     []int{len(header)},
					NumBytesOfEncryptedData: []int{len(body)},
				})
				So(err, ShouldBeNil)
				So(string(out), ShouldEqual, "HDRsecret payload")
			})

			Convey("Then an unknown key should fail", func() {
				_, err := m.Crypto().Decrypt([]byte{1}, &media.CryptoInfo{KeyID: []byte{0}})
				So(errors.Is(err, ErrUnknownKey), ShouldBeTrue)
			})

			Convey("Then closing should close the session", func() {
				m.Close()
				So(m.State(), ShouldEqual, StateClosed)
				So(m.Crypto(), ShouldBeNil)
			})
		})

		Convey("When opened without scheme data", func() {
			m.Open(&media.DrmInitData{})

			Convey("Then the session should fail", func() {
				So(m.State(), ShouldEqual, StateError)
				So(m.Error(), ShouldEqual, ErrNoSchemeData)
			})
		})
	})

	Convey("Given a deferred manager", t, func() {
		m := NewStatic(keys, StaticOptions{Deferred: true})
		m.Open(initData())

		Convey("Then keys should arrive on provisioning", func() {
			So(m.State(), ShouldEqual, StateOpened)
			m.Provision()
			So(m.State(), ShouldEqual, StateOpenedWithKeys)
		})
	})
}
