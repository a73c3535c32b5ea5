package security

import (
	"crypto/aes"
	"errors"
	"sync"

	"github.com/go-think/openssl"
	"github.com/klauspost/compress/zstd"
)

var ErrBadCiphertext = errors.New("ciphertext is malformed")

var (
	zstdOnce sync.Once
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	zstdErr  error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		encoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		decoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return encoder, decoder, zstdErr
}

// Zip compresses a wire frame.
func Zip(data []byte) ([]byte, error) {
	enc, _, err := codecs()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// UnZip reverses Zip.
func UnZip(data []byte) ([]byte, error) {
	_, dec, err := codecs()
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll(data, nil)
}

// AesCBCEncrypt encrypts with PKCS7 padding; key doubles as IV, matching the
// handshake which only hands out one 16 byte key.
func AesCBCEncrypt(src, key []byte) ([]byte, error) {
	return openssl.AesCBCEncrypt(src, key, key, openssl.PKCS7_PADDING)
}

// AesCBCDecrypt rejects input that is not whole blocks and turns a bad
// padding panic into ErrBadCiphertext.
func AesCBCDecrypt(src, key []byte) (out []byte, err error) {
	if len(src) == 0 || len(src)%aes.BlockSize != 0 {
		return nil, ErrBadCiphertext
	}
	defer func() {
		if recover() != nil {
			out, err = nil, ErrBadCiphertext
		}
	}()
	return openssl.AesCBCDecrypt(src, key, key, openssl.PKCS7_PADDING)
}

// Seal compresses data and, when key is non-empty, encrypts it first.
func Seal(data []byte, key string) ([]byte, error) {
	if key != "" {
		enc, err := AesCBCEncrypt(data, []byte(key))
		if err != nil {
			return nil, err
		}
		data = enc
	}
	return Zip(data)
}

// Open reverses Seal.
func Open(frame []byte, key string) ([]byte, error) {
	data, err := UnZip(frame)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return data, nil
	}
	return AesCBCDecrypt(data, []byte(key))
}
