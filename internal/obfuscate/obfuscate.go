// Package obfuscate implements the reversible text scrambling used for
// "encrypted" source files:
//
//	XOR(key) -> Ascii85 -> XOR(^key) -> base64
//
// It hides source from casual inspection. It is not encryption in any
// cryptographic sense; anyone with the file and a guess at the key can undo it.
//
// The Ascii85 step is the standard encoding: a final group of n bytes becomes
// n+1 characters. Files written by encoders that always emit a full 5-character
// final group decode here with trailing padding bytes.
package obfuscate

import (
	"bytes"
	"encoding/ascii85"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrCorrupt is returned when the input is not a valid scrambled text.
var ErrCorrupt = errors.New("invalid key or corrupted file")

// Encrypt scrambles plain with key. An empty key skips both XOR passes.
func Encrypt(plain []byte, key string) []byte {
	if len(plain) == 0 {
		return []byte{}
	}
	step := append([]byte(nil), plain...)
	xorKey(step, key, false)

	a85 := make([]byte, ascii85.MaxEncodedLen(len(step)))
	a85 = a85[:ascii85.Encode(a85, step)]
	xorKey(a85, key, true)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(a85)))
	base64.StdEncoding.Encode(out, a85)
	return out
}

// Decrypt reverses Encrypt. Surrounding whitespace in text is ignored.
func Decrypt(text []byte, key string) ([]byte, error) {
	text = bytes.TrimSpace(text)
	if len(text) == 0 {
		return []byte{}, nil
	}
	a85 := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(a85, text)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrCorrupt, err)
	}
	a85 = a85[:n]
	xorKey(a85, key, true)

	plain := make([]byte, 4*len(a85))
	n, _, err = ascii85.Decode(plain, a85, true)
	if err != nil {
		return nil, fmt.Errorf("%w: ascii85: %v", ErrCorrupt, err)
	}
	plain = plain[:n]
	xorKey(plain, key, false)
	return plain, nil
}

// EncryptedPath names the file Encrypt's output is written to:
// "dir/lib.c" becomes "dir/lib_enc.c".
func EncryptedPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + "_enc.c"
	}
	return strings.TrimSuffix(path, ext) + "_enc" + ext
}

func xorKey(data []byte, key string, inverse bool) {
	if key == "" {
		return
	}
	for i := range data {
		k := key[i%len(key)]
		if inverse {
			k = ^k
		}
		data[i] ^= k
	}
}
