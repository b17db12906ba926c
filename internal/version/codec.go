package version

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/locaidev/locai/internal/errs"
)

// Codec names recorded on version records.
const (
	CodecIdentity = "identity"
	CodecGzip     = "gzip"
)

// Codec encodes and decodes version payloads. The codec name is recorded on
// the version so retrieval stays transparent across config changes.
type Codec interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// CodecByName resolves a recorded codec name. Empty defaults to identity.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecIdentity:
		return identityCodec{}, nil
	case CodecGzip:
		return gzipCodec{}, nil
	default:
		return nil, errs.E(errs.KindValidation, "unknown codec %q", name)
	}
}

type identityCodec struct{}

func (identityCodec) Name() string                       { return CodecIdentity }
func (identityCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (identityCodec) Decode(data []byte) ([]byte, error) { return data, nil }

type gzipCodec struct{}

func (gzipCodec) Name() string { return CodecGzip }

func (gzipCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "compressing payload")
	}
	if err := w.Close(); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "compressing payload")
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.KindIntegrityError, err, "decompressing payload")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.KindIntegrityError, err, "decompressing payload")
	}
	return out, nil
}
