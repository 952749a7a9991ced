package sphere

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Wire format: a varint encoding version, a varint cell count, then the
// ids as little-endian fixed64 values. Ids are carried verbatim, so raw
// unions, including invalid ids such as None, survive a round trip
// unchanged.

// codecVersion is the current encoding version.
const codecVersion = 1

// Error types reported by DecodeCellUnion.
const (
	ErrTypeCodecTruncated = "cell_codec_truncated"
	ErrTypeCodecVersion   = "cell_codec_bad_version"
	ErrTypeCodecCount     = "cell_codec_bad_count"
	ErrTypeCodecTrailing  = "cell_codec_trailing_data"
)

// Encode returns the wire form of the union.
func (u CellUnion) Encode() []byte {
	return u.AppendEncoded(make([]byte, 0, 2+8*len(u)))
}

// AppendEncoded appends the wire form of the union to dst and returns the
// extended slice.
func (u CellUnion) AppendEncoded(dst []byte) []byte {
	dst = protowire.AppendVarint(dst, codecVersion)
	dst = protowire.AppendVarint(dst, uint64(len(u)))
	for _, id := range u {
		dst = protowire.AppendFixed64(dst, uint64(id))
	}
	return dst
}

// DecodeCellUnion parses data produced by Encode. The whole input must be
// consumed; on failure no partial union is returned.
func DecodeCellUnion(data []byte) (CellUnion, error) {
	version, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, errors.New("decoding cell union version").
			WithType(ErrTypeCodecTruncated)
	}
	data = data[n:]
	if version != codecVersion {
		return nil, errors.New("unsupported cell union encoding version").
			WithType(ErrTypeCodecVersion).
			WithTag("version", version)
	}

	count, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, errors.New("decoding cell union count").
			WithType(ErrTypeCodecTruncated)
	}
	data = data[n:]
	if count > uint64(len(data))/8 {
		return nil, errors.New("cell union count exceeds payload").
			WithType(ErrTypeCodecCount).
			WithTag("count", count).
			WithTag("remaining_bytes", len(data))
	}

	u := make(CellUnion, 0, count)
	for i := uint64(0); i < count; i++ {
		id, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return nil, errors.New("decoding cell id").
				WithType(ErrTypeCodecTruncated).
				WithTag("index", i)
		}
		data = data[n:]
		u = append(u, CellID(id))
	}

	if len(data) != 0 {
		return nil, errors.New("trailing bytes after cell union").
			WithType(ErrTypeCodecTrailing).
			WithTag("trailing_bytes", len(data))
	}
	return u, nil
}
