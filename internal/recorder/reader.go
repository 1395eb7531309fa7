package recorder

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"

	"ammcpi/pkg/exception"
)

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	// MaxDataSize bounds the instruction data of one record. Zero means no
	// bound beyond the format's own.
	MaxDataSize int
}

// Reader decodes journal records sequentially.
type Reader struct {
	r         *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	body      []byte
}

// NewReader wraps an io.Reader with journal decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, recordHeaderSize),
	}
}

// Next returns the next record, or io.EOF at a clean end of the journal.
// A record cut short returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (Record, error) {
	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return Record{}, io.EOF
		}
		return Record{}, err
	}

	rec, bodyLen, err := decodeHeader(r.headerBuf)
	if err != nil {
		return Record{}, err
	}
	if r.opts.MaxDataSize > 0 && len(rec.Data) > r.opts.MaxDataSize {
		return Record{}, exception.ErrJournalRecordTooLarge
	}

	if cap(r.body) < bodyLen+recordChecksumSize {
		r.body = make([]byte, bodyLen+recordChecksumSize)
	}
	r.body = r.body[:bodyLen+recordChecksumSize]
	if _, err := io.ReadFull(r.r, r.body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Record{}, err
	}

	body := r.body[:bodyLen]
	if !r.opts.DisableChecksum {
		expected := binary.LittleEndian.Uint32(r.body[bodyLen:])
		sum := crc32.Update(crc32.Checksum(r.headerBuf, crcTable), crcTable, body)
		if sum != expected {
			return Record{}, exception.ErrJournalChecksumMismatch
		}
	}

	decodeBody(&rec, body)
	return rec, nil
}

// ReadAll decodes every record until the end of r.
func ReadAll(r io.Reader, opts ReaderOptions) ([]Record, error) {
	reader := NewReader(r, opts)
	var out []Record
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
