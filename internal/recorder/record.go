// Package recorder keeps an append-only journal of runtime invocations.
//
// Each record is a fixed header, the supplied account list, the instruction
// data and a CRC32-C checksum over all three.
package recorder

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"time"

	"ammcpi/internal/instruction"
	"ammcpi/internal/schema"
	"ammcpi/pkg/exception"

	"github.com/gagliardetto/solana-go"
)

const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 64
	recordAccountSize         = 33
	recordChecksumSize        = 4

	maxDataLen     = uint64(^uint32(0))
	maxAccountsLen = int(^uint16(0))
)

const (
	flagFailed uint8 = 1 << iota
	flagSigned
)

const (
	accountSigner uint8 = 1 << iota
	accountWritable
)

var (
	recordMagic = [4]byte{'I', 'X', 'J', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

// Record is one journaled invocation.
type Record struct {
	Seq  uint64
	Time time.Time
	// Op is zero when the instruction was not built by this layer.
	Op     instruction.Op
	Failed bool
	// Signed reports whether signer seeds were supplied.
	Signed   bool
	Program  solana.PublicKey
	Accounts []schema.AccountRef
	Data     []byte
}

func (r Record) size() int {
	return recordHeaderSize + len(r.Accounts)*recordAccountSize + len(r.Data) + recordChecksumSize
}

func (r Record) validate() error {
	if len(r.Accounts) > maxAccountsLen {
		return exception.ErrJournalRecordTooLarge
	}
	if uint64(len(r.Data)) > maxDataLen {
		return exception.ErrJournalRecordTooLarge
	}
	return nil
}

// encodeRecord appends the encoded record to dst.
func encodeRecord(dst []byte, r Record) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, recordHeaderSize)...)
	h := dst[start:]

	var flags uint8
	if r.Failed {
		flags |= flagFailed
	}
	if r.Signed {
		flags |= flagSigned
	}

	copy(h[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(h[4:6], recordVersion)
	binary.LittleEndian.PutUint16(h[6:8], uint16(recordHeaderSize))
	h[8] = uint8(r.Op)
	h[9] = flags
	binary.LittleEndian.PutUint16(h[10:12], uint16(len(r.Accounts)))
	binary.LittleEndian.PutUint32(h[12:16], uint32(len(r.Data)))
	binary.LittleEndian.PutUint64(h[16:24], r.Seq)
	binary.LittleEndian.PutUint64(h[24:32], uint64(r.Time.UnixNano()))
	copy(h[32:64], r.Program[:])

	for _, a := range r.Accounts {
		var f uint8
		if a.IsSigner {
			f |= accountSigner
		}
		if a.IsWritable {
			f |= accountWritable
		}
		dst = append(dst, a.Key[:]...)
		dst = append(dst, f)
	}
	dst = append(dst, r.Data...)

	return binary.LittleEndian.AppendUint32(dst, crc32.Checksum(dst[start:], crcTable))
}

// decodeHeader returns the header fields and the length of the body that
// follows it.
func decodeHeader(src []byte) (Record, int, error) {
	if len(src) < recordHeaderSize {
		return Record{}, 0, exception.ErrJournalInvalidHeader
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return Record{}, 0, exception.ErrJournalInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return Record{}, 0, exception.ErrJournalUnsupportedVersion
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != recordHeaderSize {
		return Record{}, 0, exception.ErrJournalInvalidHeader
	}

	flags := src[9]
	accounts := int(binary.LittleEndian.Uint16(src[10:12]))
	dataLen := int(binary.LittleEndian.Uint32(src[12:16]))
	r := Record{
		Op:       instruction.Op(src[8]),
		Failed:   flags&flagFailed != 0,
		Signed:   flags&flagSigned != 0,
		Seq:      binary.LittleEndian.Uint64(src[16:24]),
		Time:     time.Unix(0, int64(binary.LittleEndian.Uint64(src[24:32]))).UTC(),
		Program:  solana.PublicKeyFromBytes(src[32:64]),
		Accounts: make([]schema.AccountRef, accounts),
		Data:     make([]byte, dataLen),
	}
	return r, accounts*recordAccountSize + dataLen, nil
}

// decodeBody fills the accounts and data of r from body.
func decodeBody(r *Record, body []byte) {
	for i := range r.Accounts {
		entry := body[i*recordAccountSize : (i+1)*recordAccountSize]
		r.Accounts[i] = schema.NewAccountRef(
			solana.PublicKeyFromBytes(entry[:32]),
			entry[32]&accountSigner != 0,
			entry[32]&accountWritable != 0,
		)
	}
	copy(r.Data, body[len(r.Accounts)*recordAccountSize:])
}
