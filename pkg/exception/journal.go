package exception

import "github.com/yanun0323/errors"

var (
	ErrJournalInvalidMagic       = errors.New("journal: invalid magic")
	ErrJournalUnsupportedVersion = errors.New("journal: unsupported record version")
	ErrJournalInvalidHeader      = errors.New("journal: invalid header size")
	ErrJournalChecksumMismatch   = errors.New("journal: checksum mismatch")
	ErrJournalRecordTooLarge     = errors.New("journal: record too large")
	ErrJournalClosed             = errors.New("journal: writer closed")
)
