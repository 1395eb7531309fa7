package instruction

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Describe renders d for logs, the CLI and wire fixtures.
func Describe(d Descriptor) string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "op: %s\n", d.op)
	fmt.Fprintf(&sb, "program: %s\n", d.program)
	sb.WriteString("accounts:\n")
	for i, m := range d.metas {
		fmt.Fprintf(&sb, "  %2d %s %s\n", i, metaFlags(m.IsWritable, m.IsSigner), m.PublicKey)
	}
	fmt.Fprintf(&sb, "data: %s\n", hex.EncodeToString(d.payload))
	return sb.String()
}

func metaFlags(writable, signer bool) string {
	flags := []byte("--")
	if writable {
		flags[0] = 'w'
	}
	if signer {
		flags[1] = 's'
	}
	return string(flags)
}
