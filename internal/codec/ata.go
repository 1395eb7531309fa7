package codec

// Associated Token Account instruction tags.
const (
	AssociatedTagCreate           uint8 = 0
	AssociatedTagCreateIdempotent uint8 = 1
)

const AssociatedCreateDataSize = 1

// EncodeAssociatedCreate serializes Create. The legacy empty form is
// accepted by DecodeAssociated but never produced.
func EncodeAssociatedCreate(dst []byte) []byte {
	dst = sized(dst, AssociatedCreateDataSize)
	dst[0] = AssociatedTagCreate
	return dst
}

// DecodeAssociated returns the instruction tag.
func DecodeAssociated(src []byte) (uint8, bool) {
	switch len(src) {
	case 0:
		return AssociatedTagCreate, true
	case 1:
		if src[0] > AssociatedTagCreateIdempotent {
			return 0, false
		}
		return src[0], true
	default:
		return 0, false
	}
}
