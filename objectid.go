package ldapkit

import (
	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
)

const guidBytesLength = 16

// guidFromADBytes converts Active Directory's mixed-endian objectGUID bytes
// to a standard UUID. The first three groups are stored little-endian, the
// final eight bytes big-endian.
func guidFromADBytes(b []byte) (uuid.UUID, error) {
	if len(b) != guidBytesLength {
		return uuid.Nil, errKind("decode_guid", KindDecodingError,
			"invalid objectGUID length: expected %d bytes, got %d", guidBytesLength, len(b))
	}

	std := make([]byte, guidBytesLength)
	std[0], std[1], std[2], std[3] = b[3], b[2], b[1], b[0]
	std[4], std[5] = b[5], b[4]
	std[6], std[7] = b[7], b[6]
	copy(std[8:], b[8:])

	id, err := uuid.FromBytes(std)
	if err != nil {
		return uuid.Nil, errKind("decode_guid", KindDecodingError, "invalid objectGUID: %v", err)
	}

	return id, nil
}

// guidToADBytes is the inverse of guidFromADBytes.
func guidToADBytes(id uuid.UUID) []byte {
	std := id[:]
	ad := make([]byte, guidBytesLength)
	ad[0], ad[1], ad[2], ad[3] = std[3], std[2], std[1], std[0]
	ad[4], ad[5] = std[5], std[4]
	ad[6], ad[7] = std[7], std[6]
	copy(ad[8:], std[8:])
	return ad
}

// ObjectGUID decodes the entry's objectGUID attribute, stored by Active
// Directory as 16 mixed-endian bytes, into its hyphenated string form.
func (e *Entry) ObjectGUID() (string, error) {
	values := e.attrs.Values("objectGUID")
	if len(values) == 0 {
		return "", errKind("object_guid", KindAttributeNotFound, "objectGUID attribute not found in entry %s", e.dn)
	}

	id, err := guidFromADBytes([]byte(values[0]))
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// ObjectSID decodes the entry's objectSid attribute, stored as a binary
// security identifier, into its S-1-5-21-... string form.
func (e *Entry) ObjectSID() (string, error) {
	values := e.attrs.Values("objectSid")
	if len(values) == 0 {
		return "", errKind("object_sid", KindAttributeNotFound, "objectSid attribute not found in entry %s", e.dn)
	}

	raw := []byte(values[0])
	if len(raw) < 8 {
		return "", errKind("object_sid", KindDecodingError,
			"invalid objectSid length: %d bytes", len(raw))
	}

	return objectsid.Decode(raw).String(), nil
}
