// Package ir turns game documents into canonical JSON and content digests.
//
// Documents are encoded with encoding/json, decoded into the constrained
// Value tree and written out in RFC 8785 form: sorted keys, no insignificant
// whitespace, NFC strings, integers only. Two documents with the same
// digest describe the same game.
//
// Key design constraints:
//   - NO float types anywhere; every quantity in a game is an int64
//   - null members and empty containers are omitted, so a nil slice and an
//     empty one hash alike
//   - digests are domain separated and versioned
package ir
