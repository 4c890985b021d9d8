package booking

import "crypto/rand"

// codeAlphabet leaves out I, L, O and U so codes survive being read over the
// phone. 32 symbols over 8 positions gives ~1.1e12 combinations; collisions
// are additionally handled by a uniqueness retry in Book.
const codeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ0123456789"

const codeLength = 8

// NewConfirmationCode returns a short human-readable booking reference. It is
// distinct from confirmation tokens: codes identify a booking to a person,
// tokens authorize an action.
func NewConfirmationCode() (string, error) {
	var b [codeLength]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, v := range b {
		// 256 is an exact multiple of 32, so the modulo is unbiased.
		out[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(out), nil
}
