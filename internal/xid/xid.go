package xid

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"time"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// New returns a prefixed, roughly time-ordered unique id such as
// "prd-l2x9qf3k-7h2k91mc". Collisions would need the same nanosecond and the
// same 8 random characters.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%s", prefix, strconv.FormatInt(time.Now().UnixNano(), 36))
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, strconv.FormatInt(time.Now().UnixNano(), 36), string(buf))
}
