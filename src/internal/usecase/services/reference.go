package services

import (
	"crypto/rand"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/api-sage/ledger-core/src/internal/domain"
)

const referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var referenceCounter uint32

// ReferenceGenerator builds 20 character references: yyMMddHHmmss, a three
// character base36 sequence and five random characters.
type ReferenceGenerator struct {
	clock domain.Clock
}

func NewReferenceGenerator(clock domain.Clock) *ReferenceGenerator {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ReferenceGenerator{clock: clock}
}

func (g *ReferenceGenerator) Next() string {
	now := g.clock.Now().UTC()
	counter := atomic.AddUint32(&referenceCounter, 1) % (36 * 36 * 36)

	sequence := strings.ToUpper(strconv.FormatUint(uint64(counter), 36))
	sequence = strings.Repeat("0", 3-len(sequence)) + sequence

	return now.Format("060102150405") + sequence + randomSuffix(5)
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}

	out := make([]byte, n)
	for i, b := range buf {
		out[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return string(out)
}
