package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MinProductionBcryptCost is the lowest cost config validation accepts.
const MinProductionBcryptCost = 12

type PasswordHasher struct {
	cost      int
	dummyOnce sync.Once
	dummy     []byte
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = MinProductionBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *PasswordHasher) Compare(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CompareDummy burns the same bcrypt work as Compare for callers that have no
// stored hash, so unknown accounts are not distinguishable by latency.
func (h *PasswordHasher) CompareDummy(plain string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("globetrotter-dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}
