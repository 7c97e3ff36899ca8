package crypto

import "bytes"

// Account identifies a validator: an opaque 32-byte value, total-ordered by
// byte value. It is the unit of participant identity and blame attribution
// throughout the ceremony runtime.
type Account [32]byte

// Compare returns -1, 0, or 1 the way bytes.Compare does.
func (a Account) Compare(b Account) int {
	return bytes.Compare(a[:], b[:])
}

func (a Account) Less(b Account) bool { return a.Compare(b) < 0 }

// SortAccounts returns a new, ascending-sorted copy of accounts. Participant
// indices for VSS and Lagrange interpolation are assigned from this order;
// it is the single source of truth for party indexing (spec §4.4).
func SortAccounts(accounts []Account) []Account {
	out := make([]Account, len(accounts))
	copy(out, accounts)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Less(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// IndexOf returns the position of account in a sorted participant list, or
// -1 if absent. The 0-based position i corresponds to the 1-based party
// index i+1 used as the VSS evaluation point and in Lagrange coefficients.
func IndexOf(sorted []Account, account Account) int {
	for i, a := range sorted {
		if a == account {
			return i
		}
	}
	return -1
}

// Contains reports whether account is present in the set.
func Contains(set []Account, account Account) bool {
	return IndexOf(set, account) >= 0
}
