package crypto

import "testing"

func TestSortAccountsIsStableAndOrdered(t *testing.T) {
	a := Account{0x03}
	b := Account{0x01}
	c := Account{0x02}
	sorted := SortAccounts([]Account{a, b, c})
	want := []Account{b, c, a}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("sorted[%d] = %x, want %x", i, sorted[i], want[i])
		}
	}
}

func TestIndexOfAndContains(t *testing.T) {
	a := Account{0x01}
	b := Account{0x02}
	c := Account{0x03}
	sorted := SortAccounts([]Account{a, b, c})

	if IndexOf(sorted, b) != 1 {
		t.Fatalf("IndexOf(b) = %d, want 1", IndexOf(sorted, b))
	}
	absent := Account{0xFF}
	if IndexOf(sorted, absent) != -1 {
		t.Fatalf("IndexOf(absent) = %d, want -1", IndexOf(sorted, absent))
	}
	if !Contains(sorted, a) {
		t.Fatalf("Contains(a) = false, want true")
	}
	if Contains(sorted, absent) {
		t.Fatalf("Contains(absent) = true, want false")
	}
}
