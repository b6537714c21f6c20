package ids

import "testing"

func TestNewIsSortableAndValid(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		if !Valid(next) {
			t.Fatalf("generated id %q is not valid", next)
		}
		prev = next
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "not-a-ulid-at-all-000000000", "01HZX!"} {
		if Valid(in) {
			t.Fatalf("expected %q to be invalid", in)
		}
	}
}
