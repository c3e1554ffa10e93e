package trie

import "testing"

func TestMatchLongestPrefix(t *testing.T) {
	tr := New[int]()
	tr.Insert("nd", 1)
	tr.Insert("nondet.", 2)
	tr.Insert("llvm.mem", 3)
	tr.Insert("llvm.memset", 4)

	tests := []struct {
		name   string
		input  string
		want   int
		prefix string
		found  bool
	}{
		{"short_prefix", "nd_int", 1, "nd", true},
		{"dotted_prefix", "nondet.bool", 2, "nondet.", true},
		{"not_a_prefix", "nondet", 0, "", false},
		{"longest_wins", "llvm.memset.p0i8.i32", 4, "llvm.memset", true},
		{"shorter_still_matches", "llvm.memmove.p0i8", 3, "llvm.mem", true},
		{"empty_input", "", 0, "", false},
		{"no_match", "malloc", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, prefix, found := tr.Match(tt.input)
			if found != tt.found || got != tt.want || prefix != tt.prefix {
				t.Errorf("Match(%q) = (%d, %q, %v), want (%d, %q, %v)",
					tt.input, got, prefix, found, tt.want, tt.prefix, tt.found)
			}
			if tr.HasPrefix(tt.input) != tt.found {
				t.Errorf("HasPrefix(%q) = %v, want %v", tt.input, !tt.found, tt.found)
			}
		})
	}
}

func TestLookupIsExact(t *testing.T) {
	tr := New[string]()
	tr.Insert("calloc", "c")

	if _, ok := tr.Lookup("calloc2"); ok {
		t.Error("Lookup matched a longer key")
	}
	if _, ok := tr.Lookup("call"); ok {
		t.Error("Lookup matched an inner node")
	}
	if v, ok := tr.Lookup("calloc"); !ok || v != "c" {
		t.Errorf("Lookup(calloc) = (%q, %v)", v, ok)
	}
}

func TestInsertReplaces(t *testing.T) {
	tr := New[int]()
	tr.Insert("a", 1)
	tr.Insert("a", 2)
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}
	if v, _, _ := tr.Match("ab"); v != 2 {
		t.Errorf("Match(ab) = %d, want 2", v)
	}
}

func TestSameKeys(t *testing.T) {
	tests := []struct {
		name   string
		keys1  []string
		keys2  []string
		expect bool
	}{
		{"empty", nil, nil, true},
		{"different_order_same_result", []string{"ab", "xy"}, []string{"xy", "ab"}, true},
		{"prefix_overlap", []string{"abc", "ab"}, []string{"abc"}, false},
		{"different_keys", []string{"abc"}, []string{"abd"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t1, t2 := New[bool](), New[bool]()
			for _, k := range tt.keys1 {
				t1.Insert(k, true)
			}
			for _, k := range tt.keys2 {
				t2.Insert(k, true)
			}
			if got := t1.SameKeys(t2); got != tt.expect {
				t.Errorf("SameKeys() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestString(t *testing.T) {
	tr := New[int]()
	tr.Insert("ab", 0)
	tr.Insert("ac", 0)

	expected := "a(b(*)c(*))"
	if str := tr.String(); str != expected {
		t.Errorf("String() = %q, expected %q", str, expected)
	}
}
