package webterm

import (
	"net"
	"testing"
)

func TestClassifyIP(t *testing.T) {
	cases := []struct {
		ip   string
		want BindingClass
	}{
		{"127.0.0.1", ClassLoopback},
		{"10.0.0.5", ClassPrivate},
		{"172.20.1.1", ClassPrivate},
		{"192.168.1.1", ClassPrivate},
		{"169.254.1.1", ClassPrivate},
		{"100.64.0.1", ClassPrivate},
		{"8.8.8.8", ClassPublic},
		{"203.0.113.5", ClassPublic},
	}
	for _, c := range cases {
		got := classifyIP(net.ParseIP(c.ip))
		if got != c.want {
			t.Errorf("classifyIP(%s) = %s, want %s", c.ip, got, c.want)
		}
	}
}

func TestEnumerateBindingsIncludesLoopback(t *testing.T) {
	bindings, err := EnumerateBindings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, b := range bindings {
		if b.Class == ClassLoopback {
			found = true
		}
	}
	if !found {
		t.Error("expected at least one loopback binding on any host")
	}
}

func TestResolveBindingStatusesMarksUnavailable(t *testing.T) {
	statuses, err := ResolveBindingStatuses([]string{"127.0.0.1", "203.0.113.250"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}

	byAddr := make(map[string]BindingStatus, len(statuses))
	for _, s := range statuses {
		byAddr[s.Address] = s
	}

	if byAddr["127.0.0.1"].Unavailable {
		t.Error("expected loopback to be live")
	}
	if !byAddr["203.0.113.250"].Unavailable {
		t.Error("expected an address with no matching interface to be reported unavailable")
	}
}
