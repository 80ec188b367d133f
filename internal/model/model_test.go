package model

import "testing"

func TestChatID(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"ordered", "alice", "bob", "alice_bob"},
		{"reversed", "bob", "alice", "alice_bob"},
		{"uid-like", "Zq9", "aB1", "Zq9_aB1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChatID(tt.a, tt.b); got != tt.want {
				t.Fatalf("got=%q want=%q", got, tt.want)
			}
			if ChatID(tt.a, tt.b) != ChatID(tt.b, tt.a) {
				t.Fatalf("ChatID is order dependent for %q,%q", tt.a, tt.b)
			}
		})
	}
}

func TestSortedPairMatchesChatID(t *testing.T) {
	p := SortedPair("userY", "userX")
	if p[0] != "userX" || p[1] != "userY" {
		t.Fatalf("got=%v", p)
	}
	if ChatID("userY", "userX") != p[0]+"_"+p[1] {
		t.Fatalf("pair and id disagree")
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"Books", CategoryBooks, true},
		{" small appliances ", CategorySmallAppliances, true},
		{"TOYS", CategoryToys, true},
		{"Furniture", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("ParseCategory(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSwapStatusTerminal(t *testing.T) {
	if SwapPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	if !SwapApproved.Terminal() || !SwapRejected.Terminal() {
		t.Fatal("approved and rejected are terminal")
	}
}

func TestChatChannelPeer(t *testing.T) {
	c := ChatChannel{Participants: []string{"a", "b"}}
	if c.Peer("a") != "b" || c.Peer("b") != "a" {
		t.Fatalf("unexpected peers")
	}
	if !c.HasParticipant("a") || c.HasParticipant("z") {
		t.Fatalf("unexpected membership")
	}
}
