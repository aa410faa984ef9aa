package config

import (
	"strings"
	"testing"
)

func TestParseChatIDs(t *testing.T) {
	ids, err := parseChatIDs([]string{"123456789", "-100987654321, 42"})
	if err != nil {
		t.Fatalf("parseChatIDs failed: %v", err)
	}

	want := []int64{123456789, -100987654321, 42}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestParseChatIDs_SkipsEmptyParts(t *testing.T) {
	ids, err := parseChatIDs([]string{"123, , 456,"})
	if err != nil {
		t.Fatalf("parseChatIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 123 || ids[1] != 456 {
		t.Errorf("ids = %v, want [123 456]", ids)
	}
}

func TestParseChatIDs_RejectsMalformedID(t *testing.T) {
	_, err := parseChatIDs([]string{"123456789,not-a-chat"})
	if err == nil {
		t.Fatal("expected error for malformed chat id")
	}
	if !strings.Contains(err.Error(), "not-a-chat") {
		t.Errorf("error %q does not name the offending id", err)
	}
}
