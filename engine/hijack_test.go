package engine

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestBlockedSet(t *testing.T) {
	got := blockedSet([]string{"Image", "Font", "Image", "Video"})
	if len(got) != 2 {
		t.Fatalf("blockedSet = %v, want Image and Font only", got)
	}
	for _, rt := range []proto.NetworkResourceType{proto.NetworkResourceTypeImage, proto.NetworkResourceTypeFont} {
		if _, ok := got[rt]; !ok {
			t.Errorf("%s should be blocked", rt)
		}
	}
}

func TestSetupHijack_NothingToBlock(t *testing.T) {
	// No interceptor is installed, so no page is needed.
	if r := setupHijack(nil, nil); r != nil {
		t.Error("setupHijack with no blocked types should return nil")
	}
	if r := setupHijack(nil, []string{"Video"}); r != nil {
		t.Error("setupHijack with only unknown types should return nil")
	}
}

func TestIsResourceType(t *testing.T) {
	for _, name := range []string{"Image", "Stylesheet", "Font", "Media", "Script"} {
		if !IsResourceType(name) {
			t.Errorf("IsResourceType(%q) = false", name)
		}
	}
	if IsResourceType("image") {
		t.Error("resource names are case-sensitive")
	}
}
