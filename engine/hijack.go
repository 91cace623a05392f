package engine

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceToProto maps the names accepted in PageOptions.BlockedResources
// to Rod protocol resource types.
var resourceToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// IsResourceType reports whether name can be blocked.
func IsResourceType(name string) bool {
	_, ok := resourceToProto[name]
	return ok
}

// setupHijack installs a request interceptor on the page that fails every
// request whose resource type is blocked.
//
// Returns the running HijackRouter so the caller can Stop it on close.
// Returns nil if there is nothing to block.
func setupHijack(page *rod.Page, blockedTypes []string) *rod.HijackRouter {
	blocked := blockedSet(blockedTypes)
	if len(blocked) == 0 {
		return nil
	}

	router := page.HijackRequests()
	err := router.Add("*", "", func(ctx *rod.Hijack) {
		if _, ok := blocked[ctx.Request.Type()]; ok {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		slog.Warn("resource blocking disabled, hijack registration failed", "error", err)
		_ = router.Stop()
		return nil
	}

	// Run blocks until Stop.
	go router.Run()

	return router
}

// blockedSet maps resource names to protocol types, dropping unknown names.
func blockedSet(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := resourceToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}
