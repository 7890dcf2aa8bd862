package browser

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"adshield/adblock"
)

// protoToResource maps DevTools resource types to filter resource types.
// Document requests are resolved by the tab since only it knows whether the
// main frame is navigating.
var protoToResource = map[proto.NetworkResourceType]adblock.ResourceType{
	proto.NetworkResourceTypeStylesheet:         adblock.TypeStylesheet,
	proto.NetworkResourceTypeImage:              adblock.TypeImage,
	proto.NetworkResourceTypeMedia:              adblock.TypeMedia,
	proto.NetworkResourceTypeFont:               adblock.TypeFont,
	proto.NetworkResourceTypeScript:             adblock.TypeScript,
	proto.NetworkResourceTypeXHR:                adblock.TypeXHR,
	proto.NetworkResourceTypeFetch:              adblock.TypeXHR,
	proto.NetworkResourceTypeEventSource:        adblock.TypeXHR,
	proto.NetworkResourceTypeWebSocket:          adblock.TypeWebSocket,
	proto.NetworkResourceTypePing:               adblock.TypePing,
	proto.NetworkResourceTypeCSPViolationReport: adblock.TypePing,
}

func resourceType(t proto.NetworkResourceType, mainFrameNavigating bool) adblock.ResourceType {
	if t == proto.NetworkResourceTypeDocument {
		if mainFrameNavigating {
			return adblock.TypeDocument
		}
		return adblock.TypeSubdocument
	}
	if rt, ok := protoToResource[t]; ok {
		return rt
	}
	return adblock.TypeOther
}

// decodeDataURL splits a data: URL into its media type and body.
func decodeDataURL(raw string) (mime string, body []byte, ok bool) {
	rest, found := strings.CutPrefix(raw, "data:")
	if !found {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, false
	}

	isBase64 := false
	if m, cut := strings.CutSuffix(meta, ";base64"); cut {
		meta, isBase64 = m, true
	}
	mime = meta
	if mime == "" {
		mime = "text/plain;charset=US-ASCII"
	}

	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, false
		}
		return mime, b, true
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, false
	}
	return mime, []byte(s), true
}
