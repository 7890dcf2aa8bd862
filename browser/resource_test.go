package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"

	"adshield/adblock"
)

func TestResourceType(t *testing.T) {
	assert.Equal(t, adblock.TypeDocument, resourceType(proto.NetworkResourceTypeDocument, true))
	assert.Equal(t, adblock.TypeSubdocument, resourceType(proto.NetworkResourceTypeDocument, false))
	assert.Equal(t, adblock.TypeScript, resourceType(proto.NetworkResourceTypeScript, false))
	assert.Equal(t, adblock.TypeXHR, resourceType(proto.NetworkResourceTypeFetch, false))
	assert.Equal(t, adblock.TypePing, resourceType(proto.NetworkResourceTypePing, false))
	assert.Equal(t, adblock.TypeOther, resourceType(proto.NetworkResourceTypeManifest, false))
}

func TestDecodeDataURL(t *testing.T) {
	mime, body, ok := decodeDataURL(adblock.RedirectURL("noopjs"))
	assert.True(t, ok)
	assert.Equal(t, "application/javascript", mime)
	assert.Equal(t, "(function(){})();", string(body))

	mime, body, ok = decodeDataURL(adblock.RedirectURL("noopcss"))
	assert.True(t, ok)
	assert.Equal(t, "text/css", mime)
	assert.Empty(t, body)

	mime, body, ok = decodeDataURL("data:,hello%20world")
	assert.True(t, ok)
	assert.Equal(t, "text/plain;charset=US-ASCII", mime)
	assert.Equal(t, "hello world", string(body))

	_, _, ok = decodeDataURL("https://example.com/")
	assert.False(t, ok)
	_, _, ok = decodeDataURL("data:text/plain;base64,***")
	assert.False(t, ok)
}
