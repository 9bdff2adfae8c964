package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectServerHeaderWithVersion(t *testing.T) {
	got := Detect(map[string]string{"Server": "nginx/1.21.6"}, "")
	assert.Equal(t, "Nginx 1.21.6", got)
}

func TestDetectCloudflarePrecedesServer(t *testing.T) {
	got := Detect(map[string]string{"cf-ray": "abc", "Server": "nginx"}, "")
	assert.Equal(t, "Cloudflare", got)
}

func TestDetectBodySniffWordPress(t *testing.T) {
	got := Detect(map[string]string{"Server": ""}, "<link rel='stylesheet' href='/wp-content/themes/x/style.css'>")
	assert.Equal(t, "WordPress", got)
}

func TestDetectBodySniffReact(t *testing.T) {
	got := Detect(nil, "<div data-reactroot>hello</div>")
	assert.Equal(t, "React", got)
}

func TestDetectPoweredBy(t *testing.T) {
	got := Detect(map[string]string{"X-Powered-By": "Express"}, "")
	assert.Equal(t, "Express", got)
}

func TestDetectCDNHeader(t *testing.T) {
	got := Detect(map[string]string{"x-vercel-id": "cdg1::abc"}, "")
	assert.Equal(t, "Vercel", got)
}

func TestDetectUnknown(t *testing.T) {
	got := Detect(map[string]string{}, "")
	assert.Equal(t, Unknown, got)
}

func TestDetectCaseInsensitiveHeaderKeys(t *testing.T) {
	got := Detect(map[string]string{"SERVER": "Apache/2.4.41 (Ubuntu)"}, "")
	assert.Equal(t, "Apache 2.4.41", got)
}

func TestDetectIdempotent(t *testing.T) {
	headers := map[string]string{"Server": "nginx/1.21.6", "Date": "irrelevant"}
	first := Detect(headers, "")
	second := Detect(headers, "")
	assert.Equal(t, first, second)
}

func TestDetectUnrelatedHeadersDoNotChangeNonUnknownLabel(t *testing.T) {
	base := Detect(map[string]string{"Server": "nginx/1.21.6"}, "")
	withExtra := Detect(map[string]string{"Server": "nginx/1.21.6", "X-Request-Id": "xyz"}, "")
	assert.Equal(t, base, withExtra)
}
