// Package fingerprint classifies the server/platform behind an HTTP
// response from its headers and a bounded body prefix.
package fingerprint

import (
	"regexp"
	"sort"
	"strings"
)

// Unknown is returned when no rule matches.
const Unknown = "Unknown"

var versionRe = regexp.MustCompile(`^[A-Za-z0-9._-]+/([0-9][0-9.]*)`)

// serverTokens maps a lowercase Server-header product token to its display
// label, in the order spec'd: nginx, apache, iis, lighttpd, caddy, gunicorn,
// uvicorn, hypercorn, daphne, tomcat, jetty, node.js/express, uwsgi.
var serverTokens = []struct {
	token string
	label string
}{
	{"nginx", "Nginx"},
	{"apache", "Apache"},
	{"microsoft-iis", "IIS"},
	{"iis", "IIS"},
	{"lighttpd", "Lighttpd"},
	{"caddy", "Caddy"},
	{"gunicorn", "Gunicorn"},
	{"uvicorn", "Uvicorn"},
	{"hypercorn", "Hypercorn"},
	{"daphne", "Daphne"},
	{"tomcat", "Tomcat"},
	{"jetty", "Jetty"},
	{"node.js", "Node.js/Express"},
	{"express", "Node.js/Express"},
	{"uwsgi", "uWSGI"},
}

var poweredByTokens = []struct {
	token string
	label string
}{
	{"php", "PHP"},
	{"asp.net", "ASP.NET"},
	{"django", "Django"},
	{"flask", "Flask"},
	{"fastapi", "FastAPI"},
	{"express", "Express"},
	{"rails", "Rails"},
	{"laravel", "Laravel"},
	{"symfony", "Symfony"},
	{"spring boot", "Spring Boot"},
	{"next.js", "Next.js"},
	{"nuxt.js", "Nuxt.js"},
}

// cdnHeaders maps a distinguished header name to its platform label. Detect
// checks the names in sorted order, so the first match is stable.
var cdnHeaders = map[string]string{
	"x-amz-cf-id":          "CloudFront",
	"x-amz-cf-pop":         "CloudFront",
	"x-vercel-id":          "Vercel",
	"x-vercel-cache":       "Vercel",
	"x-nf-request-id":      "Netlify",
	"x-github-request-id":  "GitHub Pages",
	"x-render-origin-server": "Render",
	"fly-request-id":       "Fly.io",
	"x-railway-request-id": "Railway",
	"x-replit-id":          "Replit",
	"x-glitch-id":          "Glitch",
	"x-served-by":          "Fastly",
	"x-fastly-request-id":  "Fastly",
	"x-akamai-request-id":  "Akamai",
	"x-varnish":            "Varnish",
	"x-squid-error":        "Squid",
	"x-cache":              "KeyCDN",
	"x-sp-edge":            "StackPath",
	"x-surge-error":        "Surge",
}

// bodyMarkers are checked in order: CMS/e-commerce platforms first, then
// static-site generators, then SPA frameworks.
var bodyMarkers = []struct {
	marker string
	label  string
}{
	{"wp-content", "WordPress"},
	{"wp-includes", "WordPress"},
	{"wp-json", "WordPress"},
	{"/sites/default/files", "Drupal"},
	{"drupal.settings", "Drupal"},
	{"/media/jui/", "Joomla"},
	{"joomla", "Joomla"},
	{"mage/cookies", "Magento"},
	{"magento", "Magento"},
	{"cdn.shopify.com", "Shopify"},
	{"squarespace", "Squarespace"},
	{"wix.com", "Wix"},
	{"weebly", "Weebly"},
	{"generator\" content=\"jekyll", "Jekyll"},
	{"generator\" content=\"hugo", "Hugo"},
	{"__gatsby", "Gatsby"},
	{"generator\" content=\"eleventy", "Eleventy"},
	{"data-reactroot", "React"},
	{"data-v-", "Vue"},
	{"ng-version", "Angular"},
}

// Detect derives a platform label from response headers and a bounded body
// prefix. Header matching is case-insensitive. The function is deterministic
// and side-effect-free: duplicate or unrelated headers never change the
// result once a rule matches.
func Detect(headers map[string]string, bodyPrefix string) string {
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lower[strings.ToLower(k)] = v
	}

	if lower["cf-ray"] != "" || lower["cf-cache-status"] != "" || lower["cf-request-id"] != "" {
		return "Cloudflare"
	}

	if server := lower["server"]; server != "" {
		if label, ok := matchToken(server, serverTokens); ok {
			return label
		}
	}

	if poweredBy := lower["x-powered-by"]; poweredBy != "" {
		if label, ok := matchToken(poweredBy, poweredByTokens); ok {
			return label
		}
	}

	cdnNames := make([]string, 0, len(cdnHeaders))
	for name := range cdnHeaders {
		cdnNames = append(cdnNames, name)
	}
	sort.Strings(cdnNames)
	for _, name := range cdnNames {
		if _, ok := lower[name]; ok {
			return cdnHeaders[name]
		}
	}

	if bodyPrefix != "" {
		body := strings.ToLower(bodyPrefix)
		for _, m := range bodyMarkers {
			if strings.Contains(body, m.marker) {
				return m.label
			}
		}
	}

	return Unknown
}

// matchToken finds the first table entry whose token appears in value and
// appends a version suffix when value carries a `<name>/<version>` form.
func matchToken(value string, table []struct {
	token string
	label string
}) (string, bool) {
	lv := strings.ToLower(value)
	for _, entry := range table {
		if !strings.Contains(lv, entry.token) {
			continue
		}
		label := entry.label
		if m := versionRe.FindStringSubmatch(value); m != nil {
			label = label + " " + m[1]
		}
		return label, true
	}
	return "", false
}
