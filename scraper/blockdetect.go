package scraper

import (
	"bytes"
	"net/http"
)

// BlockType describes the kind of anti-bot page detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// shellLimit is the body size below which captcha and noscript markers are
// taken to mean the whole page is a challenge rather than a listing.
const shellLimit = 4096

// DetectBlock checks a response for signs of anti-bot protection.
func DetectBlock(statusCode int, header http.Header, body []byte) (bool, BlockType) {
	// Cloudflare: 403/503 with cf-* headers.
	if statusCode == http.StatusForbidden || statusCode == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || header.Get("cf-cache-status") != "" ||
			header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := bytes.ToLower(body)

	// Cloudflare challenge page markers.
	if bytes.Contains(lower, []byte("checking your browser")) ||
		bytes.Contains(lower, []byte("cf-browser-verification")) ||
		bytes.Contains(lower, []byte("cf-challenge")) {
		return true, BlockCloudflare
	}

	if len(body) >= shellLimit {
		return false, BlockNone
	}

	if bytes.Contains(lower, []byte("captcha")) {
		return true, BlockCaptcha
	}
	if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("javascript")) {
		return true, BlockJSShell
	}
	if bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
		return true, BlockJSShell
	}
	return false, BlockNone
}
