package extract

import (
	"net/url"
	"strings"
)

// BlockType describes why a page is not the content that was requested.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockLoginWall  BlockType = "login_wall"
	BlockCheckpoint BlockType = "checkpoint"
	BlockCaptcha    BlockType = "captcha"
)

// blockedPaths are address prefixes the site redirects to instead of the
// requested page.
var blockedPaths = map[string]BlockType{
	"/checkpoint/":     BlockCheckpoint,
	"/authwall":        BlockLoginWall,
	"/login":           BlockLoginWall,
	"/uas/login":       BlockLoginWall,
	"/challenge":       BlockCaptcha,
	"/security/verify": BlockCheckpoint,
}

// DetectBlock reports whether the page at pageURL with body is a security
// checkpoint, captcha, or login wall rather than the requested content.
func DetectBlock(pageURL string, body []byte) (bool, BlockType) {
	if u, err := url.Parse(pageURL); err == nil {
		for prefix, kind := range blockedPaths {
			if strings.HasPrefix(u.Path, prefix) {
				return true, kind
			}
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "g-recaptcha") ||
		strings.Contains(lower, "hcaptcha") ||
		strings.Contains(lower, "captcha-internal") {
		return true, BlockCaptcha
	}

	if strings.Contains(lower, "let's do a quick security check") ||
		strings.Contains(lower, "security verification") {
		return true, BlockCheckpoint
	}

	return false, BlockNone
}
