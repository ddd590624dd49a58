package dashboard

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

const tokenPath = "gateway.auth.token"

// Resolver builds the tokenized dashboard URL from the OpenClaw config.
type Resolver struct {
	Host       string
	Port       int
	ConfigFile string // ~/.openclaw/openclaw.json
	LegacyFile string // ~/.clawdbot/clawdbot.json, read only when ConfigFile is absent
}

// URL returns the dashboard URL, with ?token= appended when the OpenClaw
// config carries a gateway auth token.
func (r Resolver) URL() string {
	base := BaseURL(r.Host, r.Port)
	tok := r.Token()
	if tok == "" {
		return base
	}
	return base + "?token=" + encodeToken(tok)
}

// Token returns gateway.auth.token, or "" when none is configured.
func (r Resolver) Token() string {
	if r.ConfigFile != "" {
		if _, err := os.Stat(r.ConfigFile); err == nil {
			return readToken(r.ConfigFile)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return ""
		}
	}
	if r.LegacyFile == "" {
		return ""
	}
	return readToken(r.LegacyFile)
}

func readToken(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	stripped := jsonc.ToJSON(data)
	if !gjson.ValidBytes(stripped) {
		return ""
	}
	v := gjson.GetBytes(stripped, tokenPath)
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}

// encodeToken percent-encodes everything but unreserved characters.
func encodeToken(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
