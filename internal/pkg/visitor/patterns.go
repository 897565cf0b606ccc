package visitor

import (
	"sync"

	"go.elara.ws/pcre"
)

// Device and browser signatures. Order matters: DetectDeviceType checks the
// tablet pattern before the mobile one, and DetectBrowser takes the first hit.
const (
	tabletPattern = `(?i)ipad|tablet|kindle|silk|playbook|android(?!.*mobile)`
	mobilePattern = `(?i)mobile|iphone|ipod|android|blackberry|opera mini|iemobile|windows phone`
)

type browserPattern struct {
	name    string
	pattern string
}

var browserPatterns = []browserPattern{
	{BrowserChrome, `(?i)chrome|crios`},
	{BrowserFirefox, `(?i)firefox|fxios`},
	{BrowserSafari, `(?i)safari`},
	{BrowserEdge, `(?i)edg(e|a|ios)?/`},
}

type regexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *regexCache {
	return &regexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *regexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// matches reports whether s matches pattern. A pattern that fails to compile
// never matches.
func (rc *regexCache) matches(pattern, s string) bool {
	regex, err := rc.get(pattern)
	if err != nil {
		return false
	}
	return regex.MatchString(s)
}

var patterns = newRegexCache()
