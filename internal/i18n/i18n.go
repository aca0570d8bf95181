// Package i18n provides the localized message catalogs used for user-facing
// progress and error text. Messages are opaque strings to the rest of the
// system; only the keys are shared.
package i18n

import (
	"embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed locales/*.json
var localeFS embed.FS

const fallbackLang = "en"

var (
	loadOnce sync.Once
	catalogs map[string]map[string]string
)

func load() {
	catalogs = make(map[string]map[string]string)
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + name)
		if err != nil {
			continue
		}
		var catalog map[string]string
		if err := json.Unmarshal(data, &catalog); err != nil {
			continue
		}
		catalogs[strings.TrimSuffix(name, ".json")] = catalog
	}
}

// T returns the text for key in lang with {name} placeholders substituted from
// args. Unknown languages fall back to English; unknown keys return the key
// itself so a missing translation never hides an update.
func T(lang, key string, args map[string]string) string {
	loadOnce.Do(load)

	catalog, ok := catalogs[lang]
	if !ok {
		catalog = catalogs[fallbackLang]
	}
	text, ok := catalog[key]
	if !ok {
		if fb, fbOK := catalogs[fallbackLang][key]; fbOK {
			text = fb
		} else {
			text = key
		}
	}

	for name, value := range args {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

// FromAcceptLanguage resolves the request language from an Accept-Language
// header: exact match first, then partial, defaulting to English.
func FromAcceptLanguage(header string) string {
	switch header {
	case "ko", "ja", "zh-CN", "zh-TW", "ar", "en":
		return header
	}
	switch {
	case strings.Contains(header, "ko"):
		return "ko"
	case strings.Contains(header, "ja"):
		return "ja"
	case strings.Contains(header, "zh"):
		return "zh-CN"
	case strings.Contains(header, "ar"):
		return "ar"
	}
	return "en"
}
