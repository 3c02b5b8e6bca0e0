package catalog

import (
	"sort"
	"strings"
	"unicode"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/models"
)

// Normalizer turns raw listings into fetchable targets for one market.
type Normalizer struct {
	cfg          common.MarketConfig
	replacer     *strings.Replacer
	suffixRules  []suffixRule
	includeTypes map[string]bool
	excludeNames []string
}

type suffixRule struct {
	prefix string
	suffix string
}

// NewNormalizer builds a normalizer from the market configuration.
func NewNormalizer(cfg common.MarketConfig) *Normalizer {
	n := &Normalizer{cfg: cfg}

	if len(cfg.CodeReplacements) > 0 {
		keys := make([]string, 0, len(cfg.CodeReplacements))
		for k := range cfg.CodeReplacements {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, 2*len(keys))
		for _, k := range keys {
			pairs = append(pairs, k, cfg.CodeReplacements[k])
		}
		n.replacer = strings.NewReplacer(pairs...)
	}

	for prefix, suffix := range cfg.SuffixRules {
		n.suffixRules = append(n.suffixRules, suffixRule{prefix: prefix, suffix: suffix})
	}
	// Longest prefix wins.
	sort.Slice(n.suffixRules, func(i, j int) bool {
		if len(n.suffixRules[i].prefix) != len(n.suffixRules[j].prefix) {
			return len(n.suffixRules[i].prefix) > len(n.suffixRules[j].prefix)
		}
		return n.suffixRules[i].prefix < n.suffixRules[j].prefix
	})

	if len(cfg.IncludeTypes) > 0 {
		n.includeTypes = make(map[string]bool, len(cfg.IncludeTypes))
		for _, t := range cfg.IncludeTypes {
			n.includeTypes[strings.ToLower(t)] = true
		}
	}
	for _, kw := range cfg.ExcludeNameKeywords {
		n.excludeNames = append(n.excludeNames, strings.ToUpper(kw))
	}
	return n
}

// Normalize filters and converts listings, de-duplicating by code in first-seen order.
func (n *Normalizer) Normalize(listings []models.Listing) []models.Target {
	seen := make(map[string]bool, len(listings))
	targets := make([]models.Target, 0, len(listings))
	for _, l := range listings {
		t, ok := n.target(l)
		if !ok || seen[t.Code] {
			continue
		}
		seen[t.Code] = true
		targets = append(targets, t)
	}
	return targets
}

func (n *Normalizer) target(l models.Listing) (models.Target, bool) {
	code := models.NormalizeCode(l.Code)
	if n.replacer != nil {
		code = n.replacer.Replace(code)
	}
	if n.cfg.TruncateCode > 0 && len(code) > n.cfg.TruncateCode {
		code = code[:n.cfg.TruncateCode]
	}
	if code == "" {
		return models.Target{}, false
	}
	if n.cfg.NumericCodes && !isDigits(code) {
		return models.Target{}, false
	}
	if len(n.cfg.IncludePrefixes) > 0 && !hasAnyPrefix(code, n.cfg.IncludePrefixes) {
		return models.Target{}, false
	}
	if n.includeTypes != nil && !n.includeTypes[strings.ToLower(strings.TrimSpace(l.Type))] {
		return models.Target{}, false
	}

	name := strings.TrimSpace(l.Name)
	if n.excluded(name) {
		return models.Target{}, false
	}
	if name == "" {
		name = code
	}

	return models.Target{Code: code, Name: name, Suffix: n.suffix(code, l.Venue)}, true
}

func (n *Normalizer) suffix(code, venue string) string {
	for _, r := range n.suffixRules {
		if strings.HasPrefix(code, r.prefix) {
			return r.suffix
		}
	}
	if n.cfg.VenueSuffix && venue != "" {
		return "." + strings.ToUpper(venue)
	}
	return n.cfg.DefaultSuffix
}

// excluded reports whether any word of name is an exclude keyword or its plural.
// "XYZ Corp Warrants" is excluded; "UnitedHealth" is not excluded by "UNIT".
func (n *Normalizer) excluded(name string) bool {
	if len(n.excludeNames) == 0 {
		return false
	}
	words := strings.FieldsFunc(strings.ToUpper(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for _, kw := range n.excludeNames {
			if w == kw || w == kw+"S" {
				return true
			}
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
