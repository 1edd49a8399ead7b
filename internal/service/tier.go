package service

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
)

// Tier is a subscription tier derived from CRM tags.
type Tier string

// AllowsScripts reports whether the tier may generate TTS scripts.
func (t Tier) AllowsScripts() bool {
	return t == model.TierPro || t == model.TierUnlimited
}

// ResolveTier scans tags for tier keywords, highest tier first. Matching is
// case-insensitive. Alphabetic keywords must be whole words ("Xauti PRO"
// matches pro, "prospect" does not); price keywords like "$3" or "99" match
// anywhere in the tag. Tiers rank by generation limit; with no match the
// user is free.
func ResolveTier(tags []string, rules map[string]config.TierRule) Tier {
	lowered := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			lowered = append(lowered, tag)
		}
	}

	for _, name := range rankedTiers(rules) {
		for _, kw := range rules[name].Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			for _, tag := range lowered {
				if keywordMatches(tag, kw) {
					return Tier(name)
				}
			}
		}
	}
	return model.TierFree
}

func rankedTiers(rules map[string]config.TierRule) []string {
	names := make([]string, 0, len(rules))
	for name, rule := range rules {
		if len(rule.Keywords) > 0 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		li, lj := rules[names[i]].GenerationsLimit, rules[names[j]].GenerationsLimit
		if li != lj {
			return li > lj
		}
		return names[i] < names[j]
	})
	return names
}

var (
	alphaKeyword = regexp.MustCompile(`^[a-z]+$`)
	// keyword -> compiled whole-word pattern
	wordPatterns sync.Map
)

func keywordMatches(tag, kw string) bool {
	if !alphaKeyword.MatchString(kw) {
		return strings.Contains(tag, kw)
	}
	re, ok := wordPatterns.Load(kw)
	if !ok {
		re, _ = wordPatterns.LoadOrStore(kw, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return re.(*regexp.Regexp).MatchString(tag)
}
