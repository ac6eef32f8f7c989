// Package match 实现纯函数式的规则匹配
// 输入为规则存储的只读快照与单条消息,全程无锁
package match

import (
	"regexp"
	"strings"
	"sync"

	"watch-gateway/internal/watch"
)

const globWildcard = "*"

// 编译结果按小写关键词缓存,同一关键词跨消息复用
// 关键词来自操作者配置,数量有界,缓存不做淘汰
var (
	globCacheMu sync.Mutex
	globCache   = make(map[string]*regexp.Regexp)
)

// Match 对快照中的全部规则评估一条消息
// 返回 配置者 → 命中结果;作用域过滤是合取关系,关键词大小写不敏感
// 同一配置者可被多条规则命中,关键词取并集,结果与规则评估顺序无关
func Match(snapshot watch.Snapshot, msg watch.InboundMessage) map[int64]*watch.OwnerHit {
	textLower := strings.ToLower(msg.Text)

	matched := make(map[int64]*watch.OwnerHit)
	for ownerID, bucket := range snapshot {
		for _, rule := range bucket.Rules {
			if rule.GroupID != nil && *rule.GroupID != msg.ChatID {
				continue
			}
			if rule.UserID != nil && *rule.UserID != msg.SenderID {
				continue
			}

			hits := evaluateKeywords(rule, textLower)
			if len(hits) == 0 {
				continue
			}

			entry, exists := matched[ownerID]
			if !exists {
				entry = &watch.OwnerHit{
					Keywords:      make(map[string]struct{}),
					NotifyTargets: append([]int64(nil), bucket.NotifyTargets...),
				}
				matched[ownerID] = entry
			}
			for _, keyword := range hits {
				entry.Keywords[keyword] = struct{}{}
			}
		}
	}
	return matched
}

// evaluateKeywords 返回规则在给定小写文本上命中的关键词
// 哨兵规则无条件命中并报告 {"*"};普通规则至少一个关键词命中即算命中
func evaluateKeywords(rule watch.Rule, textLower string) []string {
	if rule.IsSentinel() {
		return []string{watch.SentinelKeyword}
	}

	var hits []string
	for _, keyword := range rule.Keywords {
		if KeywordHits(keyword, textLower) {
			hits = append(hits, keyword)
		}
	}
	return hits
}

// KeywordHits 判断单个关键词是否命中小写文本
// 不含 * 的关键词做普通子串包含;含 * 的关键词按通配模式匹配,
// * 展开为"任意长度的字符序列",其余字符全部按字面匹配
func KeywordHits(keyword, textLower string) bool {
	keywordLower := strings.ToLower(keyword)
	if !strings.Contains(keywordLower, globWildcard) {
		return strings.Contains(textLower, keywordLower)
	}
	return compileKeyword(keywordLower).MatchString(textLower)
}

// compileKeyword 将通配关键词编译为正则,命中缓存时直接复用
// 字面片段逐段转义,* 替换为 (?s:.*),不做整串锚定(包含语义)
func compileKeyword(keywordLower string) *regexp.Regexp {
	globCacheMu.Lock()
	defer globCacheMu.Unlock()

	if compiled, exists := globCache[keywordLower]; exists {
		return compiled
	}

	segments := strings.Split(keywordLower, globWildcard)
	for position, segment := range segments {
		segments[position] = regexp.QuoteMeta(segment)
	}
	compiled := regexp.MustCompile("(?s)" + strings.Join(segments, ".*"))
	globCache[keywordLower] = compiled
	return compiled
}
