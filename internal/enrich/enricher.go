package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"fxlens/internal/analysis/signal"
	"fxlens/internal/logger"
	"fxlens/internal/market"
	"fxlens/internal/pkg/circuit"
)

const (
	maxNewsItems = 3
	maxEvents    = 3
	maxSources   = 5
)

// Request 一次增强所需的全部上下文。
type Request struct {
	Symbol    string
	AssetName string
	Class     market.Class
	Timeframe string
	Price     float64
	Verdict   signal.Verdict
}

// Enricher 把本地信号连同检索指令交给外部模型，将返回的 JSON 按字段
// 合并进启发式观点。熔断器打开期间直接跳过调用。
type Enricher struct {
	client  ChatCaller
	breaker *circuit.Breaker
	now     func() time.Time
}

func New(client ChatCaller, breaker *circuit.Breaker) *Enricher {
	return &Enricher{
		client:  client,
		breaker: breaker,
		now:     time.Now,
	}
}

// Enrich 永不返回错误：模型不可用、输出不合法、熔断打开，
// 一律回退 heuristic。
func (e *Enricher) Enrich(ctx context.Context, req Request, heuristic signal.Summary) signal.Summary {
	if e == nil || e.client == nil {
		return heuristic
	}
	trace := uuid.NewString()[:8]
	system, user := e.buildPrompts(req)

	var raw string
	call := func() error {
		var callErr error
		raw, callErr = e.client.CallWithMessages(ctx, system, user)
		return callErr
	}
	var err error
	if e.breaker != nil {
		err = e.breaker.Do(call)
	} else {
		err = call()
	}
	if err != nil {
		logger.Warnf("[enrich] %s %s call failed, keeping heuristic: %v", trace, req.Symbol, err)
		return heuristic
	}

	merged, ok := mergeResponse(raw, heuristic)
	if !ok {
		logger.Warnf("[enrich] %s %s unusable response, keeping heuristic", trace, req.Symbol)
		return heuristic
	}
	logger.Infof("[enrich] %s %s merged bias=%s confidence=%d news=%d events=%d",
		trace, req.Symbol, merged.Bias, merged.Confidence, len(merged.NewsHighlights), len(merged.UpcomingEvents))
	return merged
}

func (e *Enricher) buildPrompts(req Request) (string, string) {
	today, weekRange := dateContext(e.now())

	// "Bitcoin (USDT)" 检索时只取括号前的主名
	queryName := req.AssetName
	if idx := strings.Index(queryName, "("); idx >= 0 {
		queryName = strings.TrimSpace(queryName[:idx])
	}
	searchTerm := queryName
	if req.Class == market.ClassForex {
		searchTerm = req.Symbol
	}

	var searchInstructions string
	if req.Class == market.ClassCrypto {
		searchInstructions = fmt.Sprintf(
			`Search for: "%s price news %s", "crypto market sentiment this week", "%s major token unlocks", "latest %s protocol updates".`,
			searchTerm, today, searchTerm, searchTerm)
	} else {
		searchInstructions = fmt.Sprintf(
			`Search for: "%s forex news %s", "economic calendar high impact events %s", "central bank rate decisions", "%s geopolitical analysis".`,
			searchTerm, today, weekRange, searchTerm)
	}

	system := fmt.Sprintf("You are an expert financial analyst. The current date is %s. "+
		"You combine locally computed technical signals with recent news and economic calendar knowledge, "+
		"and you answer with a single JSON object only.", today)

	v := req.Verdict
	user := fmt.Sprintf(`Perform a comprehensive analysis for the asset %s (%s).

CONTEXT - TECHNICAL ANALYSIS (Calculated Locally):
- Trend: %s
- Ichimoku Cloud: %s
- Stochastic Oscillator: %s
- RSI: %s
- MACD: %s
- Bollinger Bands: %s
- Current Price: %g
- Timeframe: %s

TASK:
1. Recall recent coverage: %s
2. Synthesize: Combine the technical signals with fundamental news and calendar events.
3. Analyze Confluence: Does the news justify the technical levels? Are upcoming events likely to invalidate the current trend?
4. Output: Generate a strictly formatted JSON object with the fields below.

JSON SCHEMA:
{
  "bias": "BULLISH" | "BEARISH" | "NEUTRAL",
  "confidence": number (0-100),
  "narrative": "A concise paragraph integrating technicals (specifically citing Ichimoku/Stoch) and news.",
  "newsHighlights": [ { "title": "Headline", "source": "Source Name" } ] (Max %d),
  "upcomingEvents": [ { "event": "Event Name", "impact": "HIGH"|"MEDIUM"|"LOW", "time": "Day/Time" } ] (Max %d, focus on events in %s),
  "sources": [ { "title": "Page Title", "url": "https://..." } ] (Max %d),
  "idea": { "type": "LONG"|"SHORT"|"WAIT", "invalidatedIf": "Short condition", "note": "Short rationale" }
}

IMPORTANT:
- Return ONLY the JSON object.
- Ensure 'impact' in upcomingEvents is strictly one of: HIGH, MEDIUM, LOW.`,
		req.AssetName, req.Symbol,
		v.Trend, v.IchimokuState, v.StochSignal, v.RSIState, v.MACDSignal, v.BBState,
		req.Price, req.Timeframe,
		searchInstructions,
		maxNewsItems, maxEvents, weekRange, maxSources)

	return system, user
}

// dateContext 返回 "Sep 1, 2026" 形式的当天日期与周一到周日的本周区间。
func dateContext(now time.Time) (today, weekRange string) {
	today = now.Format("Jan 2, 2006")
	diff := int(now.Weekday()) - 1
	if now.Weekday() == time.Sunday {
		diff = 6
	}
	start := now.AddDate(0, 0, -diff)
	end := start.AddDate(0, 0, 6)
	weekRange = start.Format("Jan 2") + " to " + end.Format("Jan 2")
	return today, weekRange
}

type rawIdea struct {
	Type          string `json:"type"`
	InvalidatedIf string `json:"invalidatedIf"`
	Note          string `json:"note"`
}

type rawEvent struct {
	Event  string `json:"event"`
	Impact string `json:"impact"`
	Time   string `json:"time"`
}

type rawSummary struct {
	Bias           string                   `json:"bias"`
	Confidence     *float64                 `json:"confidence"`
	Narrative      string                   `json:"narrative"`
	NewsHighlights []signal.NewsItem        `json:"newsHighlights"`
	UpcomingEvents []rawEvent               `json:"upcomingEvents"`
	Sources        []signal.GroundingSource `json:"sources"`
	Idea           *rawIdea                 `json:"idea"`
}

// mergeResponse 提取并校验模型输出，逐字段合并进启发式观点。
// 单个字段不合法只回退该字段，整体不可解析才整体回退。
func mergeResponse(raw string, heuristic signal.Summary) (signal.Summary, bool) {
	text, ok := ExtractJSONObject(raw)
	if !ok {
		return heuristic, false
	}
	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return heuristic, false
	}
	if err := compiledSchema.Validate(generic); err != nil {
		logger.Debugf("[enrich] schema validation failed: %v", err)
		return heuristic, false
	}
	var parsed rawSummary
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return heuristic, false
	}

	out := heuristic

	switch signal.Bias(parsed.Bias) {
	case signal.BiasBullish, signal.BiasBearish, signal.BiasNeutral:
		out.Bias = signal.Bias(parsed.Bias)
	}
	if parsed.Confidence != nil {
		out.Confidence = int(math.Round(*parsed.Confidence))
	}
	if strings.TrimSpace(parsed.Narrative) != "" {
		out.Narrative = parsed.Narrative
	}

	out.NewsHighlights = capSlice(parsed.NewsHighlights, maxNewsItems)
	out.UpcomingEvents = nil
	for _, ev := range capSlice(parsed.UpcomingEvents, maxEvents) {
		impact := signal.Impact(ev.Impact)
		switch impact {
		case signal.ImpactHigh, signal.ImpactMedium, signal.ImpactLow:
		default:
			impact = signal.ImpactMedium
		}
		out.UpcomingEvents = append(out.UpcomingEvents, signal.CalendarEvent{
			Event:  ev.Event,
			Impact: impact,
			Time:   ev.Time,
		})
	}
	out.Sources = capSlice(parsed.Sources, maxSources)

	if parsed.Idea != nil {
		switch signal.IdeaType(parsed.Idea.Type) {
		case signal.IdeaLong, signal.IdeaShort, signal.IdeaWait:
			out.Idea.Type = signal.IdeaType(parsed.Idea.Type)
		}
		if strings.TrimSpace(parsed.Idea.InvalidatedIf) != "" {
			out.Idea.InvalidatedIf = parsed.Idea.InvalidatedIf
		}
		if strings.TrimSpace(parsed.Idea.Note) != "" {
			out.Idea.Note = parsed.Idea.Note
		}
	}
	return out, true
}

func capSlice[T any](in []T, limit int) []T {
	if len(in) > limit {
		return in[:limit]
	}
	return in
}

// ExtractJSONObject 提取首个配平的 JSON 对象文本。
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1]), true
			}
		}
	}
	return "", false
}
