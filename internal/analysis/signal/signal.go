// Package signal 把指标快照归纳为离散信号，并合成打分后的交易观点。
package signal

type Trend string

const (
	TrendUp      Trend = "UPTREND"
	TrendDown    Trend = "DOWNTREND"
	TrendRanging Trend = "RANGING"
)

// Level 超买超卖档位，RSI 与随机指标共用。
type Level string

const (
	LevelOversold   Level = "OVERSOLD"
	LevelOverbought Level = "OVERBOUGHT"
	LevelNeutral    Level = "NEUTRAL"
)

// Direction 多空方向，MACD 与一目云共用。
type Direction string

const (
	DirBullish Direction = "BULLISH"
	DirBearish Direction = "BEARISH"
	DirNeutral Direction = "NEUTRAL"
)

type BBState string

const (
	BBBreakoutUp   BBState = "BREAKOUT_UP"
	BBBreakoutDown BBState = "BREAKOUT_DOWN"
	BBSqueeze      BBState = "SQUEEZE"
	BBNormal       BBState = "NORMAL"
)

type Volatility string

const (
	VolLow    Volatility = "LOW"
	VolMedium Volatility = "MEDIUM"
	VolHigh   Volatility = "HIGH"
)

// RecentMove 最近一根的走势标签，小写。
const (
	MoveChoppy  = "choppy"
	MoveRally   = "rally"
	MoveSelloff = "selloff"
)

// Verdict 一次分析得出的全部离散信号。
type Verdict struct {
	Trend         Trend      `json:"trend"`
	RSIState      Level      `json:"rsiState"`
	MACDSignal    Direction  `json:"macdSignal"`
	BBState       BBState    `json:"bbState"`
	StochSignal   Level      `json:"stochSignal"`
	IchimokuState Direction  `json:"ichimokuState"`
	Volatility    Volatility `json:"volatility"`
	RecentMove    string     `json:"recentMove"`
}

type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

type IdeaType string

const (
	IdeaLong  IdeaType = "LONG"
	IdeaShort IdeaType = "SHORT"
	IdeaWait  IdeaType = "WAIT"
)

type Impact string

const (
	ImpactHigh   Impact = "HIGH"
	ImpactMedium Impact = "MEDIUM"
	ImpactLow    Impact = "LOW"
)

type NewsItem struct {
	Title  string `json:"title"`
	Source string `json:"source,omitempty"`
}

type CalendarEvent struct {
	Event  string `json:"event"`
	Impact Impact `json:"impact"`
	Time   string `json:"time,omitempty"`
}

type GroundingSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Idea struct {
	Type          IdeaType `json:"type"`
	InvalidatedIf string   `json:"invalidatedIf"`
	Note          string   `json:"note"`
}

// Summary 面向用户的最终观点。本地打分只填 bias/confidence/narrative/idea，
// 新闻与日历字段留给外部增强流程按字段合并。
type Summary struct {
	Bias           Bias              `json:"bias"`
	Confidence     int               `json:"confidence"`
	Narrative      string            `json:"narrative"`
	NewsHighlights []NewsItem        `json:"newsHighlights,omitempty"`
	UpcomingEvents []CalendarEvent   `json:"upcomingEvents,omitempty"`
	Sources        []GroundingSource `json:"sources,omitempty"`
	Idea           Idea              `json:"idea"`
}
