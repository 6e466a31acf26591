package classify

import (
	"regexp"
	"strings"
)

// Category names the kind of external data a user query needs, if any.
type Category string

const (
	CategoryNone          Category = "none"
	CategoryDateTime      Category = "datetime"
	CategoryCurrency      Category = "currency"
	CategoryWeather       Category = "weather"
	CategoryNews          Category = "news"
	CategoryGeneralSearch Category = "search"
)

// Classify decides whether a message needs current external data and which
// category to fetch. It is a pure function of the message text: categories
// are tested in fixed precedence order and the first match wins.
func Classify(message string) Category {
	q := strings.ToLower(strings.TrimSpace(message))
	if q == "" {
		return CategoryNone
	}

	for _, r := range rules {
		if r.match(q) {
			return r.category
		}
	}

	if hasTemporalMarker(q) {
		// Trivia questions that merely contain a "today"-like word should not
		// trigger a live lookup.
		if triviaCarveOut(q) {
			return CategoryNone
		}
		return CategoryGeneralSearch
	}

	return CategoryNone
}

type rule struct {
	category Category
	match    func(q string) bool
}

// Precedence order matters: keyword sets overlap, and tests pin one expected
// category per input.
var rules = []rule{
	{CategoryDateTime, isDateTimeQuery},
	{CategoryCurrency, matchAny(currencyKeywords)},
	{CategoryWeather, matchAny(weatherKeywords)},
	{CategoryNews, isNewsQuery},
}

var dateTimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`который\s+час`),
	regexp.MustCompile(`сколько\s+(сейчас\s+)?времени`),
	regexp.MustCompile(`какой\s+((сегодня|сейчас)\s+)?(год|день|месяц)`),
	regexp.MustCompile(`какое\s+((сегодня|сейчас)\s+)?(число|время)`),
	regexp.MustCompile(`какая\s+((сегодня|сейчас)\s+)?дата`),
	regexp.MustCompile(`что\s+за\s+(день|дата|время)`),
	regexp.MustCompile(`what\s+(time|date|day|month|year)\b`),
}

func isDateTimeQuery(q string) bool {
	for _, p := range dateTimePatterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}

var currencyKeywords = []string{
	"курс", "валют", "доллар", "евро", "рубл", "биткоин", "юань",
	"криптовалют", "котировк", "обменный курс",
	"usd", "eur", "btc", "cny",
	"exchange rate", "currency", "dollar", "euro", "bitcoin",
}

var weatherKeywords = []string{
	"погод", "температур", "прогноз", "дожд", "снег", "ветер",
	"влажност", "давлен", "градус", "жарко", "холодно", "морозно",
	"weather", "temperature", "forecast", "rain", "snow", "sunny",
}

var newsKeywords = []string{
	"новост", "политик", "геополитик",
	"что происходит", "что нового", "что случилось",
	"news", "headlines",
}

func isNewsQuery(q string) bool {
	return matchAny(newsKeywords)(q)
}

var temporalMarkers = []string{
	"сегодня", "вчера", "сейчас", "недавно", "актуальн", "последн",
	"на данный момент", "этот год",
}

var temporalMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\btoday\b`),
	regexp.MustCompile(`\bnow\b`),
	regexp.MustCompile(`\blatest\b`),
	regexp.MustCompile(`\bcurrent\b`),
	regexp.MustCompile(`\brecent\b`),
}

func hasTemporalMarker(q string) bool {
	for _, kw := range temporalMarkers {
		if strings.Contains(q, kw) {
			return true
		}
	}
	for _, p := range temporalMarkerPatterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}

// triviaCarveOut matches "tell me an interesting fact (today)"-style asks.
func triviaCarveOut(q string) bool {
	if strings.Contains(q, "интересн") && strings.Contains(q, "факт") {
		return true
	}
	return strings.Contains(q, "interesting fact")
}

func matchAny(keywords []string) func(string) bool {
	return func(q string) bool {
		for _, kw := range keywords {
			if strings.Contains(q, kw) {
				return true
			}
		}
		return false
	}
}
