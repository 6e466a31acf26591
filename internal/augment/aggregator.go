package augment

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antoniostano/gembot/internal/classify"
	"github.com/antoniostano/gembot/internal/lookup"
	"github.com/antoniostano/gembot/internal/observability"
)

const (
	defaultNewsCount = 10
	maxNewsCount     = 50
	// Keeps per-item contributions small enough for the model context budget.
	itemCharBudget = 200
)

// NewsSource delivers headlines for a derived search phrase.
type NewsSource interface {
	Headlines(ctx context.Context, query string, limit int) ([]lookup.Article, error)
}

// RateSource delivers one exchange rate plus the provider's as-of date.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (float64, string, error)
}

// WeatherSource delivers a current-conditions summary for a city.
type WeatherSource interface {
	Current(ctx context.Context, city string) (string, error)
}

// SearchSource delivers web search snippets.
type SearchSource interface {
	Search(ctx context.Context, query string) (string, error)
}

// WikiSource delivers an encyclopedia summary.
type WikiSource interface {
	Summary(ctx context.Context, query string) (string, error)
}

// Aggregator fans out to the lookup collaborators for a classified message
// and merges whatever succeeded into one augmentation block. Every source is
// best-effort: a failure or timeout contributes nothing and never aborts the
// other sources.
type Aggregator struct {
	news    NewsSource
	rates   RateSource
	weather WeatherSource
	search  SearchSource
	wiki    WikiSource

	timeout time.Duration
	metrics *observability.Metrics
	now     func() time.Time
}

func NewAggregator(news NewsSource, rates RateSource, weather WeatherSource, search SearchSource, wiki WikiSource, timeout time.Duration, metrics *observability.Metrics) *Aggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{
		news:    news,
		rates:   rates,
		weather: weather,
		search:  search,
		wiki:    wiki,
		timeout: timeout,
		metrics: metrics,
		now:     time.Now,
	}
}

func (a *Aggregator) lookupFailed(source string) {
	if a.metrics != nil {
		a.metrics.LookupErrors.WithLabelValues(source).Inc()
	}
}

// Fetch builds the augmentation block for a category. The current date/time
// section is always included first: the model's own notion of "now" is stale
// and fetched facts only make sense against the real clock.
func (a *Aggregator) Fetch(ctx context.Context, category classify.Category, message string) string {
	sections := []string{a.dateTimeBlock()}

	switch category {
	case classify.CategoryDateTime:
		// Wall clock only, nothing to fetch.
	case classify.CategoryNews:
		if text := a.newsBlock(ctx, message); text != "" {
			sections = append(sections, text)
		}
	case classify.CategoryCurrency:
		if text := a.currencyBlock(ctx, message); text != "" {
			sections = append(sections, text)
		}
	case classify.CategoryWeather:
		if text := a.weatherBlock(ctx, message); text != "" {
			sections = append(sections, text)
		}
	case classify.CategoryGeneralSearch:
		if text := a.searchBlock(ctx, message); text != "" {
			sections = append(sections, text)
		}
	}

	return strings.Join(sections, "\n\n")
}

var (
	monthNames = []string{
		"января", "февраля", "марта", "апреля", "мая", "июня",
		"июля", "августа", "сентября", "октября", "ноября", "декабря",
	}
	weekdayNames = []string{
		"воскресенье", "понедельник", "вторник", "среда",
		"четверг", "пятница", "суббота",
	}
	moscowTZ = loadMoscow()
)

func loadMoscow() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

func (a *Aggregator) dateTimeBlock() string {
	now := a.now().In(moscowTZ)
	return fmt.Sprintf(
		"Актуальная дата и время: %d %s %d года, %s, %s по московскому времени.",
		now.Day(), monthNames[now.Month()-1], now.Year(),
		weekdayNames[now.Weekday()], now.Format("15:04"),
	)
}

var numberPattern = regexp.MustCompile(`\b(\d+)\b`)

// requestedCount extracts a headline count from free text. Any bare integer
// matches, so years and unrelated numbers can misfire; that imprecision is
// accepted and the value is clamped to a sane range.
func requestedCount(message string) int {
	matches := numberPattern.FindAllString(message, -1)
	count := 0
	for _, m := range matches {
		n, err := strconv.Atoi(m)
		if err != nil || n <= 0 {
			continue
		}
		if n > count {
			count = n
		}
	}
	if count == 0 {
		return defaultNewsCount
	}
	if count > maxNewsCount {
		return maxNewsCount
	}
	return count
}

// newsSearchPhrase derives the provider query, narrowing by topic keywords.
func newsSearchPhrase(message string) string {
	q := strings.ToLower(message)
	switch {
	case strings.Contains(q, "политик") || strings.Contains(q, "геополитик"):
		return "последние политические новости россия сегодня"
	case strings.Contains(q, "украин"):
		return "последние новости украина сегодня"
	case strings.Contains(q, "экономик") || strings.Contains(q, "финанс") || strings.Contains(q, "бизнес"):
		return "последние экономические новости сегодня россия"
	}

	stop := map[string]bool{
		"новости": true, "последние": true, "свежие": true, "актуальные": true,
		"сегодня": true, "предоставь": true, "покажи": true, "расскажи": true,
	}
	var content []string
	for _, w := range strings.Fields(q) {
		if len([]rune(w)) > 3 && !stop[w] {
			content = append(content, w)
		}
		if len(content) == 3 {
			break
		}
	}
	if len(content) > 0 {
		return "последние новости " + strings.Join(content, " ") + " сегодня"
	}
	return "последние новости россия сегодня"
}

func (a *Aggregator) newsBlock(ctx context.Context, message string) string {
	phrase := newsSearchPhrase(message)
	limit := requestedCount(message)

	newsCtx, cancel := context.WithTimeout(ctx, a.timeout)
	articles, err := a.news.Headlines(newsCtx, phrase, limit)
	cancel()
	if err != nil || len(articles) == 0 {
		if err != nil {
			a.lookupFailed("news")
			log.Printf("news lookup failed, falling back to web search: %v", err)
		}
		// Primary source empty: a general web search still beats nothing.
		text, err := a.call(ctx, func(ctx context.Context) (string, error) {
			return a.search.Search(ctx, phrase)
		})
		if err != nil {
			a.lookupFailed("search")
			return ""
		}
		if text == "" {
			return ""
		}
		return "Новости (веб-поиск): " + truncateItem(text)
	}

	var b strings.Builder
	b.WriteString("Новости по запросу:\n")
	for i, article := range articles {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, article.Title, article.Source)
		if desc := truncateItem(article.Description); desc != "" {
			b.WriteString(" — ")
			b.WriteString(desc)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// currencyPair maps message keywords to the ISO pair to quote.
type currencyPair struct {
	keywords []string
	from, to string
	name     string
}

var currencyPairs = []currencyPair{
	{[]string{"доллар", "usd", "dollar"}, "USD", "RUB", "доллар США"},
	{[]string{"евро", "eur", "euro"}, "EUR", "RUB", "евро"},
	{[]string{"биткоин", "bitcoin", "btc"}, "BTC", "USD", "биткоин"},
	{[]string{"юань", "yuan", "cny"}, "CNY", "RUB", "китайский юань"},
}

func pairsFromMessage(message string) []currencyPair {
	q := strings.ToLower(message)
	var out []currencyPair
	for _, p := range currencyPairs {
		for _, kw := range p.keywords {
			if strings.Contains(q, kw) {
				out = append(out, p)
				break
			}
		}
	}
	if len(out) == 0 {
		// Unnamed pair defaults to the dollar.
		out = append(out, currencyPairs[0])
	}
	return out
}

func (a *Aggregator) currencyBlock(ctx context.Context, message string) string {
	var lines []string
	for _, p := range pairsFromMessage(message) {
		rate, asOf, err := a.callRate(ctx, p.from, p.to)
		if err != nil {
			// Failed pairs are skipped, not fatal.
			a.lookupFailed("currency")
			log.Printf("rate lookup %s/%s failed: %v", p.from, p.to, err)
			continue
		}
		line := fmt.Sprintf("%s: %.2f %s за 1 %s", p.name, rate, p.to, p.from)
		if asOf != "" {
			line += fmt.Sprintf(" (на %s)", asOf)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	return "Актуальные курсы валют:\n" + strings.Join(lines, "\n")
}

// cityEntry maps message keywords to the canonical city name for the
// weather provider.
type cityEntry struct {
	keywords []string
	city     string
	label    string
}

var cityTable = []cityEntry{
	{[]string{"москв", "moscow"}, "Moscow", "Москва"},
	{[]string{"петербург", "спб", "питер"}, "Saint Petersburg", "Санкт-Петербург"},
	{[]string{"сочи", "sochi"}, "Sochi", "Сочи"},
	{[]string{"екатеринбург"}, "Yekaterinburg", "Екатеринбург"},
	{[]string{"новосибирск"}, "Novosibirsk", "Новосибирск"},
	{[]string{"казан"}, "Kazan", "Казань"},
	{[]string{"стамбул", "istanbul"}, "Istanbul", "Стамбул"},
	{[]string{"анталия", "анталья", "antalya"}, "Antalya", "Анталия"},
}

func cityFromMessage(message string) cityEntry {
	q := strings.ToLower(message)
	for _, entry := range cityTable {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				return entry
			}
		}
	}
	return cityTable[0]
}

func (a *Aggregator) weatherBlock(ctx context.Context, message string) string {
	entry := cityFromMessage(message)

	text, err := a.call(ctx, func(ctx context.Context) (string, error) {
		return a.weather.Current(ctx, entry.city)
	})
	if err == nil && text != "" {
		return fmt.Sprintf("Погода, %s: %s", entry.label, text)
	}
	if err != nil {
		a.lookupFailed("weather")
		log.Printf("weather lookup for %s failed, falling back to web search: %v", entry.city, err)
	}

	fallback, err := a.call(ctx, func(ctx context.Context) (string, error) {
		return a.search.Search(ctx, "погода "+entry.label+" сегодня прогноз")
	})
	if err != nil {
		a.lookupFailed("search")
		return ""
	}
	if fallback == "" {
		return ""
	}
	return fmt.Sprintf("Погода, %s (веб-поиск): %s", entry.label, truncateItem(fallback))
}

func (a *Aggregator) searchBlock(ctx context.Context, message string) string {
	var (
		wg         sync.WaitGroup
		searchText string
		wikiText   string
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		text, err := a.call(ctx, func(ctx context.Context) (string, error) {
			return a.search.Search(ctx, message)
		})
		if err != nil {
			a.lookupFailed("search")
		} else {
			searchText = text
		}
	}()
	go func() {
		defer wg.Done()
		text, err := a.call(ctx, func(ctx context.Context) (string, error) {
			return a.wiki.Summary(ctx, message)
		})
		if err != nil {
			a.lookupFailed("wiki")
		} else {
			wikiText = text
		}
	}()
	wg.Wait()

	var sections []string
	if searchText != "" {
		sections = append(sections, "Результаты поиска: "+truncateItem(searchText))
	}
	if wikiText != "" {
		sections = append(sections, "Энциклопедия: "+truncateItem(wikiText))
	}
	return strings.Join(sections, "\n")
}

// call runs one lookup under its own timeout so a slow source cannot stall
// or cancel its siblings.
func (a *Aggregator) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return fn(callCtx)
}

func (a *Aggregator) callRate(ctx context.Context, from, to string) (float64, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.rates.Rate(callCtx, from, to)
}

func truncateItem(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= itemCharBudget {
		return string(runes)
	}
	return string(runes[:itemCharBudget-3]) + "..."
}
