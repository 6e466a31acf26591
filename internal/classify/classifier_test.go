package classify

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		message string
		want    Category
	}{
		// Date/time questions.
		{"сколько сейчас времени", CategoryDateTime},
		{"который час", CategoryDateTime},
		{"какое сегодня число", CategoryDateTime},
		{"какой сейчас год", CategoryDateTime},
		{"what time is it", CategoryDateTime},

		// Currency wins over the bare temporal marker.
		{"какой сегодня курс доллара", CategoryCurrency},
		{"сколько стоит биткоин", CategoryCurrency},
		{"курс евро к рублю", CategoryCurrency},
		{"usd exchange rate", CategoryCurrency},

		// Weather.
		{"какая погода в москве", CategoryWeather},
		{"прогноз на завтра в сочи", CategoryWeather},
		{"will it rain tomorrow", CategoryWeather},

		// News and politics.
		{"последние новости политики", CategoryNews},
		{"что происходит в мире", CategoryNews},
		{"покажи новости экономики", CategoryNews},

		// Temporal marker alone falls through to general search.
		{"актуальная информация о марсе", CategoryGeneralSearch},
		{"что изменилось сегодня в расписании", CategoryGeneralSearch},

		// Trivia carve-out: temporal marker plus "interesting fact".
		{"расскажи интересный факт сегодня", CategoryNone},
		{"tell me an interesting fact about today", CategoryNone},

		// No augmentation needed.
		{"расскажи интересный факт", CategoryNone},
		{"напиши стихотворение про кота", CategoryNone},
		{"объясни мне алгоритм сортировки", CategoryNone},
		{"", CategoryNone},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			if got := Classify(tc.message); got != tc.want {
				t.Fatalf("Classify(%q) = %q, want %q", tc.message, got, tc.want)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	inputs := []string{
		"какой сегодня курс доллара",
		"последние новости политики",
		"погода и курс доллара сегодня",
		"случайный текст без категорий",
	}
	for _, in := range inputs {
		first := Classify(in)
		for i := 0; i < 5; i++ {
			if got := Classify(in); got != first {
				t.Fatalf("Classify(%q) unstable: %q then %q", in, first, got)
			}
		}
	}
}

func TestClassifyIsTotal(t *testing.T) {
	known := map[Category]bool{
		CategoryNone:          true,
		CategoryDateTime:      true,
		CategoryCurrency:      true,
		CategoryWeather:       true,
		CategoryNews:          true,
		CategoryGeneralSearch: true,
	}
	inputs := []string{
		"", " ", "\n", "🙂🙂🙂", "x", "ЧТО?", "12345",
		"curso de español", "nowhere to be known", // substrings of markers must not leak
	}
	for _, in := range inputs {
		got := Classify(in)
		if !known[got] {
			t.Fatalf("Classify(%q) = %q, not an enumerated category", in, got)
		}
	}
}

func TestPrecedenceOverlap(t *testing.T) {
	// Contains currency, weather and news keywords at once; currency has the
	// higher precedence slot.
	got := Classify("новости про курс доллара и погоду")
	if got != CategoryCurrency {
		t.Fatalf("overlapping query = %q, want %q", got, CategoryCurrency)
	}
}
