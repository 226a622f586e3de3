package search

import (
	"regexp"
	"strings"

	"github.com/hyperjump/biznesinfo/pkg/utils"
)

type cityPattern struct {
	name string
	re   *regexp.Regexp
}

// cityRe matches any alternative as a whole token. Go's \b only knows ASCII
// word characters, so boundaries are spelled out with Unicode classes.
func cityRe(name string, alts ...string) cityPattern {
	expr := `(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}])`
	return cityPattern{name: name, re: regexp.MustCompile(expr)}
}

// Patterns are matched against folded text (lowercase, "ё" as "е").
var cityTable = []cityPattern{
	cityRe("Минск", `минск(?:а|е|у|ом)?`, `миснк(?:а|е|у)?`, `минкс(?:а|е)?`, `менск`, `мінск`, `minsk(?:e|a)?`),
	cityRe("Брест", `брест(?:а|е|у|ом)?`, `бярэсце`, `brest`),
	cityRe("Гомель", `гомел(?:ь|я|е|ю|ем)`, `гомль`, `homel`, `gomel`),
	cityRe("Гродно", `гродн(?:о|а|е|у|ом)`, `гародня`, `grodno`, `hrodna`),
	cityRe("Витебск", `витебск(?:а|е|у|ом)?`, `витепск`, `віцебск`, `vitebsk`, `viciebsk`),
	cityRe("Могилев", `могилев(?:а|е|у|ом)?`, `могилов`, `магилев`, `магілеў`, `mogilev`, `mahilyow`, `mogilyov`),
	cityRe("Бобруйск", `бобруйск(?:а|е|у|ом)?`, `бабруйск`, `bobruisk`, `babruisk`),
	cityRe("Барановичи", `баранович(?:и|ах|ей|ам)`, `baranovichi`, `baranavichy`),
	cityRe("Борисов", `борисов(?:а|е|у|ом)?`, `барысау`, `borisov`, `barysaw`),
	cityRe("Пинск", `пинск(?:а|е|у|ом)?`, `пінск`, `pinsk`),
	cityRe("Орша", `орш(?:а|е|у|ей|и)`, `orsha`),
	cityRe("Мозырь", `мозыр(?:ь|я|е|ю|ем)`, `мазыр`, `mozyr`, `mazyr`),
	cityRe("Солигорск", `солигорск(?:а|е|у|ом)?`, `салигорск`, `soligorsk`, `salihorsk`),
	cityRe("Новополоцк", `новополоцк(?:а|е|у|ом)?`, `наваполацк`, `novopolotsk`, `navapolatsk`),
	cityRe("Полоцк", `полоцк(?:а|е|у|ом)?`, `полацк`, `polotsk`, `polatsk`),
	cityRe("Лида", `лид(?:а|е|у|ой)`, `lida`),
	cityRe("Молодечно", `молодечн(?:о|е)`, `маладзечна`, `molodechno`, `maladziechna`),
	cityRe("Жлобин", `жлобин(?:а|е|у|ом)?`, `zhlobin`),
	cityRe("Светлогорск", `светлогорск(?:а|е|у|ом)?`, `svetlogorsk`),
	cityRe("Речица", `речиц(?:а|е|у|ей|ы)`, `rechitsa`),
	cityRe("Слуцк", `слуцк(?:а|е|у|ом)?`, `slutsk`),
	cityRe("Жодино", `жодино`, `жодине`, `zhodino`),
	cityRe("Кобрин", `кобрин(?:а|е|у|ом)?`, `kobrin`),
	cityRe("Волковыск", `волковыск(?:а|е|у|ом)?`, `volkovysk`),
}

// InferCity scans text for a known city token and returns its canonical name.
// When several cities appear, the earliest mention wins.
func InferCity(text string) (string, bool) {
	folded := utils.Fold(text)
	if folded == "" {
		return "", false
	}
	best, bestPos := "", -1
	for _, c := range cityTable {
		loc := c.re.FindStringIndex(folded)
		if loc == nil {
			continue
		}
		if bestPos < 0 || loc[0] < bestPos {
			best, bestPos = c.name, loc[0]
		}
	}
	return best, bestPos >= 0
}
