package rules

import (
	"strconv"
	"strings"
)

// Default guesses when no source hinted at a resource set: the base games
const (
	urlDoom     = "https://www.dsdarchive.com/wads/doom"
	urlDoom2    = "https://www.dsdarchive.com/wads/doom2"
	urlPlutonia = "https://www.dsdarchive.com/wads/plutonia"
	urlTNT      = "https://www.dsdarchive.com/wads/tnt"
	urlHeretic  = "https://www.dsdarchive.com/wads/heretic"
)

var defaultGuessURLs = []string{urlDoom, urlDoom2, urlPlutonia, urlTNT}

// Index is the loaded, read-only resource-set table
type Index struct {
	byURL     map[string]*ResourceSet
	byIdgames map[string]*ResourceSet
	ordered   []*ResourceSet
}

func newIndex() *Index {
	return &Index{
		byURL:     make(map[string]*ResourceSet),
		byIdgames: make(map[string]*ResourceSet),
	}
}

func (idx *Index) add(set *ResourceSet) {
	idx.byURL[set.URL] = set
	if set.IdgamesURL != "" {
		idx.byIdgames[set.IdgamesURL] = set
	}
	idx.ordered = append(idx.ordered, set)
}

// ByURL returns the set registered under the given archive URL.
func (idx *Index) ByURL(url string) (*ResourceSet, bool) {
	set, ok := idx.byURL[url]
	return set, ok
}

// Len returns the number of known resource sets.
func (idx *Index) Len() int {
	return len(idx.ordered)
}

// Guess resolves locator strings into candidate resource sets, preserving
// input order. Locators may be archive URLs, mirror URLs, or bare resource
// filenames; unknown locators are skipped. Duplicates are kept on purpose:
// the replay analyzer ranks candidates by how many sources agreed on them.
// With no usable locator at all the base games are guessed, narrowed by the
// observed base-game file when one is known.
func (idx *Index) Guess(locatorLists [][]string, iwad string) []*ResourceSet {
	var guesses []*ResourceSet
	for _, locators := range locatorLists {
		for _, locator := range locators {
			if set := idx.resolve(locator); set != nil {
				guesses = append(guesses, set)
			}
		}
	}
	if len(guesses) > 0 {
		return guesses
	}

	if strings.EqualFold(strings.TrimSuffix(iwad, ".wad"), "heretic") {
		if set, ok := idx.byURL[urlHeretic]; ok {
			return []*ResourceSet{set}
		}
	}
	for _, url := range defaultGuessURLs {
		if set, ok := idx.byURL[url]; ok {
			guesses = append(guesses, set)
		}
	}
	return guesses
}

func (idx *Index) resolve(locator string) *ResourceSet {
	if strings.Contains(locator, "dsdarchive.com/wads") {
		return idx.byURL[locator]
	}
	if strings.Contains(locator, "doomworld.com/idgames") {
		return idx.byIdgames[locator]
	}

	filename := strings.ToLower(locator)
	if !strings.Contains(filename, ".") {
		filename += ".wad"
	}
	for _, set := range idx.ordered {
		if set.HasFile(filename) {
			return set
		}
	}
	return nil
}

// LevelNumber extracts the numeric part of a level name in either the
// transcript format (MAP01, E1M3) or the published format (Map 01). Secret
// exit markers are stripped first.
func LevelNumber(level string) (int, error) {
	level = strings.TrimSuffix(level, "s")
	switch {
	case strings.HasPrefix(level, "MAP"):
		return strconv.Atoi(strings.TrimPrefix(level, "MAP"))
	case strings.HasPrefix(level, "Map "):
		return strconv.Atoi(strings.TrimPrefix(level, "Map "))
	default:
		// E#M# case
		trimmed := strings.NewReplacer("E", "", "M", "").Replace(level)
		return strconv.Atoi(trimmed)
	}
}

// ContainsLevel reports whether the level falls in any of the set's level
// ranges. Sets without declared ranges accept every level.
func (m *MapListInfo) ContainsLevel(level string) (bool, error) {
	if m == nil || len(m.MapRanges) == 0 {
		return true, nil
	}
	num, err := LevelNumber(level)
	if err != nil {
		return false, err
	}
	for _, r := range m.MapRanges {
		if num >= r[0] && num <= r[1] {
			return true, nil
		}
	}
	return false, nil
}
