package services

import (
	"regexp"
	"strconv"
	"strings"
)

// CardParser classifies OCR text from a photographed recipe card into
// a title, ingredient candidates, and step candidates. Ingredient
// candidates still need to be resolved against the food lookup before
// they can enter a draft; steps and title seed the draft directly.
type CardParser struct {
	ingredientPatterns []*regexp.Regexp
	stepPattern        *regexp.Regexp
	sectionPatterns    map[string]*regexp.Regexp
	excludePatterns    []*regexp.Regexp
}

// ParsedCard is the structured result of parsing one card
type ParsedCard struct {
	Title       string           `json:"title"`
	Ingredients []ParsedLineItem `json:"ingredients"`
	Steps       []string         `json:"steps"`
}

// ParsedLineItem is one ingredient candidate line
type ParsedLineItem struct {
	RawText  string  `json:"rawText"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Name     string  `json:"name"`
}

// NewCardParser creates a new recipe card parser
func NewCardParser() *CardParser {
	return &CardParser{
		ingredientPatterns: []*regexp.Regexp{
			// Pattern: QTY UNIT NAME - "2 cups flour", "250 g butter"
			regexp.MustCompile(`(?i)^(\d+(?:[./]\d+)?(?:\s+\d/\d)?)\s*(cups?|tbsps?|tablespoons?|tsps?|teaspoons?|g|kg|grams?|ml|l|liters?|oz|ounces?|lbs?|pounds?|pinch(?:es)?|cloves?|slices?|cans?|sticks?)\s+(?:of\s+)?(.+)$`),
			// Pattern: QTY NAME - "3 eggs", "1/2 onion"
			regexp.MustCompile(`^(\d+(?:[./]\d+)?(?:\s+\d/\d)?)\s+(.+)$`),
			// Pattern: bullet-prefixed ingredient - "- salt", "* olive oil"
			regexp.MustCompile(`^[-*•]\s+(.+)$`),
		},
		stepPattern: regexp.MustCompile(`(?i)^(?:step\s*)?(\d{1,2})[.):]\s+(.+)$`),
		sectionPatterns: map[string]*regexp.Regexp{
			"ingredients": regexp.MustCompile(`(?i)^\s*ingredients?\s*:?\s*$`),
			"steps":       regexp.MustCompile(`(?i)^\s*(instructions?|directions?|method|preparation|steps?)\s*:?\s*$`),
		},
		excludePatterns: []*regexp.Regexp{
			// card furniture: yields, timings, attributions, page numbers
			regexp.MustCompile(`(?i)^\s*(serves?|servings?|yields?|makes?|prep\s*time|cook(?:ing)?\s*time|total\s*time|ready\s*in|calories|from\s+the\s+kitchen\s+of|recipe\s+by|source|page)\b`),
			regexp.MustCompile(`^\s*[-=*_.]+\s*$`),
			regexp.MustCompile(`^\s*\d+\s*$`),
		},
	}
}

// Parse classifies OCR text into a card. Section headers switch the
// classifier's mode; outside any section, quantity-leading lines are
// treated as ingredients and numbered lines as steps.
func (p *CardParser) Parse(ocrText string) *ParsedCard {
	result := &ParsedCard{
		Ingredients: []ParsedLineItem{},
		Steps:       []string{},
	}

	section := ""
	for _, line := range strings.Split(ocrText, "\n") {
		line = p.cleanLine(line)
		if line == "" || p.shouldExclude(line) {
			continue
		}

		if p.sectionPatterns["ingredients"].MatchString(line) {
			section = "ingredients"
			continue
		}
		if p.sectionPatterns["steps"].MatchString(line) {
			section = "steps"
			continue
		}

		if matches := p.stepPattern.FindStringSubmatch(line); matches != nil && section != "ingredients" {
			result.Steps = append(result.Steps, strings.TrimSpace(matches[2]))
			section = "steps"
			continue
		}

		if section == "steps" {
			// unnumbered continuation of the previous step
			if n := len(result.Steps); n > 0 {
				result.Steps[n-1] = result.Steps[n-1] + " " + line
			} else {
				result.Steps = append(result.Steps, line)
			}
			continue
		}

		if item := p.parseIngredientLine(line); item != nil {
			result.Ingredients = append(result.Ingredients, *item)
			continue
		}

		if section == "ingredients" {
			// no quantity recognized, keep the raw line as a candidate
			result.Ingredients = append(result.Ingredients, ParsedLineItem{
				RawText: line, Quantity: 1, Name: line,
			})
			continue
		}

		// the first prominent unclassified line is the title
		if result.Title == "" {
			result.Title = line
		}
	}

	return result
}

// parseIngredientLine attempts to parse a line as a quantity-leading
// ingredient
func (p *CardParser) parseIngredientLine(line string) *ParsedLineItem {
	for i, pattern := range p.ingredientPatterns {
		matches := pattern.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		switch i {
		case 0: // qty + unit + name
			qty := parseQuantity(matches[1])
			if qty <= 0 {
				continue
			}
			return &ParsedLineItem{
				RawText:  line,
				Quantity: qty,
				Unit:     strings.ToLower(matches[2]),
				Name:     cleanName(matches[3]),
			}
		case 1: // qty + name
			qty := parseQuantity(matches[1])
			if qty <= 0 {
				continue
			}
			return &ParsedLineItem{
				RawText:  line,
				Quantity: qty,
				Name:     cleanName(matches[2]),
			}
		case 2: // bullet
			return &ParsedLineItem{
				RawText:  line,
				Quantity: 1,
				Name:     cleanName(matches[1]),
			}
		}
	}
	return nil
}

// parseQuantity handles plain numbers, decimals, fractions, and mixed
// numbers like "1 1/2"
func parseQuantity(s string) float64 {
	s = strings.TrimSpace(s)

	if parts := strings.Fields(s); len(parts) == 2 {
		whole := parseQuantity(parts[0])
		frac := parseQuantity(parts[1])
		return whole + frac
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func (p *CardParser) shouldExclude(line string) bool {
	for _, pattern := range p.excludePatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

// cleanLine normalizes whitespace and strips common OCR artifacts
func (p *CardParser) cleanLine(line string) string {
	spaceRe := regexp.MustCompile(`\s+`)
	line = spaceRe.ReplaceAllString(line, " ")
	line = strings.ReplaceAll(line, "|", "")
	line = strings.ReplaceAll(line, "\\", "")
	return strings.TrimSpace(line)
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ".,;:-_")
	return strings.TrimSpace(name)
}
