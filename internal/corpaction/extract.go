package corpaction

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"eod-normalizer/internal/domain"
)

// ErrMalformedRatio is returned when a share ratio is missing or not two positive integers.
var ErrMalformedRatio = errors.New("malformed ratio")

var (
	ratioRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*:\s*(\d+(?:\.\d+)?)`)

	// "From Rs 10/- to Re 1/-", "from Rs.2/- per share to Re.1/- per share"
	faceValueRe = regexp.MustCompile(`(?i)from\s+(?:rs|re|inr)?\.?\s*(\d+(?:\.\d+)?)\s*(?:/-)?\s*(?:per\s+share\s*|each\s*)?to\s+(?:rs|re|inr)?\.?\s*(\d+(?:\.\d+)?)`)

	amountRe  = regexp.MustCompile(`(?i)\b(?:rs|re|inr)\.?\s*(\d+(?:\.\d+)?)`)
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

	rightsPriceRe = regexp.MustCompile(`(?i)(premium\s+(?:of\s+)?)?\b(?:rs|re|inr)\.?\s*(\d+(?:\.\d+)?)`)

	// "(Face Value Rs 10/-)", "FV Re.1", "face value of Rs 2 each"
	statedFaceValueRe = regexp.MustCompile(`(?i)\b(?:face\s+value|fv)\b\s*(?:of\s+)?[:\-]?\s*(?:rs|re|inr)\.?\s*(\d+(?:\.\d+)?)\s*(?:/-)?(?:\s*(?:each|per\s+share))?`)
)

// stripFaceValue removes face value mentions so they are not read as amounts,
// and returns the first stated face value.
func stripFaceValue(text string) (string, decimal.NullDecimal) {
	var fv decimal.NullDecimal
	if m := statedFaceValueRe.FindStringSubmatch(text); m != nil {
		if v, err := decimal.NewFromString(m[1]); err == nil {
			fv = decimal.NewNullDecimal(v)
		}
	}
	return statedFaceValueRe.ReplaceAllString(text, " "), fv
}

// parseRatio finds the first a:b ratio and requires both sides to be positive integers.
func parseRatio(text string) (int64, int64, error) {
	m := ratioRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: no a:b ratio in %q", ErrMalformedRatio, text)
	}
	a, errA := decimal.NewFromString(m[1])
	b, errB := decimal.NewFromString(m[2])
	if errA != nil || errB != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrMalformedRatio, m[0])
	}
	if !a.IsInteger() || !b.IsInteger() || !a.IsPositive() || !b.IsPositive() {
		return 0, 0, fmt.Errorf("%w: %s is not two positive integers", ErrMalformedRatio, m[0])
	}
	return a.IntPart(), b.IntPart(), nil
}

// shareRatio converts a face value change into an old:new share ratio.
// A face value going from 10 to 1 means 1 old share becomes 10 new shares.
func shareRatio(oldFV, newFV decimal.Decimal) (int64, int64, error) {
	if !oldFV.IsPositive() || !newFV.IsPositive() {
		return 0, 0, fmt.Errorf("%w: non-positive face value", ErrMalformedRatio)
	}
	// Scale both to integers, then reduce.
	exp := oldFV.Exponent()
	if newFV.Exponent() < exp {
		exp = newFV.Exponent()
	}
	scale := decimal.New(1, -exp)
	oldShares := newFV.Mul(scale).IntPart()
	newShares := oldFV.Mul(scale).IntPart()
	g := gcd(oldShares, newShares)
	return oldShares / g, newShares / g, nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// extractSplit reads "From Rs 10/- to Re 1/-" first, then an explicit old:new ratio.
func extractSplit(text string, _ domain.RawNotice) (Quantities, error) {
	if m := faceValueRe.FindStringSubmatch(text); m != nil {
		oldFV, err1 := decimal.NewFromString(m[1])
		newFV, err2 := decimal.NewFromString(m[2])
		if err1 == nil && err2 == nil {
			oldShares, newShares, err := shareRatio(oldFV, newFV)
			if err != nil {
				return Quantities{}, err
			}
			return Quantities{Numerator: oldShares, Denominator: newShares}, nil
		}
	}

	oldShares, newShares, err := parseRatio(text)
	if err != nil {
		return Quantities{}, err
	}
	return Quantities{Numerator: oldShares, Denominator: newShares}, nil
}

// extractBonus reads new:existing, e.g. "Bonus 2:1" is 2 new for 1 held.
func extractBonus(text string, _ domain.RawNotice) (Quantities, error) {
	newShares, existing, err := parseRatio(text)
	if err != nil {
		return Quantities{}, err
	}
	return Quantities{Numerator: newShares, Denominator: existing}, nil
}

// extractRights reads new:existing and the subscription price. A price quoted
// as a premium is added to the face value.
func extractRights(text string, notice domain.RawNotice) (Quantities, error) {
	newShares, existing, err := parseRatio(text)
	if err != nil {
		return Quantities{}, err
	}
	q := Quantities{Numerator: newShares, Denominator: existing}

	text, statedFV := stripFaceValue(text)
	faceValue := notice.FaceValue
	if !faceValue.Valid {
		faceValue = statedFV
	}

	// Search after the ratio so "Rs 10" face value mentions before it are skipped.
	rest := text
	if loc := ratioRe.FindStringIndex(text); loc != nil {
		rest = text[loc[1]:]
	}
	m := rightsPriceRe.FindStringSubmatch(rest)
	if m == nil {
		q.Partial = "subscription price not found"
		return q, nil
	}
	price, err := decimal.NewFromString(m[2])
	if err != nil {
		q.Partial = "subscription price unreadable"
		return q, nil
	}
	if m[1] != "" {
		if !faceValue.Valid {
			q.Partial = "premium quoted but face value unknown"
			return q, nil
		}
		price = price.Add(faceValue.Decimal)
	}
	q.Price = decimal.NewNullDecimal(price)
	return q, nil
}

// extractDividend sums every per-share amount ("Rs 2 + Special Rs 3" is 5).
// Face value mentions are not amounts. A percentage is read as a share of the
// notice's face value, or of the one stated in the text.
func extractDividend(text string, notice domain.RawNotice) (Quantities, error) {
	var q Quantities

	text, statedFV := stripFaceValue(text)
	faceValue := notice.FaceValue
	if !faceValue.Valid {
		faceValue = statedFV
	}

	total := decimal.Zero
	found := false
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		v, err := decimal.NewFromString(m[1])
		if err != nil {
			continue
		}
		total = total.Add(v)
		found = true
	}
	if found {
		q.Amount = decimal.NewNullDecimal(total)
		return q, nil
	}

	if m := percentRe.FindStringSubmatch(text); m != nil {
		pct, err := decimal.NewFromString(m[1])
		if err == nil && faceValue.Valid {
			q.Amount = decimal.NewNullDecimal(faceValue.Decimal.Mul(pct).Div(decimal.NewFromInt(100)))
			return q, nil
		}
		q.Partial = "percentage dividend without face value"
		return q, nil
	}

	q.Partial = "dividend amount not found"
	return q, nil
}

// normalizeText collapses whitespace so patterns need not handle line breaks.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
