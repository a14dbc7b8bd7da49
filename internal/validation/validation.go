// Package validation turns raw transport fields into a models.TrackingRequest.
//
// Every field is checked on every call and all violations are returned together.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/BearBump/trackgen/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	maxTextLen     = 255
	weightPlaces   = 3
	weightMaxWhole = 1000 // max_digits=6 при 3 знаках после запятой

	// Границы до округления: RoundBank пересчитывает коэффициент под экспоненту -3,
	// и для 1e-999999999 или 1e999999999 это неограниченная big.Int арифметика.
	weightMaxLen = 64
	weightMinExp = -32
	weightMaxExp = 3
)

const (
	msgRequired     = "This field is required."
	msgBlank        = "This field may not be blank."
	msgCountry      = "Must be 2 uppercase letters."
	msgWeight       = "A valid number is required."
	msgWeightDigits = "Ensure that there are no more than 6 digits in total."
	msgUUID         = "Must be a valid UUID."
	msgTooLong      = "Ensure this field has no more than 255 characters."
	msgSlug         = `Enter a valid "slug" consisting of lowercase letters, numbers or hyphens.`
)

var errNotCanonical = errors.New("uuid is not in canonical form")

var (
	countryRe = regexp.MustCompile(`^[A-Z]{2}$`)
	slugRe    = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// Validate normalizes raw and checks every field. On failure the returned error is *Errors.
func Validate(raw models.RawTrackingRequest) (models.TrackingRequest, error) {
	var (
		req  models.TrackingRequest
		errs = &Errors{}
	)

	field := func(name string) (string, bool) {
		v, sent := raw[name]
		if !sent {
			errs.Add(name, msgRequired)
			return "", false
		}
		v = strings.TrimSpace(v)
		if v == "" {
			errs.Add(name, msgBlank)
			return "", false
		}
		return v, true
	}

	if v, ok := field(models.FieldOriginCountry); ok {
		if countryRe.MatchString(v) {
			req.OriginCountry = v
		} else {
			errs.Add(models.FieldOriginCountry, "Invalid origin_country. "+msgCountry)
		}
	}

	if v, ok := field(models.FieldDestinationCountry); ok {
		if countryRe.MatchString(v) {
			req.DestinationCountry = v
		} else {
			errs.Add(models.FieldDestinationCountry, "Invalid destination_country. "+msgCountry)
		}
	}

	if v, ok := field(models.FieldWeight); ok {
		if w, msg := parseWeight(v); msg != "" {
			errs.Add(models.FieldWeight, msg)
		} else {
			req.Weight = w
		}
	}

	if v, ok := field(models.FieldCustomerID); ok {
		if id, err := parseCanonicalUUID(v); err != nil {
			errs.Add(models.FieldCustomerID, msgUUID)
		} else {
			req.CustomerID = id
		}
	}

	if v, ok := field(models.FieldCustomerName); ok {
		if utf8.RuneCountInString(v) > maxTextLen {
			errs.Add(models.FieldCustomerName, msgTooLong)
		} else {
			req.CustomerName = v
		}
	}

	if v, ok := field(models.FieldCustomerSlug); ok {
		switch {
		case len(v) > maxTextLen:
			errs.Add(models.FieldCustomerSlug, msgTooLong)
		case !slugRe.MatchString(v):
			errs.Add(models.FieldCustomerSlug, msgSlug)
		default:
			req.CustomerSlug = v
		}
	}

	if errs.Len() > 0 {
		return models.TrackingRequest{}, errs
	}
	return req, nil
}

// parseWeight returns the weight rounded half-to-even to 3 places, or a user-facing message.
func parseWeight(s string) (decimal.Decimal, string) {
	if len(s) > weightMaxLen {
		return decimal.Decimal{}, msgWeightDigits
	}
	w, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, msgWeight
	}
	if exp := w.Exponent(); exp < weightMinExp || exp > weightMaxExp {
		return decimal.Decimal{}, msgWeightDigits
	}
	w = w.RoundBank(weightPlaces)
	if w.Abs().GreaterThanOrEqual(decimal.NewFromInt(weightMaxWhole)) {
		return decimal.Decimal{}, msgWeightDigits
	}
	return w, ""
}

// uuid.Parse also accepts braced, urn and bare-hex forms; only the hyphenated one is allowed here.
func parseCanonicalUUID(s string) (uuid.UUID, error) {
	if len(s) != 36 {
		return uuid.Nil, errNotCanonical
	}
	return uuid.Parse(s)
}
