package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apierrors "ipedspulse/internal/errors"
	"ipedspulse/internal/services"
	"ipedspulse/pkg/contracts/domain"
)

// Filter query parameters. Each may repeat and may hold comma separated
// values: ?year=2022&year=2023 and ?year=2022,2023 are equivalent.
const (
	ParamYear        = "year"
	ParamInstitution = "institution"
	ParamState       = "state"
	ParamRegion      = "region"
	ParamType        = "type"
	ParamSize        = "size"
)

// ParseFilter builds a normalized filter from the request query.
func ParseFilter(q url.Values) (domain.Filter, error) {
	f := domain.Filter{
		Institutions: queryValues(q, ParamInstitution, false),
		States:       queryValues(q, ParamState, true),
		Regions:      queryValues(q, ParamRegion, true),
		Types:        queryValues(q, ParamType, true),
		Sizes:        queryValues(q, ParamSize, true),
	}
	for _, v := range queryValues(q, ParamYear, true) {
		y, err := strconv.Atoi(v)
		if err != nil {
			return domain.Filter{}, apierrors.ErrValidation(ParamYear, fmt.Sprintf("year %q is not an integer", v))
		}
		f.Years = append(f.Years, y)
	}
	return f.Normalize(), nil
}

// queryValues collects the non-blank values of a parameter. Institution
// names may contain commas, so splitting is optional.
func queryValues(q url.Values, key string, split bool) []string {
	var out []string
	for _, raw := range q[key] {
		parts := []string{raw}
		if split {
			parts = strings.Split(raw, ",")
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// etag quotes a dataset fingerprint as a strong entity tag.
func etag(fingerprint string) string {
	return `"` + fingerprint + `"`
}

// checkNotModified sets the ETag header and answers 304 when the client
// already holds the current dataset version.
func checkNotModified(w http.ResponseWriter, r *http.Request, v Versioned) bool {
	fp := v.Fingerprint()
	if fp == "" {
		return false
	}
	tag := etag(fp)
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "no-cache")

	for _, candidate := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == tag || candidate == "*" {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}

// mapServiceError translates service sentinels into API errors. Anything
// else is returned unchanged for the error handler to classify.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, services.ErrInstitutionNotFound):
		return apierrors.NewWithDetails(http.StatusNotFound, "INSTITUTION_NOT_FOUND", "Institution not found", err.Error())
	case errors.Is(err, services.ErrNoData):
		return apierrors.NewWithDetails(http.StatusNotFound, "NO_DATA", apierrors.ErrNoData.Message, err.Error())
	case errors.Is(err, services.ErrInvalidBaseline):
		return apierrors.NewWithDetails(http.StatusUnprocessableEntity, "INVALID_BASELINE", apierrors.ErrInvalidBaseline.Message, err.Error())
	case errors.Is(err, services.ErrInvalidFilter),
		errors.Is(err, services.ErrInvalidMetric),
		errors.Is(err, services.ErrInvalidPeerType):
		return apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_PARAMETER", apierrors.ErrInvalidParameter.Message, err.Error())
	case errors.Is(err, services.ErrServiceUnavailable):
		return apierrors.ErrServiceUnavailable
	}
	return err
}
