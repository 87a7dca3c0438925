package feed

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
)

// Ordered alias chains per canonical field. The first present, non-empty
// alias wins; order changes here change which source field takes precedence.
var (
	titleAliases       = []string{"title", "jobtitle", "position", "rawtext"}
	companyAliases     = []string{"company", "companyname", "employer", "organization"}
	urlAliases         = []string{"link", "url", "applyurl", "guid"}
	descriptionAliases = []string{"description", "summary", "content", "jobdescription"}
	locationAliases    = []string{"location", "joblocation", "city", "region"}
	categoryAliases    = []string{"category", "jobcategory", "industry", "sector"}
	typeAliases        = []string{"type", "jobtype", "employmenttype", "employment"}
	dateAliases        = []string{"pubdate", "published", "postedat", "date", "created", "updated"}
	idAliases          = []string{"id", "guid", "externalid", "jobid"}
)

// jobTypes maps case/whitespace/punctuation-insensitive source values onto
// the canonical type enum. Keys are values after stripping non-alphanumerics.
var jobTypes = map[string]string{
	"fulltime":     types.TypeFullTime,
	"parttime":     types.TypePartTime,
	"contract":     types.TypeContract,
	"contractor":   types.TypeContract,
	"temporary":    types.TypeContract,
	"freelance":    types.TypeFreelance,
	"freelancer":   types.TypeFreelance,
	"remote":       types.TypeRemote,
	"workfromhome": types.TypeRemote,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Normalizer maps raw feed items into canonical Job candidates. It never
// rejects an item: missing fields fall back to defaults, over-long strings
// truncate, unparsable dates resolve to the processing time.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize produces a Job candidate from one raw item. sourceURL anchors the
// synthesized identity and is the final fallback for the job URL.
func (n *Normalizer) Normalize(item RawItem, sourceURL string) *types.Job {
	title := firstAlias(item, titleAliases, types.DefaultTitle)
	company := firstAlias(item, companyAliases, types.DefaultCompany)

	url := firstAlias(item, urlAliases, "")
	if url == "" {
		url = sourceURL
	}

	externalID := firstAlias(item, idAliases, "")
	if externalID == "" {
		externalID = synthesizeID(sourceURL, title, company)
	}

	return &types.Job{
		ExternalID:  truncate(externalID, types.MaxExternalIDLen),
		URL:         truncate(url, types.MaxURLLen),
		Title:       truncate(title, types.MaxTitleLen),
		Company:     truncate(company, types.MaxCompanyLen),
		Category:    truncate(firstAlias(item, categoryAliases, types.DefaultCategory), types.MaxCategoryLen),
		Type:        normalizeType(firstAlias(item, typeAliases, "")),
		Location:    truncate(firstAlias(item, locationAliases, types.DefaultLocation), types.MaxLocationLen),
		Description: truncate(firstAlias(item, descriptionAliases, ""), types.MaxDescriptionLen),
		PostedAt:    n.parsePostedAt(item),
	}
}

// NormalizeAll maps a slice of raw items from one source URL.
func (n *Normalizer) NormalizeAll(items []RawItem, sourceURL string) []*types.Job {
	jobs := make([]*types.Job, 0, len(items))
	for _, item := range items {
		jobs = append(jobs, n.Normalize(item, sourceURL))
	}
	return jobs
}

func (n *Normalizer) parsePostedAt(item RawItem) time.Time {
	raw := firstAlias(item, dateAliases, "")
	if raw != "" {
		if ts, err := dateparse.ParseAny(raw); err == nil {
			return ts
		}
	}
	return n.now()
}

// firstAlias walks the alias chain in order and returns the first non-empty
// value, or the default.
func firstAlias(item RawItem, aliases []string, def string) string {
	for _, alias := range aliases {
		if v := strings.TrimSpace(item[alias]); v != "" {
			return v
		}
	}
	return def
}

// normalizeType resolves a free-form employment type onto the enum,
// defaulting to Other.
func normalizeType(raw string) string {
	key := nonAlnum.ReplaceAllString(strings.ToLower(raw), "")
	if t, ok := jobTypes[key]; ok {
		return t
	}
	return types.TypeOther
}

// synthesizeID derives a stable identity for items whose source carries no
// id/guid. Re-fetching the same item from the same source must yield the
// same value.
func synthesizeID(sourceURL, title, company string) string {
	slug := strings.ToLower(sourceURL + " " + title + " " + company)
	slug = nonAlnum.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// truncate bounds a string to max characters without rejecting it.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
