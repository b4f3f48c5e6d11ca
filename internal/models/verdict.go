package models

type Verdict string

const (
	VerdictSafe        Verdict = "safe"
	VerdictCaution     Verdict = "caution"
	VerdictUnsafe      Verdict = "unsafe"
	VerdictNeedsReview Verdict = "needs_review"
)

// verdictRank orders verdicts by severity for comparisons. NEEDS_REVIEW
// sits between CAUTION and UNSAFE: it flags content for a human without
// asserting a violation.
var verdictRank = map[Verdict]int{
	VerdictSafe:        0,
	VerdictCaution:     1,
	VerdictNeedsReview: 2,
	VerdictUnsafe:      3,
}

// MoreSevere reports whether v is strictly more severe than other.
func (v Verdict) MoreSevere(other Verdict) bool {
	return verdictRank[v] > verdictRank[other]
}

type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeText  MediaType = "text"
)

// AllMediaTypes is the default applicability set for stages that do not
// restrict themselves.
var AllMediaTypes = []MediaType{MediaTypeVideo, MediaTypeImage, MediaTypeAudio, MediaTypeText}
