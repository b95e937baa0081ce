package engine

// --- Inbound request ---

// InputKind classifies submitted content.
type InputKind string

const (
	KindText  InputKind = "text"
	KindLink  InputKind = "link"
	KindImage InputKind = "image"
	KindAudio InputKind = "audio"
)

// ValidKind reports whether k is a recognized input kind.
func ValidKind(k InputKind) bool {
	switch k {
	case KindText, KindLink, KindImage, KindAudio:
		return true
	}
	return false
}

// AnalysisInput is the single inbound request shape.
// For image/audio, Content is a base64 payload, optionally with a
// data:<mediatype>;base64, prefix.
type AnalysisInput struct {
	Kind    InputKind `json:"kind"`
	Content string    `json:"content"`
}

// --- Extraction layer ---

// ExtractionResult is the tagged outcome every extraction path converges on.
// Warnings accumulate non-fatal degradations (language fallback, truncation)
// and are surfaced even on success.
type ExtractionResult struct {
	OK        bool
	Text      string
	Title     string
	SourceURL string
	Warnings  []string
	Err       *Error // set when !OK
}

// ExtractOK builds a successful result.
func ExtractOK(text string, warnings ...string) ExtractionResult {
	return ExtractionResult{OK: true, Text: text, Warnings: warnings}
}

// ExtractFailed builds a failed result, preserving accumulated warnings.
func ExtractFailed(err *Error, warnings ...string) ExtractionResult {
	return ExtractionResult{OK: false, Err: err, Warnings: warnings}
}

// --- Outbound response ---

// Scores carries the model's numeric assessment, each in [0,1].
type Scores struct {
	Credibility  float64 `json:"credibility"`
	Factuality   float64 `json:"factuality"`
	Manipulation float64 `json:"manipulation"`
}

// Claim is a single checkable statement the model identified.
type Claim struct {
	Claim      string  `json:"claim"`
	Assessment string  `json:"assessment"` // accurate | misleading | false | unverifiable
	Confidence float64 `json:"confidence"`
}

// Meta carries response metadata alongside the verdict.
type Meta struct {
	Fingerprint string   `json:"fingerprint"`
	Kind        string   `json:"kind"`
	SourceURL   string   `json:"source_url,omitempty"`
	Title       string   `json:"title,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Cached      bool     `json:"cached,omitempty"`
}

// AnalysisOutput is the structured verdict returned to the caller.
type AnalysisOutput struct {
	Verdict string  `json:"verdict"` // accurate | mostly_accurate | misleading | false | unverifiable
	Scores  Scores  `json:"scores"`
	Claims  []Claim `json:"claims"`
	Report  string  `json:"report"` // markdown
	Meta    Meta    `json:"meta"`
}
