package dispatcher

import "github.com/chronicleworks/chronicle/internal/prov/model"

// Kind tags an ApiResponse variant (spec §4.7 "Response variants").
type Kind string

const (
	KindUnit                 Kind = "Unit"
	KindAlreadyRecorded      Kind = "AlreadyRecorded"
	KindSubmission           Kind = "Submission"
	KindQueryReply           Kind = "QueryReply"
	KindDepthChargeSubmitted Kind = "DepthChargeSubmitted"
	KindImportSubmitted      Kind = "ImportSubmitted"
)

// Response is the tagged union of dispatch outcomes. Not every field is
// populated for every Kind: QueryReply carries only Prov; AlreadyRecorded
// carries Subject and Prov; Submission, DepthChargeSubmitted and
// ImportSubmitted carry Subject, Prov and CorrelationID (Subject is empty
// for DepthCharge and Import).
type Response struct {
	Kind          Kind
	Subject       string
	Prov          *model.Model
	CorrelationID string
}
