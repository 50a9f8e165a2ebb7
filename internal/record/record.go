package record

import (
	"slices"
	"time"

	"github.com/nao1215/cookiecrawl/internal/analysis"
	"github.com/nao1215/cookiecrawl/internal/model"
)

// Input collects the results of a visit that completed its page load.
type Input struct {
	Target     model.CrawlTarget
	StartedAt  time.Time
	EndedAt    time.Time
	FinalURL   string
	Screenshot string
	Consent    model.ConsentOutcome
	Exchanges  []model.NetworkExchange
	Analysis   analysis.Result
}

// Assemble builds the record of a successful visit. Slices are copied so
// the record shares no memory with in.
func Assemble(in Input) model.CrawlRecord {
	consent := in.Consent
	if consent.Result == "" {
		consent.Result = model.ConsentSkipped
	}
	return model.CrawlRecord{
		Target:            in.Target,
		Status:            model.StatusOK,
		StartedAt:         in.StartedAt,
		EndedAt:           in.EndedAt,
		FinalURL:          in.FinalURL,
		Screenshot:        in.Screenshot,
		Consent:           consent,
		Cookies:           slices.Clone(in.Analysis.Cookies),
		ThirdPartyDomains: slices.Clone(in.Analysis.ThirdPartyDomains),
		TrackerDomains:    slices.Clone(in.Analysis.TrackerDomains),
		TrackerEntities:   slices.Clone(in.Analysis.TrackerEntities),
		RedirectPairs:     slices.Clone(in.Analysis.RedirectPairs),
		Exchanges:         slices.Clone(in.Exchanges),
		Facts:             slices.Clone(in.Analysis.Facts),
		Diagnostics:       slices.Clone(in.Analysis.Diagnostics),
	}
}

// Failed builds the record of a visit that was short-circuited. It carries
// the failure kind and timing only.
func Failed(target model.CrawlTarget, status model.Status, err error, start, end time.Time) model.CrawlRecord {
	if status == model.StatusOK {
		status = model.StatusSessionError
	}
	r := model.CrawlRecord{
		Target:    target,
		Status:    status,
		StartedAt: start,
		EndedAt:   end,
		Consent:   model.ConsentOutcome{Result: model.ConsentSkipped},
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
