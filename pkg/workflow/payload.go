package workflow

import (
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/chunker"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
)

// FinalPayload is the data of the complete event.
type FinalPayload struct {
	VideoDetails *upstream.Metadata      `json:"video_details"`
	Analysis     string                  `json:"analysis"`
	Research     upstream.ResearchResult `json:"research"`
	Sources      []upstream.SearchResult `json:"sources"`
}

// Reduced drops the research text, which the client already received in
// chunks, and trims the list fields.
func (p FinalPayload) Reduced() any {
	p.Research = p.Research.WithContent(chunker.ContentPlaceholder).Capped(chunker.ReducedCitations, chunker.ReducedSources)
	p.Sources = upstream.CapSources(p.Sources, chunker.ReducedSources)

	return p
}

func newFinalPayload(metadata *upstream.Metadata, analysis string, research *upstream.ResearchResult, maxCitations, maxSources int) FinalPayload {
	capped := research.Capped(maxCitations, maxSources)

	sources := capped.SearchResults
	if sources == nil {
		sources = []upstream.SearchResult{}
	}

	return FinalPayload{
		VideoDetails: metadata,
		Analysis:     analysis,
		Research:     capped,
		Sources:      sources,
	}
}
